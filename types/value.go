package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/strata/errors"
)

// Value is the decoded form of an attribute. Only the field matching Kind is set.
type Value struct {
	Kind   Kind
	Text   string
	Number float64
	Bool   bool
	Time   time.Time
	JSON   json.RawMessage
}

// DateLayouts are the accepted ISO-like date shapes, most specific first
var DateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses s using DateLayouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeValue decodes raw text as the given kind
func DecodeValue(kind Kind, raw string) (Value, error) {
	trimmed := strings.TrimSpace(raw)

	switch kind {
	case KindText, "":
		return Value{Kind: KindText, Text: raw}, nil

	case KindNumber:
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return Value{}, errors.NewValidationError("value %q is not a number", raw)
		}
		return Value{Kind: KindNumber, Number: n}, nil

	case KindBoolean:
		switch strings.ToLower(trimmed) {
		case "true":
			return Value{Kind: KindBoolean, Bool: true}, nil
		case "false":
			return Value{Kind: KindBoolean, Bool: false}, nil
		}
		return Value{}, errors.NewValidationError("value %q is not a boolean", raw)

	case KindDate:
		t, ok := ParseDate(trimmed)
		if !ok {
			return Value{}, errors.NewValidationError("value %q is not a date", raw)
		}
		return Value{Kind: KindDate, Time: t}, nil

	case KindJSON:
		if !json.Valid([]byte(trimmed)) {
			return Value{}, errors.NewValidationError("value %q is not valid JSON", raw)
		}
		return Value{Kind: KindJSON, JSON: json.RawMessage(trimmed)}, nil
	}

	return Value{}, errors.NewValidationError("unknown attribute kind %q", kind)
}

// Interface returns the Go value: string, float64, bool, time.Time or a decoded JSON value
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindBoolean:
		return v.Bool
	case KindDate:
		return v.Time
	case KindJSON:
		var out any
		if err := json.Unmarshal(v.JSON, &out); err != nil {
			return string(v.JSON)
		}
		return out
	default:
		return v.Text
	}
}

// String renders the value back to its stored text form
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339Nano)
	case KindJSON:
		return string(v.JSON)
	default:
		return v.Text
	}
}
