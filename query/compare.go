package query

import (
	"bytes"
	"cmp"
	"encoding/json"
	"strings"

	"github.com/teranos/strata/attrs"
	"github.com/teranos/strata/types"
)

// compareValues orders two decoded values of the same kind.
// ok is false when the kind has no ordering (json) or the kinds differ.
func compareValues(a, b types.Value) (c int, ok bool) {
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case types.KindNumber:
		return cmp.Compare(a.Number, b.Number), true
	case types.KindDate:
		return a.Time.Compare(b.Time), true
	case types.KindBoolean:
		return cmp.Compare(boolRank(a.Bool), boolRank(b.Bool)), true
	case types.KindText, "":
		return strings.Compare(a.Text, b.Text), true
	}
	return 0, false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// jsonEqual compares JSON documents ignoring insignificant whitespace
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// decodeStored decodes an attribute, falling back to its raw text when the
// stored value no longer matches its kind
func decodeStored(a types.Attribute) types.Value {
	v, err := a.Typed()
	if err != nil {
		return types.Value{Kind: types.KindText, Text: a.Value}
	}
	return v
}

// matches applies one filter to a record. A record without the field never matches.
func matches(rec Record, f Filter) bool {
	a, ok := rec.Field(f.Field)
	if !ok {
		return false
	}

	switch f.Op {
	case OpExists:
		return true
	case OpContains:
		return strings.Contains(strings.ToLower(a.Value), strings.ToLower(f.Value))
	}

	stored := decodeStored(a)
	want, err := attrs.Decode(stored.Kind, f.Value)
	if err != nil {
		// The filter value cannot be read as the stored kind: only neq holds
		return f.Op == OpNeq
	}

	if stored.Kind == types.KindJSON {
		eq := jsonEqual(stored.JSON, want.JSON)
		switch f.Op {
		case OpEq:
			return eq
		case OpNeq:
			return !eq
		}
		return false
	}

	c, ok := compareValues(stored, want)
	if !ok {
		return f.Op == OpNeq
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// matchesText reports whether text appears in the name, code or any field value
func matchesText(rec Record, text string) bool {
	text = strings.ToLower(text)
	if strings.Contains(strings.ToLower(rec.Entity.Name), text) ||
		strings.Contains(strings.ToLower(rec.Entity.Code), text) {
		return true
	}
	for _, a := range rec.Fields {
		if strings.Contains(strings.ToLower(a.Value), text) {
			return true
		}
	}
	return false
}
