package attrs

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/strata/types"
)

var (
	numberShape = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
	dateShape   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// Infer returns the kind a written value looks like.
// Checked in order: boolean, number, ISO date, JSON object/array, text.
func Infer(value string) types.Kind {
	v := strings.TrimSpace(value)
	if v == "" {
		return types.KindText
	}

	if strings.EqualFold(v, "true") || strings.EqualFold(v, "false") {
		return types.KindBoolean
	}

	if numberShape.MatchString(v) && finite(v) {
		return types.KindNumber
	}

	if dateShape.MatchString(v) {
		if _, ok := types.ParseDate(v); ok {
			return types.KindDate
		}
	}

	if (v[0] == '{' || v[0] == '[') && json.Valid([]byte(v)) {
		return types.KindJSON
	}

	return types.KindText
}

// finite reports whether v parses as a float64 without overflow
func finite(v string) bool {
	n, err := strconv.ParseFloat(v, 64)
	return err == nil && !math.IsInf(n, 0) && !math.IsNaN(n)
}

// Decode decodes raw text as kind
func Decode(kind types.Kind, raw string) (types.Value, error) {
	return types.DecodeValue(kind, raw)
}
