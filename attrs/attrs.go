// Package attrs infers, validates and maps dynamic entity attributes.
//
// Attributes are stored as text with an inferred kind. This package bridges
// between that schemaless bag and typed Go structs using struct tags.
//
// Usage:
//
//	type Contact struct {
//	    Email string    `attr:"email"`
//	    Age   int       `attr:"age"`
//	    Since time.Time `attr:"since,omitempty"`
//	}
//
//	// Read: attributes → struct
//	var c Contact
//	err := attrs.Scan(fields, &c)
//
//	// Write: struct → field map for BulkSet
//	values := attrs.From(c)
package attrs

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/types"
)

var timeType = reflect.TypeOf(time.Time{})

// Values decodes attributes into a name → Go value map.
// Undecodable attributes are returned as their raw text.
func Values(fields []types.Attribute) map[string]any {
	m := make(map[string]any, len(fields))
	for _, a := range fields {
		v, err := a.Typed()
		if err != nil {
			m[a.Name] = a.Value
			continue
		}
		m[a.Name] = v.Interface()
	}
	return m
}

// Scan reads decoded attributes into a struct using `attr` tags.
// Fields without a matching attribute are left at their zero value, as are
// fields whose stored text no longer matches its kind. The first such
// decode failure is returned after every other field has been set.
func Scan(fields []types.Attribute, dst any) error {
	if len(fields) == 0 {
		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil
	}

	byName := make(map[string]types.Attribute, len(fields))
	for _, a := range fields {
		byName[a.Name] = a
	}

	var first error
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := tagKey(field)
		if key == "" {
			continue
		}

		a, ok := byName[key]
		if !ok {
			continue
		}

		val, err := a.Typed()
		if err != nil {
			if first == nil {
				first = errors.WithOp(err, "scan", a.TenantID, a.EntityID, a.Name)
			}
			continue
		}

		setField(v.Field(i), val)
	}

	return first
}

// From converts a struct into a field name → text value map using `attr` tags.
// Fields tagged with "omitempty" are skipped when at their zero value.
func From(src any) map[string]string {
	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	m := make(map[string]string)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("attr")
		if tag == "" || tag == "-" {
			continue
		}

		key, omitempty := parseTag(tag)
		fv := v.Field(i)

		if omitempty && fv.IsZero() {
			continue
		}

		// Dereference pointers for clean values
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		m[key] = formatField(fv)
	}

	return m
}

func tagKey(f reflect.StructField) string {
	tag := f.Tag.Get("attr")
	if tag == "" || tag == "-" {
		return ""
	}
	key, _ := parseTag(tag)
	return key
}

func parseTag(tag string) (key string, omitempty bool) {
	parts := strings.SplitN(tag, ",", 2)
	key = parts[0]
	if len(parts) > 1 && parts[1] == "omitempty" {
		omitempty = true
	}
	return
}

func formatField(fv reflect.Value) string {
	if fv.Type() == timeType {
		return fv.Interface().(time.Time).Format(time.RFC3339Nano)
	}

	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(fv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(fv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(fv.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(fv.Bool())
	}

	b, err := json.Marshal(fv.Interface())
	if err != nil {
		return ""
	}
	return string(b)
}

func setField(fv reflect.Value, val types.Value) {
	if fv.Type() == timeType {
		if val.Kind == types.KindDate {
			fv.Set(reflect.ValueOf(val.Time))
		}
		return
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(val.String())

	case reflect.Int, reflect.Int64:
		if val.Kind == types.KindNumber {
			fv.SetInt(int64(val.Number))
		}

	case reflect.Float64:
		if val.Kind == types.KindNumber {
			fv.SetFloat(val.Number)
		}

	case reflect.Bool:
		if val.Kind == types.KindBoolean {
			fv.SetBool(val.Bool)
		}

	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.String && val.Kind == types.KindJSON {
			var items []any
			if err := json.Unmarshal(val.JSON, &items); err != nil {
				return
			}
			strs := make([]string, 0, len(items))
			for _, item := range items {
				if s, ok := item.(string); ok {
					strs = append(strs, s)
				}
			}
			fv.Set(reflect.ValueOf(strs))
		}

	case reflect.Pointer:
		// *float64, *bool, etc.
		if fv.Type().Elem().Kind() == reflect.Float64 && val.Kind == types.KindNumber {
			n := val.Number
			fv.Set(reflect.ValueOf(&n))
		}
		if fv.Type().Elem().Kind() == reflect.Bool && val.Kind == types.KindBoolean {
			b := val.Bool
			fv.Set(reflect.ValueOf(&b))
		}
	}
}
