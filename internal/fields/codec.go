// Package fields reads values out of CRM custom-field collections.
package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/orderline/orders-bff/internal/domain"
)

// Get finds a field by id. An empty id never matches.
func Get(fields []domain.CustomField, id string) (*domain.CustomField, bool) {
	if id == "" {
		return nil, false
	}
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], true
		}
	}
	return nil, false
}

// Resolve returns the effective value of a field. Representations are tried in order:
// direct value, string, number, first array element.
func Resolve(field *domain.CustomField) (any, bool) {
	if field == nil {
		return nil, false
	}
	if field.Value != nil {
		return field.Value, true
	}
	if field.FieldValueString != nil {
		return *field.FieldValueString, true
	}
	if field.FieldValueNumber != nil {
		return *field.FieldValueNumber, true
	}
	if len(field.FieldValueArray) > 0 && field.FieldValueArray[0] != nil {
		return field.FieldValueArray[0], true
	}
	return nil, false
}

// Lookup combines Get and Resolve.
func Lookup(fields []domain.CustomField, id string) (any, bool) {
	field, ok := Get(fields, id)
	if !ok {
		return nil, false
	}
	return Resolve(field)
}

// LookupString resolves a field and renders it as a string.
func LookupString(fields []domain.CustomField, id string) (string, bool) {
	val, ok := Lookup(fields, id)
	if !ok {
		return "", false
	}
	return String(val), true
}

// String renders a resolved value as text.
func String(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Number converts a resolved value into a float.
func Number(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// Truthy mirrors loose truthiness: absent, empty text, zero and false are all false.
func Truthy(val any) bool {
	switch v := val.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		return v.String() != "" && v.String() != "0"
	default:
		return true
	}
}
