package adsb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleField can hold either a string, a number or a boolean. JSON null and
// absent keys leave it unset.
type FlexibleField struct {
	value any
	set   bool
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	// null is the same as an absent key
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.value = nil
		f.set = false
		return nil
	}

	// Try to unmarshal as a number first
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		f.set = true
		return nil
	}

	// If that fails, try to unmarshal as a string
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		f.set = true
		return nil
	}

	// If both fail, try to unmarshal as a boolean
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value = b
		f.set = true
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// MarshalJSON writes the held value back out, or null when unset
func (f FlexibleField) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// IsSet reports whether the field carried a non-null value
func (f *FlexibleField) IsSet() bool {
	return f.set
}

// IsNumber reports whether the field holds a JSON number
func (f *FlexibleField) IsNumber() bool {
	_, ok := f.value.(float64)
	return ok
}

// IsGround reports whether the field is the literal "ground" altitude marker
func (f *FlexibleField) IsGround() bool {
	s, ok := f.value.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "ground")
}

// Float64 returns the value as a float64
func (f *FlexibleField) Float64() float64 {
	switch v := f.value.(type) {
	case float64:
		return v
	case string:
		if v == "" || v == "ground" {
			return 0
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Int returns the value as an int, truncating fractional numbers
func (f *FlexibleField) Int() int {
	switch v := f.value.(type) {
	case float64:
		return int(v)
	case string:
		if v == "" {
			return 0
		}
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return int(f.Float64())
		}
		return i
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// String returns the value as a string
func (f *FlexibleField) String() string {
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// NewNumberField builds a set numeric field
func NewNumberField(v float64) FlexibleField {
	return FlexibleField{value: v, set: true}
}

// NewStringField builds a set string field
func NewStringField(v string) FlexibleField {
	return FlexibleField{value: v, set: true}
}
