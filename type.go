package meltsenv

import (
	"fmt"
	"strconv"
	"strings"
)

// The typed getters operate on the table's canonical scalar set
// (bool, int64, float64, string) plus plain int from Go-side registration.

// String retrieves a setting value rendered the way the encoder writes it:
// booleans come back as True/False and floats keep a mantissa marker, so the
// result is a valid value token for an environment file line.
func (s *Settings) String(key string) (string, error) {
	val, found := s.Get(key)
	if !found {
		return "", fmt.Errorf("setting not present: %s", key)
	}
	switch val.(type) {
	case nil, bool, int, int64, float64, string:
		return formatValue(val), nil
	}
	return "", fmt.Errorf("cannot convert type %T to string for setting %s", val, key)
}

// Int64 retrieves an int64 setting value. Floats truncate, booleans map to
// 0 and 1, strings must parse as a base-10 integer.
func (s *Settings) Int64(key string) (int64, error) {
	val, found := s.Get(key)
	if !found {
		return 0, fmt.Errorf("setting not present: %s", key)
	}
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to int64 for setting %s: %w", v, key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("cannot convert type %T to int64 for setting %s", val, key)
}

// Bool retrieves a boolean setting value. Strings follow the file format's
// case-insensitive True/False literals; numbers are false only at zero.
func (s *Settings) Bool(key string) (bool, error) {
	val, found := s.Get(key)
	if !found {
		return false, fmt.Errorf("setting not present: %s", key)
	}
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		if strings.EqualFold(v, "true") {
			return true, nil
		}
		if strings.EqualFold(v, "false") {
			return false, nil
		}
		return false, fmt.Errorf("cannot convert string %q to bool for setting %s", v, key)
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return false, fmt.Errorf("cannot convert type %T to bool for setting %s", val, key)
}

// Float64 retrieves a float64 setting value.
func (s *Settings) Float64(key string) (float64, error) {
	val, found := s.Get(key)
	if !found {
		return 0.0, fmt.Errorf("setting not present: %s", key)
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0.0, fmt.Errorf("cannot convert string %q to float64 for setting %s: %w", v, key, err)
		}
		return f, nil
	}
	return 0.0, fmt.Errorf("cannot convert type %T to float64 for setting %s", val, key)
}
