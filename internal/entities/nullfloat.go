package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// NullFloat is a float that may be absent. The zero value is null, which is
// distinct from a valid 0.
type NullFloat struct {
	Value float64
	Valid bool
}

// Float returns a valid NullFloat
func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// Null returns an absent value
func Null() NullFloat {
	return NullFloat{}
}

// ParseNullFloat parses s, treating blank input as null
func ParseNullFloat(s string) (NullFloat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null(), fmt.Errorf("failed to parse number %q: %w", s, err)
	}
	return Float(v), nil
}

// String formats the value, or returns "" when null
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// MarshalCSV writes null as an empty cell
func (n NullFloat) MarshalCSV() (string, error) {
	return n.String(), nil
}

// UnmarshalCSV reads an empty cell as null
func (n *NullFloat) UnmarshalCSV(s string) error {
	v, err := ParseNullFloat(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}
