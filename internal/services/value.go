package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prefhub/prefhub/internal/models"
)

// ValueKind tags the variants of PreferenceValue.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindJSON
)

// PreferenceValue is the typed form of a stored preference value. Values live
// as text in the store; parsing against the catalog's data type happens at
// write time only, so resolution never re-validates what it reads.
type PreferenceValue struct {
	Kind  ValueKind
	Bool  bool
	Str   string
	Int   int64
	Float float64
	JSON  json.RawMessage
}

// Raw returns the canonical text form persisted to the store.
func (v PreferenceValue) Raw() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindJSON:
		return string(v.JSON)
	default:
		return v.Str
	}
}

// Constraints restricts the values an override may take, per catalog entry.
// Min/Max apply to integer and float types, Enum and Pattern to strings.
type Constraints struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Enum    []string `json:"enum,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// ParseConstraints decodes the catalog's constraints column. An empty column
// means unconstrained.
func ParseConstraints(raw string) (*Constraints, error) {
	if strings.TrimSpace(raw) == "" {
		return &Constraints{}, nil
	}
	var c Constraints
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("malformed constraints: %w", err)
	}
	return &c, nil
}

// ParseValue coerces a raw candidate into the catalog's data type.
func ParseValue(dataType, raw string) (PreferenceValue, error) {
	switch dataType {
	case models.DataTypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return PreferenceValue{}, fmt.Errorf("%q is not a boolean", raw)
		}
		return PreferenceValue{Kind: KindBool, Bool: b}, nil

	case models.DataTypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return PreferenceValue{}, fmt.Errorf("%q is not an integer", raw)
		}
		return PreferenceValue{Kind: KindInt, Int: n}, nil

	case models.DataTypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return PreferenceValue{}, fmt.Errorf("%q is not a number", raw)
		}
		return PreferenceValue{Kind: KindFloat, Float: f}, nil

	case models.DataTypeJSON:
		if !json.Valid([]byte(raw)) {
			return PreferenceValue{}, fmt.Errorf("value is not valid JSON")
		}
		return PreferenceValue{Kind: KindJSON, JSON: json.RawMessage(raw)}, nil

	case models.DataTypeString, "":
		return PreferenceValue{Kind: KindString, Str: raw}, nil

	default:
		return PreferenceValue{}, fmt.Errorf("unknown data type %q", dataType)
	}
}

// Check validates a parsed value against the constraints.
func (c *Constraints) Check(v PreferenceValue) error {
	switch v.Kind {
	case KindInt, KindFloat:
		n := v.Float
		if v.Kind == KindInt {
			n = float64(v.Int)
		}
		if c.Min != nil && n < *c.Min {
			return fmt.Errorf("value %v is below minimum %v", v.Raw(), *c.Min)
		}
		if c.Max != nil && n > *c.Max {
			return fmt.Errorf("value %v is above maximum %v", v.Raw(), *c.Max)
		}
	case KindString:
		if len(c.Enum) > 0 {
			found := false
			for _, allowed := range c.Enum {
				if v.Str == allowed {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("value %q is not one of %s", v.Str, strings.Join(c.Enum, ", "))
			}
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err != nil {
				return fmt.Errorf("malformed pattern constraint: %w", err)
			}
			if !re.MatchString(v.Str) {
				return fmt.Errorf("value %q does not match pattern %s", v.Str, c.Pattern)
			}
		}
	}
	return nil
}

// CoerceValue parses and constraint-checks a candidate against a catalog
// entry in one step.
func CoerceValue(def *models.SystemDefault, raw string) (PreferenceValue, error) {
	value, err := ParseValue(def.DataType, raw)
	if err != nil {
		return PreferenceValue{}, err
	}
	constraints, err := ParseConstraints(def.Constraints)
	if err != nil {
		return PreferenceValue{}, err
	}
	if err := constraints.Check(value); err != nil {
		return PreferenceValue{}, err
	}
	return value, nil
}
