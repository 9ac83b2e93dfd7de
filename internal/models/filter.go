// ABOUTME: Tagged metadata filters applied during vector search
// ABOUTME: Conditions are validated per field type and combine as a conjunction
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field names a filterable metadata field
type Field string

const (
	FieldRating Field = "rating"
	FieldYear   Field = "year"
	FieldType   Field = "type"
)

// Op is a comparison operator
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

var fieldOps = map[Field][]Op{
	FieldRating: {OpEq, OpNe},
	FieldType:   {OpEq, OpNe},
	FieldYear:   {OpEq, OpNe, OpGt, OpGte, OpLt, OpLte},
}

// Condition constrains one metadata field. Value holds a string for rating and
// type, and an int for year once the condition has been validated.
type Condition struct {
	Field Field `json:"field"`
	Op    Op    `json:"op"`
	Value any   `json:"value"`
}

// Filter is a conjunction of conditions. The zero value matches everything.
type Filter []Condition

// Eq builds an equality condition
func Eq(field Field, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// YearAfter keeps titles released strictly after year
func YearAfter(year int) Condition {
	return Condition{Field: FieldYear, Op: OpGt, Value: year}
}

// YearBetween keeps titles released in [lo, hi]
func YearBetween(lo, hi int) []Condition {
	return []Condition{
		{Field: FieldYear, Op: OpGte, Value: lo},
		{Field: FieldYear, Op: OpLte, Value: hi},
	}
}

// Validate checks every condition and returns a copy with normalized values
func (f Filter) Validate() (Filter, error) {
	if len(f) == 0 {
		return nil, nil
	}
	out := make(Filter, 0, len(f))
	for i, c := range f {
		nc, err := c.normalize()
		if err != nil {
			return nil, NewOpError("filter", ErrInvalidInput, fmt.Errorf("condition %d: %w", i, err))
		}
		out = append(out, nc)
	}
	return out, nil
}

func (c Condition) normalize() (Condition, error) {
	ops, ok := fieldOps[c.Field]
	if !ok {
		return c, fmt.Errorf("unknown field %q", c.Field)
	}
	supported := false
	for _, op := range ops {
		if op == c.Op {
			supported = true
			break
		}
	}
	if !supported {
		return c, fmt.Errorf("operator %q not supported on %s", c.Op, c.Field)
	}

	switch c.Field {
	case FieldYear:
		n, err := toInt(c.Value)
		if err != nil {
			return c, fmt.Errorf("year: %w", err)
		}
		c.Value = n
	default:
		s, ok := c.Value.(string)
		if !ok {
			return c, fmt.Errorf("%s: expected string value, got %T", c.Field, c.Value)
		}
		c.Value = s
	}
	return c, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected whole number, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("expected integer value, got %T", v)
	}
}

// IntValue returns the integer value of a validated year condition
func (c Condition) IntValue() int {
	n, _ := c.Value.(int)
	return n
}

// StringValue returns the string value of a validated rating or type condition
func (c Condition) StringValue() string {
	s, _ := c.Value.(string)
	return s
}

// Matches evaluates a validated filter against metadata. A condition on a field
// never matches a record whose value for that field is missing.
func (f Filter) Matches(m MovieMetadata) bool {
	for _, c := range f {
		if !c.matches(m) {
			return false
		}
	}
	return true
}

func (c Condition) matches(m MovieMetadata) bool {
	switch c.Field {
	case FieldYear:
		if m.ReleaseYear == MissingReleaseYear {
			return false
		}
		return compareInt(m.ReleaseYear, c.Op, c.IntValue())
	case FieldRating:
		if m.Rating == MissingRating {
			return false
		}
		return compareString(m.Rating, c.Op, c.StringValue())
	case FieldType:
		if m.Type == "" {
			return false
		}
		return compareString(m.Type, c.Op, c.StringValue())
	}
	return false
}

func compareInt(have int, op Op, want int) bool {
	switch op {
	case OpEq:
		return have == want
	case OpNe:
		return have != want
	case OpGt:
		return have > want
	case OpGte:
		return have >= want
	case OpLt:
		return have < want
	case OpLte:
		return have <= want
	}
	return false
}

func compareString(have string, op Op, want string) bool {
	switch op {
	case OpEq:
		return have == want
	case OpNe:
		return have != want
	}
	return false
}

// String renders the filter for logs, e.g. "type eq Movie AND year gte 1990"
func (f Filter) String() string {
	if len(f) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(f))
	for _, c := range f {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value))
	}
	return strings.Join(parts, " AND ")
}

// Criteria is the flat filter form taken by the CLI flags and MCP tool
// arguments. Zero values are unset.
type Criteria struct {
	Rating  string `json:"rating,omitempty"`
	Type    string `json:"type,omitempty"`
	YearMin int    `json:"year_min,omitempty"`
	YearMax int    `json:"year_max,omitempty"`
	After   int    `json:"after,omitempty"`
}

// Filter converts the criteria into conditions
func (c Criteria) Filter() Filter {
	var f Filter
	if c.Type != "" {
		f = append(f, Eq(FieldType, c.Type))
	}
	if c.Rating != "" {
		f = append(f, Eq(FieldRating, c.Rating))
	}
	if c.After != 0 {
		f = append(f, YearAfter(c.After))
	}
	if c.YearMin != 0 {
		f = append(f, Condition{Field: FieldYear, Op: OpGte, Value: c.YearMin})
	}
	if c.YearMax != 0 {
		f = append(f, Condition{Field: FieldYear, Op: OpLte, Value: c.YearMax})
	}
	return f
}
