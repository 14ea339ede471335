package database

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Range bounds a field inclusively. Either bound may be nil.
type Range struct {
	GTE any `json:"gte,omitempty"`
	LTE any `json:"lte,omitempty"`
}

// Unbounded reports whether neither bound is set, which leaves the field
// unconstrained.
func (r Range) Unbounded() bool {
	return r.GTE == nil && r.LTE == nil
}

// Filter selects photos: every Exact field must equal its literal and every
// Range field must lie within its bounds. Fields not mentioned are
// unconstrained. Literals are strings or numbers; a value of a different type
// than the literal never matches.
//
//	{"exact": {"location": "auckland"},
//	 "range": {"capture_date": {"gte": "2024-12-01", "lte": "2024-12-05"}}}
type Filter struct {
	Exact map[string]any   `json:"exact,omitempty"`
	Range map[string]Range `json:"range,omitempty"`
}

// ParseFilter decodes and normalises a JSON filter document.
func ParseFilter(data []byte) (Filter, error) {
	var f Filter
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return f.Normalize()
}

// Normalize validates field names and converts every literal to string or
// float64.
func (f Filter) Normalize() (Filter, error) {
	out := Filter{}
	if len(f.Exact) > 0 {
		out.Exact = make(map[string]any, len(f.Exact))
	}
	for field, v := range f.Exact {
		if !fieldPattern.MatchString(field) {
			return Filter{}, fmt.Errorf("%w: bad field name %q", ErrInvalidFilter, field)
		}
		if v == nil {
			return Filter{}, fmt.Errorf("%w: exact value for %q is null", ErrInvalidFilter, field)
		}
		norm, err := normalizeValue(v)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: exact value for %q: %v", ErrInvalidFilter, field, err)
		}
		out.Exact[field] = norm
	}

	if len(f.Range) > 0 {
		out.Range = make(map[string]Range, len(f.Range))
	}
	for field, r := range f.Range {
		if !fieldPattern.MatchString(field) {
			return Filter{}, fmt.Errorf("%w: bad field name %q", ErrInvalidFilter, field)
		}
		var nr Range
		var err error
		if r.GTE != nil {
			if nr.GTE, err = normalizeValue(r.GTE); err != nil {
				return Filter{}, fmt.Errorf("%w: gte for %q: %v", ErrInvalidFilter, field, err)
			}
		}
		if r.LTE != nil {
			if nr.LTE, err = normalizeValue(r.LTE); err != nil {
				return Filter{}, fmt.Errorf("%w: lte for %q: %v", ErrInvalidFilter, field, err)
			}
		}
		out.Range[field] = nr
	}
	return out, nil
}

// ExactFields returns the exact-match field names in sorted order.
func (f Filter) ExactFields() []string {
	return sortedKeys(f.Exact)
}

// RangeFields returns the range field names in sorted order.
func (f Filter) RangeFields() []string {
	return sortedKeys(f.Range)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Matches evaluates a normalised filter against a photo in memory.
func (f Filter) Matches(p *Photo) bool {
	for field, want := range f.Exact {
		got, ok := p.Field(field)
		if !ok {
			return false
		}
		if c, ok := compareValues(got, want); !ok || c != 0 {
			return false
		}
	}
	for field, r := range f.Range {
		if r.Unbounded() {
			continue
		}
		got, ok := p.Field(field)
		if !ok {
			return false
		}
		if r.GTE != nil {
			if c, ok := compareValues(got, r.GTE); !ok || c < 0 {
				return false
			}
		}
		if r.LTE != nil {
			if c, ok := compareValues(got, r.LTE); !ok || c > 0 {
				return false
			}
		}
	}
	return true
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	}
	return nil, fmt.Errorf("unsupported literal %v of type %T", v, v)
}

// compareValues orders two normalised values of the same kind.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}
