// Package query turns a filter predicate and a page index into a canonical
// paginated list query.
package query

import (
	"fmt"
	"maps"
	"time"

	"github.com/hay-kot/huddle/internal/core/fault"
)

// Known predicate keys.
const (
	KeyAll       = "all"
	KeyGoing     = "isGoing"
	KeyHost      = "isHost"
	KeyStartDate = "startDate"
)

// Reserved keys are set by the query itself and cannot be used as filters.
const (
	paramLimit  = "limit"
	paramOffset = "offset"
)

// Predicate maps filter keys to values. Values are strings, bools, ints,
// floats or a single time.Time. An empty predicate selects everything.
type Predicate map[string]any

// Validate checks value types, reserved keys and that at most one value is
// a date.
func (p Predicate) Validate() error {
	dates := 0
	for k, v := range p {
		if k == "" {
			return fmt.Errorf("predicate key is empty: %w", fault.ErrValidation)
		}
		if k == paramLimit || k == paramOffset {
			return fmt.Errorf("predicate key %q is reserved: %w", k, fault.ErrValidation)
		}

		switch v.(type) {
		case string, bool, int, int64, float64:
		case time.Time:
			dates++
		default:
			return fmt.Errorf("predicate %q has unsupported type %T: %w", k, v, fault.ErrValidation)
		}
	}

	if dates > 1 {
		return fmt.Errorf("predicate has %d date values, at most one allowed: %w", dates, fault.ErrValidation)
	}
	return nil
}

// Equal reports whether p and o have the same key set and values that
// serialize to the same query parameter. Two equal predicates always build
// the same query: int 3 equals float64 3, and dates compare at millisecond
// precision in UTC.
func (p Predicate) Equal(o Predicate) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !valueEqual(v, ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy; values are immutable scalars.
func (p Predicate) Clone() Predicate {
	if p == nil {
		return Predicate{}
	}
	return maps.Clone(p)
}

// WithFlag returns a copy that keeps the start date, drops every other
// entry and sets key to true. KeyAll leaves only the start date.
func (p Predicate) WithFlag(key string) Predicate {
	out := Predicate{}
	if d, ok := p[KeyStartDate]; ok {
		out[KeyStartDate] = d
	}
	if key != KeyAll {
		out[key] = true
	}
	return out
}

// WithStartDate returns a copy with the start date replaced. A zero time
// removes it.
func (p Predicate) WithStartDate(t time.Time) Predicate {
	out := p.Clone()
	if t.IsZero() {
		delete(out, KeyStartDate)
		return out
	}
	out[KeyStartDate] = t
	return out
}

func valueEqual(a, b any) bool {
	return formatValue(a) == formatValue(b)
}
