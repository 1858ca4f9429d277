package query

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hay-kot/huddle/internal/core/fault"
)

// isoMillis matches JavaScript's Date.toISOString for UTC instants.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Param is a serialized predicate entry.
type Param struct {
	Key   string
	Value string
}

// Query is a canonical paginated list query. Params are sorted by key, so
// two queries built from equal inputs compare equal regardless of map order.
type Query struct {
	Limit  int
	Offset int
	Params []Param
}

// Build creates the query for page (zero based) of size pageSize filtered
// by p.
func Build(p Predicate, page, pageSize int) (Query, error) {
	if page < 0 {
		return Query{}, fmt.Errorf("page %d is negative: %w", page, fault.ErrValidation)
	}
	if pageSize < 1 {
		return Query{}, fmt.Errorf("page size %d must be positive: %w", pageSize, fault.ErrValidation)
	}
	if err := p.Validate(); err != nil {
		return Query{}, err
	}

	params := make([]Param, 0, len(p))
	for k, v := range p {
		params = append(params, Param{Key: k, Value: formatValue(v)})
	}
	slices.SortFunc(params, func(a, b Param) int {
		return strings.Compare(a.Key, b.Key)
	})

	return Query{
		Limit:  pageSize,
		Offset: page * pageSize,
		Params: params,
	}, nil
}

// Page returns the zero based page index the query addresses.
func (q Query) Page() int {
	if q.Limit == 0 {
		return 0
	}
	return q.Offset / q.Limit
}

// Values returns the query as URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set(paramLimit, strconv.Itoa(q.Limit))
	v.Set(paramOffset, strconv.Itoa(q.Offset))
	for _, p := range q.Params {
		v.Set(p.Key, p.Value)
	}
	return v
}

// Encode returns the canonical URL query string.
func (q Query) Encode() string {
	return q.Values().Encode()
}

func (q Query) String() string {
	return q.Encode()
}

// Equal reports whether two queries describe the same request.
func (q Query) Equal(o Query) bool {
	return q.Limit == o.Limit && q.Offset == o.Offset && slices.Equal(q.Params, o.Params)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(isoMillis)
	default:
		return fmt.Sprint(v)
	}
}
