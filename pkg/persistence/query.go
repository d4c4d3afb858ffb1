// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"fmt"
	"reflect"
	"sort"
)

const (
	DefaultMaxFindLimit = 1000
)

// Operator represents MongoDB-style query operators for filtering documents.
//
// Example usage:
//
//	query := persistence.NewQuery().
//	    Filter("grid", persistence.Eq, "products").
//	    Filter("menu_order", persistence.Gt, 3).
//	    Filter("action", persistence.In, []any{"put", "add"})
type Operator string

const (
	Eq  Operator = "$eq"  // Equal: field == value
	Ne  Operator = "$ne"  // Not equal: field != value
	Gt  Operator = "$gt"  // Greater than: field > value
	Gte Operator = "$gte" // Greater than or equal: field >= value
	Lt  Operator = "$lt"  // Less than: field < value
	Lte Operator = "$lte" // Less than or equal: field <= value
	In  Operator = "$in"  // In array: field IN (value1, value2, ...)
	Nin Operator = "$nin" // Not in array: field NOT IN (value1, value2, ...)
)

// FilterCondition represents a single filter criterion for querying documents.
type FilterCondition struct {
	Value interface{}
	Field string
	Op    Operator
}

// SortOrder represents sort direction. 1 is ascending, -1 descending.
type SortOrder int

const (
	Asc  SortOrder = 1  // Ascending order (A-Z, 0-9, oldest-newest)
	Desc SortOrder = -1 // Descending order (Z-A, 9-0, newest-oldest)
)

// SortField represents a field to sort by and its direction.
type SortField struct {
	Field string
	Order SortOrder
}

// Query represents filtering, sorting, and pagination criteria for finding documents.
//
// Multiple Filter calls are combined with AND. Multiple Sort calls define sort
// precedence, the first being the primary key.
//
//	query := persistence.NewQuery().
//	    Filter("location", persistence.Eq, "products").
//	    Sort("created_at", persistence.Desc).
//	    Limit(10).
//	    Skip(20)
type Query struct {
	Filters      []FilterCondition
	SortBy       []SortField
	LimitCount   int
	SkipCount    int
	MaxFindLimit int
}

// NewQuery creates an empty query builder.
func NewQuery() *Query {
	return &Query{}
}

// Filter adds a filter condition to the query.
func (q *Query) Filter(field string, op Operator, value interface{}) *Query {
	q.Filters = append(q.Filters, FilterCondition{
		Field: field,
		Op:    op,
		Value: value,
	})

	return q
}

// Sort adds a sort field to the query.
func (q *Query) Sort(field string, order SortOrder) *Query {
	q.SortBy = append(q.SortBy, SortField{
		Field: field,
		Order: order,
	})

	return q
}

// Limit sets the maximum number of documents to return. Negative values mean no limit.
func (q *Query) Limit(count int) *Query {
	if count < 0 {
		count = 0
	}

	q.LimitCount = count

	return q
}

// Skip sets the number of documents to skip before returning results.
func (q *Query) Skip(count int) *Query {
	if count < 0 {
		count = 0
	}

	q.SkipCount = count

	return q
}

func (q *Query) WithMaxFindLimit(limit int) *Query {
	if limit < 0 {
		limit = 0
	}

	q.MaxFindLimit = limit

	return q
}

// Matches reports whether doc satisfies every filter of the query.
func (q Query) Matches(doc Document) (bool, error) {
	for _, f := range q.Filters {
		ok, err := matchCondition(doc[f.Field], f)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// Apply filters, sorts and paginates docs in memory. Backends that cannot push
// the query down to their storage engine use it after loading a collection.
func (q Query) Apply(docs []Document) ([]Document, error) {
	out := make([]Document, 0, len(docs))

	for _, doc := range docs {
		ok, err := q.Matches(doc)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, doc)
		}
	}

	if len(q.SortBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, s := range q.SortBy {
				c := compareValues(out[i][s.Field], out[j][s.Field])
				if c == 0 {
					continue
				}

				if s.Order == Desc {
					return c > 0
				}

				return c < 0
			}

			return false
		})
	}

	if q.SkipCount > 0 {
		if q.SkipCount >= len(out) {
			return []Document{}, nil
		}

		out = out[q.SkipCount:]
	}

	limit := q.LimitCount
	if q.MaxFindLimit > 0 && (limit == 0 || limit > q.MaxFindLimit) {
		limit = q.MaxFindLimit
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func matchCondition(actual interface{}, f FilterCondition) (bool, error) {
	switch f.Op {
	case Eq:
		return compareValues(actual, f.Value) == 0, nil
	case Ne:
		return compareValues(actual, f.Value) != 0, nil
	case Gt:
		return actual != nil && compareValues(actual, f.Value) > 0, nil
	case Gte:
		return actual != nil && compareValues(actual, f.Value) >= 0, nil
	case Lt:
		return actual != nil && compareValues(actual, f.Value) < 0, nil
	case Lte:
		return actual != nil && compareValues(actual, f.Value) <= 0, nil
	case In, Nin:
		list := reflect.ValueOf(f.Value)
		if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
			return false, fmt.Errorf("operator %s on field %q requires a slice value", f.Op, f.Field)
		}

		found := false

		for i := 0; i < list.Len(); i++ {
			if compareValues(actual, list.Index(i).Interface()) == 0 {
				found = true

				break
			}
		}

		if f.Op == In {
			return found, nil
		}

		return !found, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", f.Op)
	}
}

// compareValues orders numbers numerically and strings lexically. Values of
// other types are only equal when deeply equal; otherwise nil sorts first and
// mismatched types compare by their formatted representation.
func compareValues(a, b interface{}) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}

	if a == nil {
		return -1
	}

	if b == nil {
		return 1
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if as < bs {
		return -1
	}

	return 1
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
