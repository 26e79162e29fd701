// table/sorter.go
package table

import (
	"reflect"
	"sort"
)

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Row is one keyed entry of a sortable view (a room listing line, a
// leaderboard line, a per-player history line).
type Row = map[string]any

// Sort returns a new, stably ordered copy of rows by the given key.
// Rows themselves are shared, never mutated. Equal keys keep their
// prior relative order, so repeated clicks on the same column do not
// shuffle equal rows. Numeric values compare numerically, strings
// lexically; unknown or mixed types compare equal (no-op ordering).
//
// The second return value is false when the resulting order is
// identical to the input order; callers use it to skip re-notifying
// the presentation layer and avoid reactive feedback loops.
func Sort(rows []Row, key string, dir Direction) ([]Row, bool) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		c := compare(sorted[i][key], sorted[j][key])
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})

	changed := false
	for i := range rows {
		// Rows are shared maps; identity comparison is enough.
		if reflect.ValueOf(rows[i]).Pointer() != reflect.ValueOf(sorted[i]).Pointer() {
			changed = true
			break
		}
	}
	return sorted, changed
}

// compare returns -1/0/1 for a<b, unordered, a>b.
func compare(a, b any) int {
	if na, ok := numeric(a); ok {
		if nb, ok := numeric(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
		return 0
	}

	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			switch {
			case sa < sb:
				return -1
			case sa > sb:
				return 1
			}
		}
	}
	return 0
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
