package memrev

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
)

// entry is an immutable slot in a tree. It holds either a subtree or a leaf
// value.
type entry struct {
	key   any
	child *tree
	value any
	leaf  bool
}

// tree is an immutable map from keys to entries once it is reachable from a
// committed Revision.
type tree struct {
	entries map[any]*entry
}

func (t *tree) get(key any) *entry {
	if t == nil {
		return nil
	}
	return t.entries[key]
}

func (t *tree) len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func (t *tree) clone() *tree {
	c := &tree{entries: make(map[any]*entry, t.len()+1)}
	if t != nil {
		for k, e := range t.entries {
			c.entries[k] = e
		}
	}
	return c
}

func (e *entry) subtree() *tree {
	if e == nil || e.leaf {
		return nil
	}
	return e.child
}

func (e *entry) leafValue() any {
	if e == nil || !e.leaf {
		return nil
	}
	return e.value
}

func sameEntry(a, b *entry) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.leaf != b.leaf {
		return false
	}
	if a.leaf {
		return valueEqual(a.value, b.value)
	}
	return a.child == b.child
}

func valueEqual(a, b any) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	return reflect.DeepEqual(a, b)
}

// sortedKeys returns the union of the keys of the given trees in a
// deterministic order.
func sortedKeys(trees ...*tree) []any {
	seen := make(map[any]struct{})
	var keys []any
	for _, t := range trees {
		if t == nil {
			continue
		}
		for k := range t.entries {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return compareKeys(keys[i], keys[j]) < 0 })
	return keys
}

func keyRank(k any) int {
	switch k.(type) {
	case revision.Table:
		return 0
	case revision.Column:
		return 1
	case bool:
		return 2
	case int64:
		return 3
	case uint64:
		return 4
	case float64:
		return 5
	case string:
		return 6
	}
	return 7
}

func compareKeys(a, b any) int {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case revision.Table:
		return compareOrdered(av, b.(revision.Table))
	case revision.Column:
		return compareOrdered(av, b.(revision.Column))
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case int64:
		return compareOrdered(av, b.(int64))
	case uint64:
		return compareOrdered(av, b.(uint64))
	case float64:
		return compareOrdered(av, b.(float64))
	case string:
		return compareOrdered(av, b.(string))
	}
	return compareOrdered(fmt.Sprint(a), fmt.Sprint(b))
}

func compareOrdered[T ~string | ~int64 | ~uint64 | ~float64](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// normalizeKey maps the integer and float kinds onto the representations the
// wire codec produces, so a key inserted locally and a key decoded from a peer
// land in the same map slot.
func normalizeKey(k any) (any, error) {
	switch v := k.(type) {
	case revision.Table, revision.Column, bool, int64, uint64, float64, string:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return uint64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	}
	return nil, errors.Newf("unsupported key type %T", k)
}

func normalizePath(path []any) ([]any, error) {
	out := make([]any, len(path))
	for i, k := range path {
		n, err := normalizeKey(k)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
