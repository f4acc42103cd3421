package memrev

import "github.com/arya-analytics/epidemic/revision"

// mergeTree merges left and right against their common base. It returns left
// itself when the result equals left, and nil when the result is empty.
func mergeTree(
	base, left, right *tree,
	path []any,
	conflicts revision.ConflictResolver,
) (*tree, error) {
	if left == right || base == right {
		return left, nil
	}
	if base == left {
		return right, nil
	}
	var (
		out     = make(map[any]*entry)
		changed bool
	)
	for _, k := range sortedKeys(left, right, base) {
		l := left.get(k)
		res, err := mergeEntry(base.get(k), l, right.get(k), append(path, k), conflicts)
		if err != nil {
			return nil, err
		}
		if res != l {
			changed = true
		}
		if res != nil {
			out[k] = res
		}
	}
	if !changed {
		return left, nil
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &tree{entries: out}, nil
}

func mergeEntry(
	b, l, r *entry,
	path []any,
	conflicts revision.ConflictResolver,
) (*entry, error) {
	if sameEntry(l, r) || sameEntry(b, r) {
		return l, nil
	}
	if sameEntry(b, l) {
		return r, nil
	}
	if isInterior(l) && isInterior(r) && isInterior(b) {
		child, err := mergeTree(b.subtree(), l.subtree(), r.subtree(), path, conflicts)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, nil
		}
		if l != nil && child == l.child {
			return l, nil
		}
		if r != nil && child == r.child {
			return r, nil
		}
		return &entry{key: path[len(path)-1], child: child}, nil
	}
	if !isLeaf(l) || !isLeaf(r) || !isLeaf(b) {
		// A leaf on one side and a subtree on the other has no cell to resolve.
		return l, nil
	}
	table, _ := path[0].(revision.Table)
	column, _ := path[len(path)-1].(revision.Column)
	pk := append([]any(nil), path[1:len(path)-1]...)
	v, err := conflicts.ResolveConflict(table, column, pk, b.leafValue(), l.leafValue(), r.leafValue())
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if v, err = normalizeValue(v); err != nil {
		return nil, err
	}
	if l != nil && valueEqual(l.value, v) {
		return l, nil
	}
	return &entry{key: path[len(path)-1], value: v, leaf: true}, nil
}

func isInterior(e *entry) bool { return e == nil || !e.leaf }

func isLeaf(e *entry) bool { return e == nil || e.leaf }
