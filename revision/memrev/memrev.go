// Package memrev is an in-memory, persistent implementation of
// revision.Revision. Revisions share structure: a Builder copies only the path
// to the entries it touches.
package memrev

import (
	"fmt"
	"strings"

	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
)

// Revision is an immutable keyed tree.
type Revision struct {
	root *tree
}

var _ revision.Revision = (*Revision)(nil)

var empty = &Revision{root: &tree{entries: map[any]*entry{}}}

// Empty returns the shared empty Revision.
func Empty() *Revision { return empty }

func cast(r revision.Revision) (*Revision, error) {
	m, ok := r.(*Revision)
	if !ok || m == nil {
		return nil, errors.Newf("memrev: cannot operate on revision of type %T", r)
	}
	return m, nil
}

// Merge implements revision.Revision.
func (r *Revision) Merge(
	head, fork revision.Revision,
	conflicts revision.ConflictResolver,
	_ revision.ForeignKeyResolver,
) (revision.Revision, error) {
	h, err := cast(head)
	if err != nil {
		return nil, err
	}
	f, err := cast(fork)
	if err != nil {
		return nil, err
	}
	root, err := mergeTree(r.root, h.root, f.root, nil, conflicts)
	if err != nil {
		return nil, err
	}
	if root == h.root {
		return head, nil
	}
	if root == f.root {
		return fork, nil
	}
	if root == nil {
		return empty, nil
	}
	return &Revision{root: root}, nil
}

// Diff implements revision.Revision.
func (r *Revision) Diff(fork revision.Revision, _ bool) revision.DiffResult {
	f, err := cast(fork)
	if err != nil {
		// A diff against a foreign implementation has nothing comparable.
		return &diffResult{}
	}
	d := &diffResult{}
	d.walk(r.root, f.root)
	return d
}

// Builder implements revision.Revision.
func (r *Revision) Builder() revision.Builder {
	return &builder{base: r, root: r.root, owned: make(map[*tree]bool)}
}

// Get returns the leaf value at path.
func (r *Revision) Get(path ...any) (any, bool) {
	path, err := normalizePath(path)
	if err != nil {
		return nil, false
	}
	t := r.root
	for i, k := range path {
		e := t.get(k)
		if e == nil {
			return nil, false
		}
		if i == len(path)-1 {
			return e.value, e.leaf
		}
		if e.leaf {
			return nil, false
		}
		t = e.child
	}
	return nil, false
}

// Len returns the number of leaves in the revision.
func (r *Revision) Len() (n int) {
	var count func(t *tree)
	count = func(t *tree) {
		if t == nil {
			return
		}
		for _, e := range t.entries {
			if e.leaf {
				n++
			} else {
				count(e.child)
			}
		}
	}
	count(r.root)
	return n
}

// String renders one line per leaf in key order.
func (r *Revision) String() string {
	var (
		sb   strings.Builder
		path []any
		walk func(t *tree)
	)
	walk = func(t *tree) {
		for _, k := range sortedKeys(t) {
			e := t.entries[k]
			path = append(path, k)
			if e.leaf {
				fmt.Fprintf(&sb, "%v = %v\n", path, e.value)
			} else {
				walk(e.child)
			}
			path = path[:len(path)-1]
		}
	}
	walk(r.root)
	return sb.String()
}

// Set returns a revision equal to base with the leaf at path set to value.
func Set(base revision.Revision, value any, path ...any) (revision.Revision, error) {
	b := base.Builder()
	if err := b.Insert(path, value); err != nil {
		return nil, err
	}
	return b.Commit()
}

// Remove returns a revision equal to base without the subtree at path.
func Remove(base revision.Revision, path ...any) (revision.Revision, error) {
	b := base.Builder()
	if err := b.Delete(path); err != nil {
		return nil, err
	}
	return b.Commit()
}

func normalizeValue(v any) (any, error) {
	switch v.(type) {
	case nil, []byte:
		return v, nil
	}
	return normalizeKey(v)
}
