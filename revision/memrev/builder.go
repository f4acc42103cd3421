package memrev

import (
	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
)

var errCommitted = errors.New("memrev: builder already committed")

type builder struct {
	base      *Revision
	root      *tree
	owned     map[*tree]bool
	dirty     bool
	committed bool
}

var _ revision.Builder = (*builder)(nil)

// own returns a copy of t that the builder may mutate in place.
func (b *builder) own(t *tree) *tree {
	if t != nil && b.owned[t] {
		return t
	}
	c := t.clone()
	b.owned[c] = true
	return c
}

// descend returns a mutable tree for path, creating interior nodes as needed.
func (b *builder) descend(path []any) *tree {
	b.root = b.own(b.root)
	t := b.root
	for _, k := range path {
		e := t.entries[k]
		child := b.own(e.subtree())
		if e == nil || e.leaf || e.child != child {
			t.entries[k] = &entry{key: k, child: child}
		}
		t = child
	}
	return t
}

// Insert implements revision.Builder.
func (b *builder) Insert(path []any, value any) error {
	if b.committed {
		return errCommitted
	}
	if len(path) == 0 {
		return errors.New("memrev: insert requires a non-empty path")
	}
	path, err := normalizePath(path)
	if err != nil {
		return err
	}
	if value, err = normalizeValue(value); err != nil {
		return err
	}
	last := path[len(path)-1]
	t := b.descend(path[:len(path)-1])
	if e := t.entries[last]; e != nil && e.leaf && valueEqual(e.value, value) {
		return nil
	}
	t.entries[last] = &entry{key: last, value: value, leaf: true}
	b.dirty = true
	return nil
}

// InsertKey implements revision.Builder.
func (b *builder) InsertKey(path []any) error {
	if b.committed {
		return errCommitted
	}
	path, err := normalizePath(path)
	if err != nil {
		return err
	}
	b.descend(path)
	b.dirty = true
	return nil
}

// Delete implements revision.Builder.
func (b *builder) Delete(path []any) error {
	if b.committed {
		return errCommitted
	}
	if len(path) == 0 {
		return errors.New("memrev: delete requires a non-empty path")
	}
	path, err := normalizePath(path)
	if err != nil {
		return err
	}
	// Bail before copying anything if the path does not exist.
	t := b.root
	for i, k := range path {
		e := t.get(k)
		if e == nil || (e.leaf && i < len(path)-1) {
			return nil
		}
		t = e.subtree()
	}
	parents := make([]*tree, len(path))
	b.root = b.own(b.root)
	t = b.root
	for i, k := range path[:len(path)-1] {
		parents[i] = t
		child := b.own(t.entries[k].child)
		t.entries[k] = &entry{key: k, child: child}
		t = child
	}
	parents[len(path)-1] = t
	delete(t.entries, path[len(path)-1])
	for i := len(path) - 1; i > 0; i-- {
		if len(parents[i].entries) > 0 {
			break
		}
		delete(parents[i-1].entries, path[i-1])
	}
	b.dirty = true
	return nil
}

// Commit implements revision.Builder.
func (b *builder) Commit() (revision.Revision, error) {
	if b.committed {
		return nil, errCommitted
	}
	b.committed = true
	if !b.dirty {
		return b.base, nil
	}
	if b.root.len() == 0 {
		return empty, nil
	}
	return &Revision{root: b.root}, nil
}
