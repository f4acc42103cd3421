package memrev

import "github.com/arya-analytics/epidemic/revision"

type event struct {
	typ  revision.DiffType
	base any
	fork any
	// end is the index of the first event after the subtree of a Key event.
	end int
}

type diffResult struct {
	events []event
	pos    int
	cur    int
}

var _ revision.DiffResult = (*diffResult)(nil)

// Next implements revision.DiffResult.
func (d *diffResult) Next() revision.DiffType {
	if d.pos >= len(d.events) {
		d.cur = len(d.events)
		return revision.End
	}
	d.cur = d.pos
	d.pos++
	return d.events[d.cur].typ
}

// Base implements revision.DiffResult.
func (d *diffResult) Base() any {
	if d.cur >= len(d.events) {
		return nil
	}
	return d.events[d.cur].base
}

// Fork implements revision.DiffResult.
func (d *diffResult) Fork() any {
	if d.cur >= len(d.events) {
		return nil
	}
	return d.events[d.cur].fork
}

// Skip implements revision.DiffResult.
func (d *diffResult) Skip() {
	if d.cur < len(d.events) && d.events[d.cur].typ == revision.Key {
		d.pos = d.events[d.cur].end
	}
}

func (d *diffResult) emit(e event) int {
	d.events = append(d.events, e)
	return len(d.events) - 1
}

// walk appends the events describing the change from base to fork and
// reports whether any were appended.
func (d *diffResult) walk(base, fork *tree) bool {
	if base == fork {
		return false
	}
	start := len(d.events)
	for _, k := range sortedKeys(base, fork) {
		be, fe := base.get(k), fork.get(k)
		if sameEntry(be, fe) {
			continue
		}
		var bk, fk any
		if be != nil {
			bk = k
		}
		if fe != nil {
			fk = k
		}
		mark := len(d.events)
		i := d.emit(event{typ: revision.Key, base: bk, fork: fk})
		if (fe != nil && fe.leaf) || (fe == nil && be.leaf) {
			d.emit(event{typ: revision.Value, base: be.leafValue(), fork: fe.leafValue()})
		} else {
			d.emit(event{typ: revision.Descend})
			if !d.walk(be.subtree(), fe.subtree()) {
				// Equal or empty subtrees held by different pointers.
				d.events = d.events[:mark]
				continue
			}
			d.emit(event{typ: revision.Ascend})
		}
		d.events[i].end = len(d.events)
	}
	return len(d.events) > start
}
