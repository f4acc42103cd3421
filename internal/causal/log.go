// Package causal implements the per-origin causal log: an append-mostly chain
// of records with owning forward links and backward links that are resolved
// through a prunable index.
package causal

import (
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
)

// ErrUnreachable is returned when a walk backward from the head hits a pruned
// record before reaching the requested sequence number.
var ErrUnreachable = errors.New("record is no longer reachable")

// Log is the causal log of a single origin.
type Log struct {
	origin node.Key
	empty  revision.Revision
	head   *Record
	index  map[uint64]*Record
}

// NewLog returns a log whose head is a sequence 0 record holding the empty
// revision.
func NewLog(origin node.Key, empty revision.Revision) *Log {
	l := &Log{origin: origin, empty: empty, index: make(map[uint64]*Record)}
	l.head = &Record{Origin: origin, Revision: empty, log: l}
	l.index[0] = l.head
	return l
}

// Origin returns the key of the node that owns the log.
func (l *Log) Origin() node.Key { return l.origin }

// Head walks forward from the recorded head to the true end of the chain.
func (l *Log) Head() *Record {
	h := l.head
	for h.next != nil {
		h = h.next
	}
	return h
}

// Tail returns the oldest record still reachable from the head. When that
// record is not sequence 0, a placeholder holding the empty revision is
// synthesized and spliced in front of it.
func (l *Log) Tail() *Record {
	t := l.head
	for {
		p, ok := t.Previous()
		if !ok {
			break
		}
		t = p
	}
	if t.MergedFrom != nil && t.MergedFrom.Origin == l.origin {
		t = t.MergedFrom
	}
	if t.Seq == 0 {
		return t
	}
	r := &Record{Origin: l.origin, Revision: l.empty, log: l, next: t, placeholder: true}
	t.prev, t.hasPrev = 0, true
	l.index[0] = r
	return r
}

// Find walks backward from the head to the record with the given sequence
// number.
func (l *Log) Find(seq uint64) (*Record, bool) {
	r := l.Head()
	for seq < r.Seq {
		p, ok := r.Previous()
		if !ok {
			return nil, false
		}
		r = p
	}
	return r, r.Seq == seq
}

// Insert places a record at seq, splicing it between its neighbours. If a
// record already exists at seq it is returned unchanged. The second return
// value is true if the log's head advanced.
func (l *Log) Insert(
	seq uint64,
	rev revision.Revision,
	mergedFrom *Record,
) (*Record, bool, error) {
	r := l.Head()
	for seq < r.Seq {
		p, ok := r.Previous()
		if !ok {
			return nil, false, errors.Wrapf(ErrUnreachable, "insert %s at %d", l.origin.Short(), seq)
		}
		r = p
	}
	if seq != r.Seq {
		nr := &Record{
			Origin:     l.origin,
			Revision:   rev,
			Seq:        seq,
			MergedFrom: mergedFrom,
			log:        l,
			prev:       r.Seq,
			hasPrev:    true,
		}
		if next := r.next; next != nil {
			nr.next = next
			next.prev, next.hasPrev = seq, true
		}
		r.next = nr
		l.index[seq] = nr
		r = nr
	}
	if l.head.Seq < r.Seq {
		l.head = r
		return r, true, nil
	}
	return r, false, nil
}

// Remove unlinks the record at seq from the chain, undoing the Insert that
// placed it there. It is a no-op if no record at seq is indexed.
func (l *Log) Remove(seq uint64) {
	r, ok := l.index[seq]
	if !ok {
		return
	}
	p, ok := r.Previous()
	if !ok {
		return
	}
	p.next = r.next
	if n := r.next; n != nil {
		n.prev = p.Seq
	}
	delete(l.index, seq)
	if l.head == r {
		l.head = p
	}
}

// Prune drops every record below min from the index, making it unreachable
// through Previous. Records stay alive for as long as something still points
// at them. It returns the number of records dropped.
func (l *Log) Prune(min uint64) (n int) {
	if min > l.head.Seq {
		min = l.head.Seq
	}
	for seq := range l.index {
		if seq < min {
			delete(l.index, seq)
			n++
		}
	}
	return n
}
