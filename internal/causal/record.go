package causal

import (
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
)

// Record is one entry in an origin's causal log. Its content never changes
// after creation; only its links to neighbouring records do.
type Record struct {
	// Origin is the key of the log the record belongs to.
	Origin node.Key
	// Revision is the snapshot of the origin's database at Seq.
	Revision revision.Revision
	// Seq increases strictly along Next.
	Seq uint64
	// MergedFrom is set on merge markers: records that only state that the
	// origin has incorporated another log up to and including MergedFrom.
	MergedFrom *Record

	next        *Record
	prev        uint64
	hasPrev     bool
	placeholder bool
	log         *Log
}

// Next returns the chronologically later record in the same log, or nil at
// the head.
func (r *Record) Next() *Record { return r.next }

// Previous resolves the chronologically earlier record. It returns false at
// the beginning of history or when the earlier record has been pruned.
func (r *Record) Previous() (*Record, bool) {
	if !r.hasPrev || r.log == nil {
		return nil, false
	}
	p, ok := r.log.index[r.prev]
	return p, ok
}

// IsMergeMarker returns true if the record marks an incorporation of
// another log rather than carrying a change of its own.
func (r *Record) IsMergeMarker() bool { return r.MergedFrom != nil }

// IsPlaceholder returns true if the record was synthesized by Tail to stand in
// for pruned history. Its successor carries everything that history held.
func (r *Record) IsPlaceholder() bool { return r.placeholder }
