package replica

import (
	"github.com/arya-analytics/epidemic/internal/causal"
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

func (r *Replica) acceptDiff(d message.Diff) error {
	if d.Origin.IsPlaceholder() {
		return errors.Wrapf(ErrUnexpectedKey, "diff origin %s", d.Origin)
	}
	if d.End <= d.Start {
		return errors.Wrapf(ErrMissedDiff, "empty range %d..%d", d.Start, d.End)
	}
	r.Logger.Debug("accept diff",
		zap.Stringer("origin", d.Origin),
		zap.Uint64("start", d.Start),
		zap.Uint64("end", d.End),
	)
	s := r.state(d.Origin)
	if rec, ok := s.log.Find(d.End); ok {
		// Redelivery: the record is already in the log.
		return r.acceptRevision(s, d.End, rec.Revision)
	}
	rec, ok := s.log.Find(d.Start)
	if ok {
		rev, err := d.Delta.Apply(rec.Revision)
		if err != nil {
			return errors.Wrapf(err, "apply diff from %s", d.Origin.Short())
		}
		return r.acceptRevision(s, d.End, rev)
	}
	if rec == nil {
		return errors.Wrapf(ErrObsoleteDiff, "%s at %d", d.Origin.Short(), d.Start)
	}
	return errors.Wrapf(ErrMissedDiff, "%s has no record at %d", d.Origin.Short(), d.Start)
}

func (r *Replica) acceptAckMessage(a message.Ack) error {
	if a.Acknowledger.IsPlaceholder() || a.Origin.IsPlaceholder() {
		return errors.Wrapf(ErrUnexpectedKey, "ack %s of %s", a.Acknowledger, a.Origin)
	}
	return r.acceptAck(a.Acknowledger, a.AckSeq, a.Origin, a.Seq)
}

// acceptRevision records rev at seq in s's log, then has the local node
// acknowledge it. The acknowledgment is what merges the record into the local
// head.
func (r *Replica) acceptRevision(s *nodeState, seq uint64, rev revision.Revision) error {
	if err := r.insert(s, seq, rev, nil); err != nil {
		return err
	}
	if r.local.acknowledged[s.key].Seq >= seq {
		r.sendNextAll()
		return nil
	}
	return r.acceptAck(r.key, r.nextSeq(), s.key, seq)
}

// acceptAck records that acknowledger, at its own sequence number ackSeq, has
// incorporated origin's log up to seq. Unless the record at seq is itself a
// merge marker, the merge is replayed into acknowledger's log and the local
// node in turn acknowledges the result.
func (r *Replica) acceptAck(acknowledger node.Key, ackSeq uint64, origin node.Key, seq uint64) error {
	s := r.state(acknowledger)
	r.state(origin)
	rec := s.acknowledged[origin]
	if rec.Seq < seq {
		base := rec
		for rec != nil && rec.Seq < seq {
			rec = rec.Next()
		}
		if rec == nil || rec.Seq != seq {
			return errors.Wrapf(ErrMissedDiff, "%s has no record at %d", origin.Short(), seq)
		}
		if !rec.IsMergeMarker() {
			merged, err := r.fold(base, s.head(), rec, acknowledger, origin)
			if err != nil {
				return errors.Wrapf(err, "merge %s@%d into %s", origin.Short(), seq, acknowledger.Short())
			}
			if err := r.insert(s, ackSeq, merged, rec); err != nil {
				return err
			}
		}
		s.acknowledged[origin] = rec
		r.undo = append(r.undo, func() { s.acknowledged[origin] = base })
		r.Logger.Debug("accept ack",
			zap.Stringer("acknowledger", acknowledger),
			zap.Uint64("ackSeq", ackSeq),
			zap.Stringer("origin", origin),
			zap.Uint64("seq", seq),
		)
		if !rec.IsMergeMarker() {
			if err := r.acceptAck(r.key, r.nextSeq(), acknowledger, ackSeq); err != nil {
				return err
			}
		}
	}
	r.sendNextAll()
	return nil
}

// fold merges every change between base and target into head's revision,
// one step at a time. Merge markers are skipped: the change they stand for
// reaches the fold through the log it was merged from. A marker directly
// after a placeholder is merged anyway, since it also carries the pruned
// history the placeholder stands in for. Nothing is recorded until the whole
// fold has succeeded.
func (r *Replica) fold(base, head, target *causal.Record, headKey, forkKey node.Key) (revision.Revision, error) {
	var (
		conflicts = r.resolver(headKey.ID, forkKey.ID)
		result    = head.Revision
	)
	for rec := base.Next(); base != target; base, rec = rec, rec.Next() {
		if rec.IsMergeMarker() && !base.IsPlaceholder() {
			continue
		}
		var err error
		result, err = base.Revision.Merge(result, rec.Revision, conflicts, r.ForeignKeys)
		if err != nil {
			return nil, err
		}
		r.Metrics.Merge()
	}
	return result, nil
}

// insert places rev at seq in s's log unless a record is already there.
func (r *Replica) insert(s *nodeState, seq uint64, rev revision.Revision, mergedFrom *causal.Record) error {
	if _, ok := s.log.Find(seq); ok {
		return nil
	}
	_, advanced, err := s.log.Insert(seq, rev, mergedFrom)
	if err != nil {
		return errors.Mark(err, ErrObsoleteDiff)
	}
	r.undo = append(r.undo, func() { s.log.Remove(seq) })
	if advanced && s == r.local {
		r.headChanged = true
	}
	return nil
}
