package replica

import (
	"github.com/arya-analytics/epidemic/internal/causal"
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/wire"
	"go.uber.org/zap"
)

// |||||| HANDSHAKE ||||||

func (r *Replica) acceptHello(source node.ID, instance node.Instance) {
	s, ok := r.relabel(source, instance)
	if !ok {
		return
	}
	r.Logger.Debug("got hello", zap.Stringer("peer", s.key))
	first := !s.conn.gotHello
	s.conn.gotHello = true
	if first && s.conn.sentHello {
		// Our Hello may have arrived before the peer was connected to us, in
		// which case it was dropped.
		r.send(s, message.Hello{Instance: r.Instance})
	}
	r.sendNext(s)
}

func (r *Replica) acceptSync(source node.ID, instance node.Instance) {
	s, ok := r.relabel(source, instance)
	if !ok {
		return
	}
	r.Logger.Debug("got sync", zap.Stringer("peer", s.key))
	// A Sync is only sent once our Hello has arrived, so the peer's own Hello
	// went out before it even if it never got here.
	s.conn.gotHello = true
	if s.conn.gotSync {
		r.sendNext(s)
		return
	}
	s.conn.gotSync = true
	fns := r.syncListeners[source]
	delete(r.syncListeners, source)
	for _, fn := range fns {
		fn()
	}
	r.sendNextAll()
}

// readyForNewPeer returns true if every peer that was sent a Hello has
// answered with a Sync. A new peer is not greeted before then.
func (r *Replica) readyForNewPeer() bool {
	for _, s := range r.connected {
		if s.conn.sentHello && !s.conn.gotSync {
			return false
		}
	}
	return true
}

// |||||| DISSEMINATION ||||||

func (r *Replica) sendNextAll() {
	for _, id := range r.peers {
		if s, ok := r.connected[id]; ok {
			r.sendNext(s)
		}
	}
}

// sendNext sends the peer the next message it needs: a Hello, then one Diff
// or Ack per call for as long as it is behind on any origin, then a Sync.
func (r *Replica) sendNext(s *nodeState) {
	c := s.conn
	if c == nil || !c.readyToReceive {
		return
	}
	if !c.sentHello && r.readyForNewPeer() {
		c.sentHello = true
		r.send(s, message.Hello{Instance: r.Instance})
		return
	}
	if !c.gotHello {
		return
	}
	for _, o := range r.order {
		if o == s {
			continue
		}
		if head := o.head(); r.needsUpdate(s, head) {
			c.sentSync = false
			r.sendUpdate(s, head)
			return
		}
	}
	if !c.sentSync {
		c.sentSync = true
		r.send(s, message.Sync{Instance: r.Instance})
	}
}

// needsUpdate returns true if the peer is behind target on target's origin
// and has not already been sent everything up to target.
func (r *Replica) needsUpdate(s *nodeState, target *causal.Record) bool {
	acked, ok := s.acknowledged[target.Origin]
	if !ok {
		acked = r.state(target.Origin).log.Tail()
		s.acknowledged[target.Origin] = acked
	}
	if acked.Seq >= target.Seq {
		return false
	}
	last, ok := s.conn.lastSent[target.Origin]
	if !ok {
		s.conn.lastSent[target.Origin] = acked
		return true
	}
	if last.Seq < acked.Seq {
		last = acked
		s.conn.lastSent[target.Origin] = last
	}
	return last.Seq < target.Seq
}

// sendUpdate sends the record following the last one sent to the peer for
// target's origin. A merge marker whose source the peer still lacks is
// replaced by that source, so the peer receives the underlying change before
// the acknowledgment of it.
func (r *Replica) sendUpdate(s *nodeState, target *causal.Record) {
	for {
		last := s.conn.lastSent[target.Origin]
		rec := last.Next()
		if rec == nil {
			r.Logger.Error("lost track of log",
				zap.Stringer("peer", s.key),
				zap.Stringer("origin", target.Origin),
				zap.Uint64("seq", last.Seq),
			)
			return
		}
		if rec.IsMergeMarker() {
			if r.needsUpdate(s, rec.MergedFrom) {
				target = rec.MergedFrom
				continue
			}
			r.sendPrunedSource(s, rec)
			r.send(s, message.Ack{
				Acknowledger: rec.Origin,
				AckSeq:       rec.Seq,
				Origin:       rec.MergedFrom.Origin,
				Seq:          rec.MergedFrom.Seq,
			})
		} else if target.Origin != s.key {
			delta, err := wire.EncodeDelta(last.Revision, rec.Revision)
			if err != nil {
				r.Logger.Error("failed to encode diff",
					zap.Stringer("peer", s.key),
					zap.Stringer("origin", target.Origin),
					zap.Error(err),
				)
				return
			}
			r.send(s, message.Diff{Origin: target.Origin, Start: last.Seq, End: rec.Seq, Delta: delta})
		}
		s.conn.lastSent[target.Origin] = rec
		return
	}
}

// sendPrunedSource sends the record marker was merged from as a Diff from
// sequence 0 when that record has been pruned here. A peer given the
// source's log from a synthesized tail never received it and could not
// resolve the marker's Ack otherwise.
func (r *Replica) sendPrunedSource(s *nodeState, marker *causal.Record) {
	src := marker.MergedFrom
	if marker.Origin == s.key || src.Origin == s.key {
		return
	}
	if found, ok := r.state(src.Origin).log.Find(src.Seq); ok && found == src {
		return
	}
	delta, err := wire.EncodeDelta(r.Empty, src.Revision)
	if err != nil {
		r.Logger.Error("failed to encode pruned record",
			zap.Stringer("peer", s.key),
			zap.Stringer("origin", src.Origin),
			zap.Error(err),
		)
		return
	}
	r.send(s, message.Diff{Origin: src.Origin, Start: 0, End: src.Seq, Delta: delta})
}

func (r *Replica) send(s *nodeState, msg message.Message) {
	r.Logger.Debug("send", zap.Stringer("peer", s.key), zap.Stringer("message", msg))
	r.Metrics.MessageSent(msg.Kind().String())
	r.Network.Send(r.ID, s.key.ID, msg)
}
