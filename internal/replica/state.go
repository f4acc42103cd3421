package replica

import (
	"github.com/arya-analytics/epidemic/internal/causal"
	"github.com/arya-analytics/epidemic/internal/node"
	"go.uber.org/zap"
)

// nodeState is everything the replica knows about one node incarnation.
type nodeState struct {
	key node.Key
	log *causal.Log
	// acknowledged holds, for every known origin, the record this node is
	// believed to have incorporated.
	acknowledged map[node.Key]*causal.Record
	// conn is set while the node is a directly connected peer.
	conn *connection
}

func (s *nodeState) head() *causal.Record { return s.log.Head() }

// connection is the state of the exchange with a directly connected peer.
// It is discarded when the peer leaves the view.
type connection struct {
	// lastSent holds, per origin, the last record transmitted to the peer.
	lastSent       map[node.Key]*causal.Record
	readyToReceive bool
	sentHello      bool
	gotHello       bool
	sentSync       bool
	gotSync        bool
}

func newConnection() *connection {
	return &connection{lastSent: make(map[node.Key]*causal.Record), readyToReceive: true}
}

// state returns the state for key, creating it if it does not exist. A new
// state starts at its tail, every known node is assumed to have seen only its
// tail, and it is assumed to have seen only the tail of every known node.
func (r *Replica) state(key node.Key) *nodeState {
	if s, ok := r.states[key]; ok {
		return s
	}
	s := &nodeState{
		key:          key,
		log:          causal.NewLog(key, r.Empty),
		acknowledged: make(map[node.Key]*causal.Record),
	}
	r.states[key] = s
	r.order = append(r.order, s)
	for _, o := range r.order {
		if !key.IsPlaceholder() {
			o.acknowledged[key] = s.head()
			if o.conn != nil {
				delete(o.conn.lastSent, key)
			}
		}
		s.acknowledged[o.key] = o.log.Tail()
	}
	return s
}

// placeholder returns a state for a directly connected peer whose real
// instance is not yet known. It is not tracked in the state table.
func (r *Replica) placeholder(id node.ID) *nodeState {
	key := node.Placeholder(id)
	return &nodeState{
		key:          key,
		log:          causal.NewLog(key, r.Empty),
		acknowledged: make(map[node.Key]*causal.Record),
	}
}

// relabel resolves the directly connected state for source to the real key
// (source, instance), moving the connection over from whatever state held it
// before. It returns false if source is not directly connected.
func (r *Replica) relabel(source node.ID, instance node.Instance) (*nodeState, bool) {
	cur, ok := r.connected[source]
	if !ok {
		return nil, false
	}
	key := node.Key{ID: source, Instance: instance}
	if cur.key == key {
		return cur, true
	}
	s := r.state(key)
	conn := cur.conn
	if !cur.key.IsPlaceholder() {
		// The peer restarted without leaving the view. Nothing exchanged with
		// the previous incarnation applies to the new one.
		conn = newConnection()
	}
	cur.conn = nil
	s.conn = conn
	r.connected[source] = s
	r.Logger.Debug("relabelled peer",
		zap.Stringer("from", cur.key),
		zap.Stringer("to", s.key),
	)
	return s, true
}
