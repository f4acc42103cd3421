// Package replica implements the epidemic replication engine: per-origin
// causal logs, acknowledgment tracking, the Hello/Sync handshake with directly
// connected peers, and the Diff/Ack exchange that spreads and merges changes
// across a partially connected mesh.
package replica

import (
	"sort"
	"sync"

	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Replica is the local node's view of the replicated database. All methods
// are safe for concurrent use and run to completion without blocking on the
// network.
type Replica struct {
	Config
	mu    sync.Mutex
	key   node.Key
	local *nodeState
	// states holds every known node incarnation except placeholders; order
	// holds the same states in creation order.
	states map[node.Key]*nodeState
	order  []*nodeState
	// connected maps each directly connected peer to its state, which is a
	// placeholder until the peer's Hello or Sync arrives.
	connected map[node.ID]*nodeState
	peers     []node.ID
	seq       uint64
	// headChanged is set when the local head advances and cleared once
	// listeners have been told.
	headChanged bool
	// undo holds the steps that revert the operation in progress.
	undo          []func()
	listeners     listeners
	syncListeners map[node.ID][]func()
}

// New opens a replica with an empty local log.
func New(cfg Config) (*Replica, error) {
	cfg = cfg.Merge(DefaultConfig())
	if cfg.Instance == uuid.Nil {
		cfg.Instance = node.NewInstance()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Replica{
		Config:        cfg,
		key:           node.Key{ID: cfg.ID, Instance: cfg.Instance},
		states:        make(map[node.Key]*nodeState),
		connected:     make(map[node.ID]*nodeState),
		syncListeners: make(map[node.ID][]func()),
		seq:           1,
	}
	r.listeners.subs = make(map[int]func(revision.Revision))
	r.local = r.state(r.key)
	r.Logger.Debug("opened replica", zap.Stringer("key", r.key))
	return r, nil
}

// Key returns the key of the local node incarnation.
func (r *Replica) Key() node.Key { return r.key }

// Head returns the local node's current revision.
func (r *Replica) Head() revision.Revision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local.head().Revision
}

// Merge merges the change from base to fork into the local head. It is a
// no-op if the result equals the current head.
func (r *Replica) Merge(base, fork revision.Revision) error {
	r.mu.Lock()
	defer r.unlock()
	head := r.local.head().Revision
	merged, err := base.Merge(head, fork, r.resolver(r.ID, r.ID), r.ForeignKeys)
	if err != nil {
		return errors.Wrap(err, "merge")
	}
	if merged == head {
		return nil
	}
	r.Logger.Debug("local merge", zap.Stringer("key", r.key))
	return r.atomically(func() error {
		return r.acceptRevision(r.local, r.nextSeq(), merged)
	})
}

// RegisterListener calls fn with the current head, then again every time the
// local head changes. fn runs while the replica is locked and must not call
// back into it.
func (r *Replica) RegisterListener(fn func(head revision.Revision)) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.listeners.add(fn)
	fn(r.local.head().Revision)
	return sub
}

// RegisterSyncListener calls fn once peer has sent its first Sync on the
// current connection, immediately if it already has. fn runs while the
// replica is locked and must not call back into it.
func (r *Replica) RegisterSyncListener(peer node.ID, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.connected[peer]; ok && s.conn.gotSync {
		fn()
		return
	}
	r.syncListeners[peer] = append(r.syncListeners[peer], fn)
}

// UpdateView sets the directly connected peers. Peers that left lose their
// connection state but keep their history. Peers that joined get a fresh
// connection and the exchange with them starts immediately.
func (r *Replica) UpdateView(peers []node.ID) {
	r.mu.Lock()
	defer r.unlock()
	want := node.NewGroup(peers...).WhereNot(r.ID)
	for id, s := range r.connected {
		if !want.Contains(id) {
			r.Logger.Debug("peer left view", zap.Stringer("peer", s.key))
			s.conn = nil
			delete(r.connected, id)
		}
	}
	r.peers = want.IDs()
	for _, id := range r.peers {
		s, ok := r.connected[id]
		if !ok {
			s = r.placeholder(id)
			r.connected[id] = s
		}
		if s.conn == nil {
			r.Logger.Debug("peer joined view", zap.Stringer("peer", s.key))
			s.conn = newConnection()
			r.sendNext(s)
		}
	}
}

// Accept handles a message from the directly connected peer source. Messages
// from peers outside the current view are dropped. Errors marked with
// ErrProtocol concern only the message; the replica remains usable.
func (r *Replica) Accept(source node.ID, msg message.Message) error {
	r.mu.Lock()
	defer r.unlock()
	if _, ok := r.connected[source]; !ok {
		r.Logger.Debug("dropped message from unconnected peer",
			zap.Stringer("source", source),
			zap.Stringer("message", msg),
		)
		return nil
	}
	r.Metrics.MessageReceived(msg.Kind().String())
	err := r.atomically(func() error {
		switch m := msg.(type) {
		case message.Hello:
			r.acceptHello(source, m.Instance)
		case message.Sync:
			r.acceptSync(source, m.Instance)
		case message.Diff:
			return r.acceptDiff(m)
		case message.Ack:
			return r.acceptAckMessage(m)
		default:
			return errors.Newf("unexpected message type %T", msg)
		}
		return nil
	})
	if errors.Is(err, ErrProtocol) {
		r.Metrics.ProtocolViolation()
	}
	return errors.Wrapf(err, "accept %s from %s", msg, source)
}

// Seq returns the last sequence number allocated in the local log.
func (r *Replica) Seq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq - 1
}

// Acknowledged returns the sequence number of origin's log that the node
// with key by is believed to have incorporated.
func (r *Replica) Acknowledged(by, origin node.Key) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[by]
	if !ok {
		return 0, false
	}
	rec, ok := s.acknowledged[origin]
	if !ok {
		return 0, false
	}
	return rec.Seq, true
}

// Connected returns the keys of the directly connected peers, sorted by ID.
// A peer whose Hello has not arrived yet is reported with the placeholder
// instance.
func (r *Replica) Connected() []node.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]node.Key, 0, len(r.peers))
	for _, id := range r.peers {
		keys = append(keys, r.connected[id].key)
	}
	return keys
}

func (r *Replica) nextSeq() uint64 {
	s := r.seq
	r.seq++
	r.Metrics.LocalSequence(s)
	return s
}

func (r *Replica) resolver(left, right node.ID) boundResolver {
	return boundResolver{left: left, right: right, resolver: r.Resolver, metrics: r.Metrics}
}

// atomically runs fn, reverting every log insert, acknowledgment and
// sequence number it made if it fails. Messages go out only after every fold
// of an operation has succeeded, so there is nothing sent to take back.
func (r *Replica) atomically(fn func() error) error {
	seq, changed := r.seq, r.headChanged
	r.undo = nil
	err := fn()
	if err != nil {
		for i := len(r.undo) - 1; i >= 0; i-- {
			r.undo[i]()
		}
		r.seq, r.headChanged = seq, changed
		r.Metrics.LocalSequence(seq - 1)
	}
	r.undo = nil
	return err
}

// unlock tells listeners about a head change, if there was one, then releases
// the replica.
func (r *Replica) unlock() {
	if r.headChanged {
		r.headChanged = false
		r.listeners.notify(r.local.head().Revision)
	}
	r.mu.Unlock()
}

// |||||| LISTENERS ||||||

type listeners struct {
	mu   sync.Mutex
	next int
	subs map[int]func(revision.Revision)
}

func (l *listeners) add(fn func(revision.Revision)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	l.subs[id] = fn
	return Subscription{cancel: func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}}
}

func (l *listeners) notify(head revision.Revision) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(revision.Revision), len(ids))
	for i, id := range ids {
		fns[i] = l.subs[id]
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(head)
	}
}

// Subscription is returned by RegisterListener.
type Subscription struct {
	cancel func()
}

// Cancel stops further notifications. It is safe to call more than once.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}
