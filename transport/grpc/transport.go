// Package grpc carries epidemic messages between nodes over gRPC. Every
// message is a unary Deliver call. Outbound messages are queued per peer and
// drained by one goroutine each, so Send never blocks the replica and
// messages to a peer arrive in the order they were sent.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Transport implements epidemic.Transport.
type Transport struct {
	Config
	pool   *pool
	server *grpc.Server
	lis    net.Listener
	handle epidemic.Handler

	mu      sync.Mutex
	addrs   map[node.ID]string
	senders map[node.ID]*sender

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
}

var (
	_ epidemic.Transport = (*Transport)(nil)
	_ replicationServer  = (*Transport)(nil)
)

func New(cfg Config) (*Transport, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Transport{
		Config:  cfg,
		pool:    newPool(),
		addrs:   make(map[node.ID]string, len(cfg.Peers)),
		senders: make(map[node.ID]*sender),
	}
	for id, addr := range cfg.Peers {
		t.addrs[id] = addr
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.g, t.ctx = errgroup.WithContext(t.ctx)
	return t, nil
}

// SetAddress sets the address the server of id listens on.
func (t *Transport) SetAddress(id node.ID, addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addrs[id] = addr
}

// Addr returns the address the server is listening on. It is nil until
// Configure has been called.
func (t *Transport) Addr() net.Addr {
	if t.lis == nil {
		return nil
	}
	return t.lis.Addr()
}

// Configure implements epidemic.Transport. It starts the server and hands
// every delivered message to handle.
func (t *Transport) Configure(ctx context.Context, id node.ID, handle epidemic.Handler) error {
	lis, err := net.Listen("tcp", t.Address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", t.Address)
	}
	t.lis = lis
	t.handle = handle
	t.server = grpc.NewServer()
	t.server.RegisterService(&replicationServiceDesc, t)
	t.Logger.Info("serving", zap.Stringer("node", id), zap.Stringer("address", lis.Addr()))
	t.g.Go(func() error {
		if err := t.server.Serve(lis); !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	t.g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-t.ctx.Done():
		}
		t.server.Stop()
		return nil
	})
	return nil
}

// Deliver implements the epidemic.v1.Replication service.
func (t *Transport) Deliver(_ context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	source, msg, err := decodeEnvelope(in.GetValue())
	if err != nil {
		t.Logger.Warn("dropped malformed envelope", zap.Error(err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := t.handle(source, msg); err != nil {
		if errors.Is(err, wire.ErrProtocol) {
			t.Logger.Warn("protocol violation", zap.Stringer("source", source), zap.Error(err))
		} else {
			t.Logger.Error("failed to handle message", zap.Stringer("source", source), zap.Error(err))
		}
	}
	return &emptypb.Empty{}, nil
}

// Send implements epidemic.Transport. It queues msg and returns immediately.
func (t *Transport) Send(source, destination node.ID, msg message.Message) {
	b, err := encodeEnvelope(source, msg)
	if err != nil {
		t.Logger.Error("failed to encode message", zap.Stringer("message", msg), zap.Error(err))
		return
	}
	t.sender(destination).push(b)
}

// Close implements epidemic.Transport. Messages still queued are dropped.
func (t *Transport) Close() error {
	t.cancel()
	if t.server != nil {
		t.server.Stop()
	}
	err := t.g.Wait()
	return errors.CombineErrors(err, t.pool.close())
}

func (t *Transport) sender(id node.ID) *sender {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.senders[id]
	if !ok {
		s = &sender{id: id, signal: make(chan struct{}, 1)}
		t.senders[id] = s
		t.g.Go(func() error { t.run(s); return nil })
	}
	return s
}

func (t *Transport) address(id node.ID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.addrs[id]
	return addr, ok
}

// |||||| SENDER ||||||

type sender struct {
	id      node.ID
	mu      sync.Mutex
	pending [][]byte
	signal  chan struct{}
}

func (s *sender) push(b []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, b)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *sender) drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (t *Transport) run(s *sender) {
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-s.signal:
		}
		for _, b := range s.drain() {
			if !t.deliver(s.id, b) {
				return
			}
		}
	}
}

// deliver retries until b is delivered, rejected as malformed, or the
// transport closes. It returns false if the transport closed.
func (t *Transport) deliver(id node.ID, b []byte) bool {
	for {
		err := t.attempt(id, b)
		if err == nil {
			return true
		}
		if status.Code(err) == codes.InvalidArgument {
			t.Logger.Warn("peer rejected message", zap.Stringer("peer", id), zap.Error(err))
			return true
		}
		t.Logger.Debug("delivery failed", zap.Stringer("peer", id), zap.Error(err))
		select {
		case <-t.ctx.Done():
			return false
		case <-time.After(t.RetryInterval):
		}
	}
}

func (t *Transport) attempt(id node.ID, b []byte) error {
	addr, ok := t.address(id)
	if !ok {
		return errors.Newf("no address for %s", id)
	}
	conn, err := t.pool.acquire(addr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.Timeout)
	defer cancel()
	return invokeDeliver(ctx, conn, b)
}
