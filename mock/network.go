package mock

import (
	"context"
	"sync"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/cockroachdb/errors"
)

// Handler receives a message delivered by the Network.
type Handler func(source node.ID, msg message.Message) error

// Envelope is a message queued for delivery.
type Envelope struct {
	Source      node.ID
	Destination node.ID
	Message     message.Message
}

type envelope struct {
	source, destination node.ID
	data                []byte
}

// Network is an in-memory network that queues every message sent on it
// until it is delivered by Step or Flush. Messages travel in their encoded
// form and are delivered in the order they were sent.
type Network struct {
	mu     sync.Mutex
	routes map[node.ID]Handler
	queue  []envelope
	// Filter, when set, drops every message for which it returns false.
	Filter func(Envelope) bool
}

func NewNetwork() *Network {
	return &Network{routes: make(map[node.ID]Handler)}
}

// Route directs messages addressed to id to h. A nil h removes the route.
func (n *Network) Route(id node.ID, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h == nil {
		delete(n.routes, id)
		return
	}
	n.routes[id] = h
}

// Send implements replica.Network. It panics if msg cannot be encoded.
func (n *Network) Send(source, destination node.ID, msg message.Message) {
	b, err := message.Encode(msg)
	if err != nil {
		panic(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, envelope{source: source, destination: destination, data: b})
}

// Pending returns the number of messages waiting for delivery.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Queued decodes the messages waiting for delivery without delivering them.
func (n *Network) Queued() ([]Envelope, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Envelope, 0, len(n.queue))
	for _, e := range n.queue {
		msg, err := message.Decode(e.data)
		if err != nil {
			return nil, err
		}
		out = append(out, Envelope{Source: e.source, Destination: e.destination, Message: msg})
	}
	return out, nil
}

// Step delivers the oldest queued message. It returns false if the queue was
// empty. Messages to unrouted destinations are dropped.
func (n *Network) Step() (bool, error) {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return false, nil
	}
	e := n.queue[0]
	n.queue = n.queue[1:]
	h := n.routes[e.destination]
	filter := n.Filter
	n.mu.Unlock()
	msg, err := message.Decode(e.data)
	if err != nil {
		return true, err
	}
	if h == nil || (filter != nil && !filter(Envelope{Source: e.source, Destination: e.destination, Message: msg})) {
		return true, nil
	}
	return true, h(e.source, msg)
}

// Flush delivers messages until the queue is empty, including the messages
// sent while delivering. It returns every error the handlers returned.
func (n *Network) Flush() error {
	var errs error
	for {
		ok, err := n.Step()
		if !ok {
			return errs
		}
		errs = errors.CombineErrors(errs, err)
	}
}

// NewTransport returns an epidemic.Transport attached to the network.
func (n *Network) NewTransport() epidemic.Transport { return &transport{net: n} }

// transport is an in-memory implementation of epidemic.Transport.
type transport struct {
	net *Network
	id  node.ID
}

// Configure implements epidemic.Transport.
func (t *transport) Configure(_ context.Context, id node.ID, handle epidemic.Handler) error {
	t.id = id
	t.net.Route(id, Handler(handle))
	return nil
}

// Send implements epidemic.Transport.
func (t *transport) Send(source, destination node.ID, msg message.Message) {
	t.net.Send(source, destination, msg)
}

// Close implements epidemic.Transport.
func (t *transport) Close() error {
	t.net.Route(t.id, nil)
	return nil
}
