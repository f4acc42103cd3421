package epidemic

import "context"

// Handler is called by a Transport for every message delivered to the node.
type Handler func(source NodeID, msg Message) error

// Transport moves messages between directly connected nodes.
type Transport interface {
	// Send queues msg for delivery to destination. It must not block on the
	// network.
	Send(source, destination NodeID, msg Message)
	// Configure starts delivering messages addressed to id to handle. The
	// transport stops when ctx is cancelled or Close is called.
	Configure(ctx context.Context, id NodeID, handle Handler) error
	Close() error
}
