package replica

import (
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
)

// Network hands messages to the transport. Send must not block on delivery
// and must not call back into the replica.
type Network interface {
	Send(source, destination node.ID, msg message.Message)
}

// NetworkFunc adapts a function to a Network.
type NetworkFunc func(source, destination node.ID, msg message.Message)

// Send implements Network.
func (f NetworkFunc) Send(source, destination node.ID, msg message.Message) {
	f(source, destination, msg)
}
