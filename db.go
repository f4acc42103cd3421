// Package epidemic replicates a revision-oriented database across a partially
// connected, changing mesh of nodes. Every node keeps its own head revision,
// writes locally, and converges with the rest of the mesh through the peers it
// is directly connected to.
package epidemic

import (
	"io"

	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/replica"
	"github.com/arya-analytics/epidemic/revision"
)

type (
	NodeID               = node.ID
	NodeKey              = node.Key
	Instance             = node.Instance
	Message              = message.Message
	Revision             = revision.Revision
	NodeConflictResolver = replica.NodeConflictResolver
	Subscription         = replica.Subscription
)

var (
	// ErrProtocol marks every error caused by a message the node could not
	// act on.
	ErrProtocol      = replica.ErrProtocol
	ErrMissedDiff    = replica.ErrMissedDiff
	ErrObsoleteDiff  = replica.ErrObsoleteDiff
	ErrUnexpectedKey = replica.ErrUnexpectedKey
	// LowerIDWins is the default conflict resolver.
	LowerIDWins = replica.LowerIDWins
)

// DB is a replicated database node.
type DB interface {
	// Key returns the key of this incarnation of the node.
	Key() NodeKey
	// Head returns the current local revision.
	Head() Revision
	// Merge merges the change from base to fork into the local head, making it
	// a local write that will spread to the rest of the mesh.
	Merge(base, fork Revision) error
	// RegisterListener calls fn with the head now and whenever it changes.
	RegisterListener(fn func(head Revision)) Subscription
	// RegisterSyncListener calls fn once peer has finished its initial
	// exchange with this node.
	RegisterSyncListener(peer NodeID, fn func())
	// UpdateView sets the peers this node is directly connected to.
	UpdateView(peers []NodeID)
	// Connected returns the keys of the directly connected peers.
	Connected() []NodeKey
	// Prune releases log history that no peer can need anymore.
	Prune() int
	// Dump writes the node's replication state for debugging.
	Dump(w io.Writer) error
	io.Closer
}
