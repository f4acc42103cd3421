package replica

import (
	"github.com/arya-analytics/epidemic/internal/metrics"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
)

// NodeConflictResolver is a revision.ConflictResolver that is also told which
// node each side of the conflict came from. left is the node whose log the
// merge result is written to.
type NodeConflictResolver interface {
	ResolveConflict(
		left, right node.ID,
		table revision.Table,
		column revision.Column,
		primaryKey []any,
		base, leftValue, rightValue any,
	) (any, error)
}

// NodeConflictResolverFunc adapts a function to a NodeConflictResolver.
type NodeConflictResolverFunc func(
	left, right node.ID,
	table revision.Table,
	column revision.Column,
	primaryKey []any,
	base, leftValue, rightValue any,
) (any, error)

// ResolveConflict implements NodeConflictResolver.
func (f NodeConflictResolverFunc) ResolveConflict(
	left, right node.ID,
	table revision.Table,
	column revision.Column,
	primaryKey []any,
	base, leftValue, rightValue any,
) (any, error) {
	return f(left, right, table, column, primaryKey, base, leftValue, rightValue)
}

// LowerIDWins keeps the value written by the node with the lower ID. Ties
// keep the left value.
var LowerIDWins NodeConflictResolver = NodeConflictResolverFunc(func(
	left, right node.ID,
	_ revision.Table,
	_ revision.Column,
	_ []any,
	_, leftValue, rightValue any,
) (any, error) {
	if right < left {
		return rightValue, nil
	}
	return leftValue, nil
})

// boundResolver fixes the node pair of a NodeConflictResolver for a single
// merge.
type boundResolver struct {
	left, right node.ID
	resolver    NodeConflictResolver
	metrics     *metrics.Recorder
}

var _ revision.ConflictResolver = boundResolver{}

func (b boundResolver) ResolveConflict(
	table revision.Table,
	column revision.Column,
	primaryKey []any,
	base, left, right any,
) (any, error) {
	b.metrics.Conflict()
	return b.resolver.ResolveConflict(b.left, b.right, table, column, primaryKey, base, left, right)
}
