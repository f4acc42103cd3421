// Package revision declares the contract the replication engine consumes from
// a revision-oriented storage engine. A Revision is an immutable snapshot of a
// dataset organised as a keyed tree: table, primary key components, column,
// value.
package revision

// Table names a table. It is the first key of every path.
type Table string

// Column names a column. It is the last key of every path, directly above the
// value.
type Column string

// Revision is an immutable snapshot of a dataset.
type Revision interface {
	// Merge performs a three-way merge with the receiver as the common base,
	// head as the left side and fork as the right side. Implementations must
	// return head itself, not a copy, when the merge changes nothing, and must
	// be deterministic given the same resolvers.
	Merge(head, fork Revision, conflicts ConflictResolver, foreignKeys ForeignKeyResolver) (Revision, error)
	// Diff walks the differences between the receiver and fork depth first.
	Diff(fork Revision, skipBrokenReferences bool) DiffResult
	// Builder returns a Builder seeded with the receiver's contents.
	Builder() Builder
}

// DiffType is one event of a DiffResult walk.
type DiffType uint8

const (
	// End terminates the walk.
	End DiffType = iota
	// Descend enters the subtree of the preceding Key.
	Descend
	// Ascend leaves the current subtree.
	Ascend
	// Key reports a key that differs. Base or Fork is nil when the key is
	// absent on that side.
	Key
	// Value reports a leaf value under the preceding Key.
	Value
)

func (t DiffType) String() string {
	switch t {
	case End:
		return "end"
	case Descend:
		return "descend"
	case Ascend:
		return "ascend"
	case Key:
		return "key"
	case Value:
		return "value"
	}
	return "unknown"
}

// DiffResult iterates the events of a tree diff.
type DiffResult interface {
	// Next advances to the next event and returns its type.
	Next() DiffType
	// Base returns the base side of the current Key or Value event.
	Base() any
	// Fork returns the fork side of the current Key or Value event.
	Fork() any
	// Skip omits the subtree below the current Key event.
	Skip()
}

// Builder accumulates changes on top of a base Revision.
type Builder interface {
	// Insert sets the leaf at path to value, overwriting any existing value.
	Insert(path []any, value any) error
	// InsertKey ensures an interior node exists at path.
	InsertKey(path []any) error
	// Delete removes the subtree or leaf at path.
	Delete(path []any) error
	// Commit returns the resulting Revision. The Builder must not be used
	// afterwards.
	Commit() (Revision, error)
}

// Equal returns true if a and b have no differences.
func Equal(a, b Revision) bool {
	if a == b {
		return true
	}
	return a.Diff(b, false).Next() == End
}
