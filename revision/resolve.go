package revision

// ConflictResolver decides the value of a cell both sides of a merge changed
// differently. Returning nil removes the cell.
type ConflictResolver interface {
	ResolveConflict(
		table Table,
		column Column,
		primaryKey []any,
		base, left, right any,
	) (any, error)
}

// ConflictResolverFunc adapts a function to a ConflictResolver.
type ConflictResolverFunc func(table Table, column Column, primaryKey []any, base, left, right any) (any, error)

// ResolveConflict implements ConflictResolver.
func (f ConflictResolverFunc) ResolveConflict(
	table Table,
	column Column,
	primaryKey []any,
	base, left, right any,
) (any, error) {
	return f(table, column, primaryKey, base, left, right)
}

// Resolution is the action taken for a broken foreign key reference.
type Resolution uint8

const (
	// Restrict refuses the change.
	Restrict Resolution = iota
	// Delete removes the referring row.
	Delete
	// Ignore keeps the broken reference.
	Ignore
)

// ForeignKeyResolver decides what happens to a row whose foreign key
// reference broke during a merge.
type ForeignKeyResolver interface {
	HandleBrokenReference(table Table, columns []Column, primaryKey []any, values []any) (Resolution, error)
}

// ForeignKeyResolverFunc adapts a function to a ForeignKeyResolver.
type ForeignKeyResolverFunc func(table Table, columns []Column, primaryKey []any, values []any) (Resolution, error)

// HandleBrokenReference implements ForeignKeyResolver.
func (f ForeignKeyResolverFunc) HandleBrokenReference(
	table Table,
	columns []Column,
	primaryKey []any,
	values []any,
) (Resolution, error) {
	return f(table, columns, primaryKey, values)
}

// RestrictForeignKeys refuses every broken reference.
var RestrictForeignKeys ForeignKeyResolver = ForeignKeyResolverFunc(
	func(Table, []Column, []any, []any) (Resolution, error) { return Restrict, nil },
)
