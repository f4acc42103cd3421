package mock

import (
	"github.com/arya-analytics/epidemic"
	"github.com/cockroachdb/pebble/vfs"
)

// NewMemBuilder returns a Builder whose nodes keep everything in memory and
// never prune on their own.
func NewMemBuilder(defaultOpts ...epidemic.Option) *Builder {
	return &Builder{
		DefaultOptions: append([]epidemic.Option{epidemic.WithPruneInterval(-1)}, defaultOpts...),
		Net:            NewNetwork(),
		Nodes:          make(map[epidemic.NodeID]epidemic.DB),
	}
}

// NewPebbleBuilder returns a Builder whose nodes save their heads to pebble
// on an in-memory filesystem.
func NewPebbleBuilder(defaultOpts ...epidemic.Option) *Builder {
	b := NewMemBuilder(defaultOpts...)
	b.FS = vfs.NewMem()
	return b
}
