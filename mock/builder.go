package mock

import (
	"context"
	"path/filepath"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

// Builder opens epidemic nodes that share a Network.
type Builder struct {
	DefaultOptions []epidemic.Option
	// FS, when set, is where nodes save their heads. Each node gets its own
	// directory, so a node opened again under the same ID restores its data.
	FS    vfs.FS
	Net   *Network
	Nodes map[epidemic.NodeID]epidemic.DB
}

// New opens a node with the given ID. Opening an ID that is already open
// closes the existing node first, so the new one is a restart.
func (b *Builder) New(id epidemic.NodeID, opts ...epidemic.Option) (epidemic.DB, error) {
	if prev, ok := b.Nodes[id]; ok {
		delete(b.Nodes, id)
		if err := prev.Close(); err != nil {
			return nil, err
		}
	}
	base := []epidemic.Option{epidemic.WithTransport(b.Net.NewTransport())}
	if b.FS != nil {
		base = append(base,
			epidemic.WithFS(b.FS),
			epidemic.WithDirectory(filepath.Join("data", string(id))),
		)
	} else {
		base = append(base, epidemic.MemBacked())
	}
	opts = append(append(base, b.DefaultOptions...), opts...)
	db, err := epidemic.Open(context.Background(), id, opts...)
	if err != nil {
		return nil, err
	}
	b.Nodes[id] = db
	return db, nil
}

// Connect makes every pair of the given nodes directly connected.
func (b *Builder) Connect(ids ...epidemic.NodeID) {
	all := node.NewGroup(ids...)
	for _, id := range ids {
		db := b.Nodes[id]
		view := node.Group{}
		for _, k := range db.Connected() {
			view[k.ID] = struct{}{}
		}
		db.UpdateView(view.Union(all).WhereNot(id).IDs())
	}
}

// Close closes every node.
func (b *Builder) Close() error {
	var err error
	for id, db := range b.Nodes {
		err = errors.CombineErrors(err, db.Close())
		delete(b.Nodes, id)
	}
	return err
}
