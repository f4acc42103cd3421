package replicamock

import (
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/replica"
	"github.com/arya-analytics/epidemic/mock"
)

// Builder creates replicas attached to a shared in-memory network.
type Builder struct {
	BaseCfg  replica.Config
	Net      *mock.Network
	Replicas map[node.ID]*replica.Replica
}

func NewBuilder(baseCfg replica.Config) *Builder {
	return &Builder{
		BaseCfg:  baseCfg.Merge(replica.DefaultConfig()),
		Net:      mock.NewNetwork(),
		Replicas: make(map[node.ID]*replica.Replica),
	}
}

// New creates a replica for id and routes its inbound messages. A replica
// created for an id that already exists replaces it, as a restart with no
// persisted state would.
func (b *Builder) New(id node.ID, cfg replica.Config) (*replica.Replica, error) {
	cfg.ID = id
	cfg.Network = b.Net
	cfg = cfg.Merge(b.BaseCfg)
	r, err := replica.New(cfg)
	if err != nil {
		return nil, err
	}
	b.Replicas[id] = r
	b.Net.Route(id, r.Accept)
	return r, nil
}

// Connect makes every pair of the given replicas directly connected.
func (b *Builder) Connect(ids ...node.ID) {
	all := node.NewGroup(ids...)
	for _, id := range ids {
		b.Replicas[id].UpdateView(b.View(id).Union(all).WhereNot(id).IDs())
	}
}

// Disconnect removes the direct connection between x and y.
func (b *Builder) Disconnect(x, y node.ID) {
	b.Replicas[x].UpdateView(b.View(x).WhereNot(y).IDs())
	b.Replicas[y].UpdateView(b.View(y).WhereNot(x).IDs())
}

// View returns the peers directly connected to id.
func (b *Builder) View(id node.ID) node.Group {
	g := node.Group{}
	for _, k := range b.Replicas[id].Connected() {
		g[k.ID] = struct{}{}
	}
	return g
}
