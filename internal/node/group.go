package node

import "sort"

// Group is a set of node IDs, such as the peers a node is directly connected
// to.
type Group map[ID]struct{}

func NewGroup(ids ...ID) Group {
	g := make(Group, len(ids))
	for _, id := range ids {
		g[id] = struct{}{}
	}
	return g
}

func (g Group) Contains(id ID) bool {
	_, ok := g[id]
	return ok
}

func (g Group) Where(cond func(ID) bool) Group {
	out := make(Group, len(g))
	for id := range g {
		if cond(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func (g Group) WhereNot(ids ...ID) Group {
	not := NewGroup(ids...)
	return g.Where(func(id ID) bool { return !not.Contains(id) })
}

// Union returns the IDs in either group.
func (g Group) Union(other Group) Group {
	out := g.Copy()
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the members of the group in ascending order.
func (g Group) IDs() []ID {
	ids := make([]ID, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g Group) Copy() Group { return g.Where(func(ID) bool { return true }) }
