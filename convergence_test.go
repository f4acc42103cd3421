package epidemic_test

import (
	"fmt"
	"math/rand"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/mock"
	"github.com/arya-analytics/epidemic/revision"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type convergenceVars struct {
	numNodes int
	numOps   int
	// pruneEvery lets the mesh settle and prunes every node after that many
	// operations. Zero never prunes.
	pruneEvery int
}

var convergenceItervars = []convergenceVars{
	{numNodes: 2, numOps: 100},
	{numNodes: 4, numOps: 100},
	{numNodes: 4, numOps: 100, pruneEvery: 10},
	{numNodes: 6, numOps: 200, pruneEvery: 25},
}

var _ = Describe("Convergence", func() {
	for _, values := range convergenceItervars {
		values := values
		It(fmt.Sprintf("Should converge %d nodes in a ring after %d random writes, pruning every %d",
			values.numNodes, values.numOps, values.pruneEvery), func() {
			builder := mock.NewMemBuilder()
			defer func() { Expect(builder.Close()).To(Succeed()) }()
			ids := make([]epidemic.NodeID, values.numNodes)
			for i := range ids {
				ids[i] = epidemic.NodeID(fmt.Sprintf("n%d", i))
				_, err := builder.New(ids[i])
				Expect(err).ToNot(HaveOccurred())
			}
			for i := range ids {
				builder.Connect(ids[i], ids[(i+1)%len(ids)])
			}
			rng := rand.New(rand.NewSource(int64(values.numNodes*values.numOps + values.pruneEvery)))
			for op := 0; op < values.numOps; op++ {
				db := builder.Nodes[ids[rng.Intn(len(ids))]]
				write(db, rng.Intn(10), fmt.Sprintf("v%d", op))
				for steps := rng.Intn(8); steps > 0; steps-- {
					_, err := builder.Net.Step()
					Expect(err).ToNot(HaveOccurred())
				}
				if values.pruneEvery > 0 && op%values.pruneEvery == 0 {
					Expect(builder.Net.Flush()).To(Succeed())
					for _, id := range ids {
						builder.Nodes[id].Prune()
					}
				}
			}
			Expect(builder.Net.Flush()).To(Succeed())
			first := builder.Nodes[ids[0]].Head()
			for _, id := range ids[1:] {
				Expect(revision.Equal(builder.Nodes[id].Head(), first)).To(BeTrue())
			}
		})
	}
})
