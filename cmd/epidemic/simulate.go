package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/mock"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run an in-memory cluster and check that it converges",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return simulate(cmd.Context(), logger, simulation{
			nodes:    viper.GetInt("nodes"),
			writes:   viper.GetInt("writes"),
			keys:     viper.GetInt("keys"),
			topology: viper.GetString("topology"),
			seed:     viper.GetInt64("seed"),
			dump:     viper.GetBool("dump"),
		})
	},
}

func init() {
	simulateCmd.Flags().Int("nodes", 4, "number of nodes")
	simulateCmd.Flags().Int("writes", 100, "writes per node")
	simulateCmd.Flags().Int("keys", 16, "number of distinct rows written to")
	simulateCmd.Flags().String("topology", "ring", "how nodes are connected: line, ring, star or full")
	simulateCmd.Flags().Int64("seed", 1, "random seed")
	simulateCmd.Flags().Bool("dump", false, "dump the replication state of every node when done")
}

type simulation struct {
	nodes, writes, keys int
	topology            string
	seed                int64
	dump                bool
}

var (
	simTable  = revision.Table("cells")
	simColumn = revision.Column("value")
)

func simulate(ctx context.Context, logger *zap.Logger, sim simulation) error {
	if sim.nodes < 1 || sim.keys < 1 {
		return errors.New("at least one node and one key required")
	}
	builder := mock.NewMemBuilder(epidemic.WithLogger(logger))
	defer func() { _ = builder.Close() }()
	ids := make([]epidemic.NodeID, sim.nodes)
	for i := range ids {
		ids[i] = epidemic.NodeID(fmt.Sprintf("n%d", i))
		if _, err := builder.New(ids[i]); err != nil {
			return err
		}
	}
	if err := connect(builder, ids, sim.topology); err != nil {
		return err
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		running atomic.Int32
	)
	running.Store(int32(len(ids)))
	for i, id := range ids {
		db, rng := builder.Nodes[id], rand.New(rand.NewSource(sim.seed+int64(i)))
		g.Go(func() error {
			defer running.Add(-1)
			for w := 0; w < sim.writes; w++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				head := db.Head()
				fork, err := memrev.Set(head, fmt.Sprintf("%s-%d", db.Key().ID, w), simTable, rng.Intn(sim.keys), simColumn)
				if err != nil {
					return err
				}
				if err := db.Merge(head, fork); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for running.Load() > 0 {
			ok, err := builder.Net.Step()
			if err != nil {
				return err
			}
			if !ok {
				runtime.Gosched()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := builder.Net.Flush(); err != nil {
		return err
	}

	first := builder.Nodes[ids[0]].Head()
	converged := true
	for _, id := range ids[1:] {
		if !revision.Equal(builder.Nodes[id].Head(), first) {
			converged = false
			logger.Warn("node diverged", zap.Stringer("node", id))
		}
	}
	if sim.dump {
		for _, id := range ids {
			if err := builder.Nodes[id].Dump(os.Stdout); err != nil {
				return err
			}
		}
	}
	fmt.Printf("%d nodes, %d writes each, %s topology: converged=%t\n", sim.nodes, sim.writes, sim.topology, converged)
	fmt.Print(first)
	if !converged {
		return errors.New("nodes did not converge")
	}
	return nil
}

func connect(builder *mock.Builder, ids []epidemic.NodeID, topology string) error {
	switch topology {
	case "line":
		for i := 1; i < len(ids); i++ {
			builder.Connect(ids[i-1], ids[i])
		}
	case "ring":
		for i := 1; i < len(ids); i++ {
			builder.Connect(ids[i-1], ids[i])
		}
		if len(ids) > 2 {
			builder.Connect(ids[len(ids)-1], ids[0])
		}
	case "star":
		for _, id := range ids[1:] {
			builder.Connect(ids[0], id)
		}
	case "full":
		builder.Connect(ids...)
	default:
		return errors.Newf("unknown topology %q", topology)
	}
	return nil
}
