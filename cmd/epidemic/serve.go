package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/arya-analytics/epidemic"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	grpct "github.com/arya-analytics/epidemic/transport/grpc"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run a node that replicates over gRPC",
	Long: `Run a node that replicates over gRPC and persists its head in pebble.

Commands are read from standard input, one per line:
  set <table> <pk> <column> <value>
  get <table> <pk> <column>
  delete <table> <pk>
  dump`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, logger, os.Stdin, os.Stdout)
	},
}

func init() {
	serveCmd.Flags().String("id", "", "node id")
	serveCmd.Flags().String("listen", "localhost:9090", "address to serve replication on")
	serveCmd.Flags().StringToString("peer", nil, "directly connected peer as id=address, repeatable")
	serveCmd.Flags().String("data", "epidemic-data", "directory to persist the head in")
	serveCmd.Flags().Duration("prune-interval", 30*time.Second, "how often to release log history")
	serveCmd.Flags().String("metrics", "", "address to serve prometheus metrics on, empty to disable")
}

func serve(ctx context.Context, logger *zap.Logger, in io.Reader, out io.Writer) error {
	id := node.ID(viper.GetString("id"))
	peers := viper.GetStringMapString("peer")
	t, err := grpct.New(grpct.Config{
		Address: viper.GetString("listen"),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	view := make([]node.ID, 0, len(peers))
	for pid, addr := range peers {
		t.SetAddress(node.ID(pid), addr)
		view = append(view, node.ID(pid))
	}
	db, err := epidemic.Open(
		ctx,
		id,
		epidemic.WithLogger(logger),
		epidemic.WithTransport(t),
		epidemic.WithDirectory(viper.GetString("data")),
		epidemic.WithPruneInterval(viper.GetDuration("prune-interval")),
	)
	if err != nil {
		return err
	}
	db.UpdateView(view)

	g, gctx := errgroup.WithContext(ctx)
	if addr := viper.GetString("metrics"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					<-gctx.Done()
					return nil
				}
				if err := execute(db, line, out); err != nil {
					fmt.Fprintln(out, "error:", err)
				}
			}
		}
	})
	err = g.Wait()
	return errors.CombineErrors(err, db.Close())
}

// execute runs a single console command against db.
func execute(db epidemic.DB, line string, out io.Writer) error {
	f := strings.Fields(line)
	if len(f) == 0 {
		return nil
	}
	switch {
	case f[0] == "set" && len(f) == 5:
		head := db.Head()
		fork, err := memrev.Set(head, f[4], revision.Table(f[1]), parseKey(f[2]), revision.Column(f[3]))
		if err != nil {
			return err
		}
		return db.Merge(head, fork)
	case f[0] == "get" && len(f) == 4:
		rev, ok := db.Head().(*memrev.Revision)
		if !ok {
			return errors.New("head is not an in-memory revision")
		}
		v, _ := rev.Get(revision.Table(f[1]), parseKey(f[2]), revision.Column(f[3]))
		_, err := fmt.Fprintln(out, v)
		return err
	case f[0] == "delete" && len(f) == 3:
		head := db.Head()
		fork, err := memrev.Remove(head, revision.Table(f[1]), parseKey(f[2]))
		if err != nil {
			return err
		}
		return db.Merge(head, fork)
	case f[0] == "dump" && len(f) == 1:
		return db.Dump(out)
	}
	return errors.Newf("unknown command %q", line)
}

// parseKey reads an integer primary key if it looks like one.
func parseKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
