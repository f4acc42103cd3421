package epidemic

import (
	"context"
	"time"

	"github.com/arya-analytics/epidemic/internal/replica"
	"github.com/arya-analytics/epidemic/internal/store"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Open starts a node with the given ID. Unless the DB is mem backed, the head
// saved by the previous incarnation is restored as a local write of the new
// one. The node has no peers until UpdateView is called.
func Open(ctx context.Context, id NodeID, opts ...Option) (DB, error) {
	o := newOptions(id, opts...)
	if err := validateOptions(o); err != nil {
		return nil, err
	}

	st, err := openStore(o)
	if err != nil {
		return nil, err
	}

	o.replica.Network = o.transport
	r, err := replica.New(o.replica)
	if err != nil {
		return nil, errors.CombineErrors(err, closeStore(st))
	}

	if err := restore(r, st, o); err != nil {
		return nil, errors.CombineErrors(err, closeStore(st))
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	if err := o.transport.Configure(gctx, id, r.Accept); err != nil {
		cancel()
		return nil, errors.CombineErrors(err, closeStore(st))
	}

	d := &db{Replica: r, options: o, store: st, cancel: cancel, g: g}
	if st != nil {
		d.startFlusher(gctx)
	}
	if o.pruneInterval > 0 {
		d.startPruner(gctx)
	}
	o.logger.Info("opened node", zap.Stringer("key", r.Key()), zap.Bool("memBacked", o.memBacked))
	return d, nil
}

func openStore(o *options) (*store.Store, error) {
	if o.memBacked {
		return nil, nil
	}
	return store.Open(store.Config{
		Dirname: o.dirname,
		FS:      o.fs,
		Empty:   o.replica.Empty,
		Logger:  o.logger,
	})
}

func closeStore(st *store.Store) error {
	if st == nil {
		return nil
	}
	return st.Close()
}

func restore(r *replica.Replica, st *store.Store, o *options) error {
	if st == nil {
		return nil
	}
	snap, ok, err := st.Load()
	if err != nil || !ok {
		return err
	}
	o.logger.Info("restoring saved head", zap.Stringer("key", r.Key()))
	return r.Merge(o.replica.Empty, snap)
}

type db struct {
	*replica.Replica
	options *options
	store   *store.Store
	cancel  context.CancelFunc
	g       *errgroup.Group
}

// startFlusher saves the head every time it changes. Changes that arrive
// while a save is running are coalesced into the next one.
func (d *db) startFlusher(ctx context.Context) {
	dirty := make(chan struct{}, 1)
	sub := d.RegisterListener(func(Revision) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	d.g.Go(func() error {
		defer sub.Cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-dirty:
				if err := d.store.Save(d.Head()); err != nil {
					d.options.logger.Error("failed to save head", zap.Error(err))
				}
			}
		}
	})
}

func (d *db) startPruner(ctx context.Context) {
	d.g.Go(func() error {
		t := time.NewTicker(d.options.pruneInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				d.Prune()
			}
		}
	})
}

// Close stops the background routines and the transport, then saves the head
// one last time.
func (d *db) Close() error {
	d.cancel()
	err := d.g.Wait()
	err = errors.CombineErrors(err, d.options.transport.Close())
	if d.store != nil {
		err = errors.CombineErrors(err, d.store.Save(d.Head()))
		err = errors.CombineErrors(err, d.store.Close())
	}
	d.options.logger.Info("closed node", zap.Stringer("key", d.Key()))
	return err
}
