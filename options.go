package epidemic

import (
	"time"

	"github.com/arya-analytics/epidemic/internal/metrics"
	"github.com/arya-analytics/epidemic/internal/replica"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	// id is the ID of the host node.
	id NodeID
	// dirname is the directory where the head snapshot is stored. This option
	// is ignored if the DB is mem backed.
	dirname string
	// fs sets the filesystem the snapshot store uses.
	fs vfs.FS
	// memBacked disables the snapshot store. Every restart begins empty.
	memBacked bool
	// logger is the logger for the DB and everything beneath it.
	logger *zap.Logger
	// transport carries messages to and from peers.
	transport Transport
	// replica is the configuration of the replication engine.
	replica replica.Config
	// pruneInterval sets how often log history is released. Zero disables
	// periodic pruning.
	pruneInterval time.Duration
}

func newOptions(id NodeID, opts ...Option) *options {
	o := &options{id: id}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func validateOptions(o *options) error {
	if o.transport == nil {
		return errors.New("[epidemic] - transport required")
	}
	if !o.memBacked && o.fs == nil {
		return errors.New("[epidemic] - filesystem required")
	}
	return nil
}

func mergeDefaultOptions(o *options) {
	def := defaultOptions()

	// |||| DIRNAME ||||

	if o.dirname == "" {
		o.dirname = def.dirname
	}
	if o.fs == nil {
		o.fs = def.fs
	}

	// |||| LOGGER ||||

	if o.logger == nil {
		o.logger = def.logger
	}

	// |||| PRUNE ||||

	if o.pruneInterval == 0 {
		o.pruneInterval = def.pruneInterval
	}

	// |||| REPLICA ||||

	o.replica.ID = o.id
	o.replica.Logger = o.logger
	if o.replica.Metrics == nil {
		o.replica.Metrics = metrics.ForNode(string(o.id))
	}
	o.replica = o.replica.Merge(def.replica)
}

func defaultOptions() *options {
	return &options{
		dirname:       "",
		fs:            vfs.Default,
		logger:        zap.NewNop(),
		pruneInterval: 30 * time.Second,
		replica:       replica.DefaultConfig(),
	}
}

func WithLogger(logger *zap.Logger) Option { return func(o *options) { o.logger = logger } }

func WithTransport(t Transport) Option { return func(o *options) { o.transport = t } }

func WithDirectory(dirname string) Option { return func(o *options) { o.dirname = dirname } }

func WithFS(fs vfs.FS) Option { return func(o *options) { o.fs = fs } }

// MemBacked keeps all state in memory.
func MemBacked() Option { return func(o *options) { o.memBacked = true } }

func WithResolver(r NodeConflictResolver) Option {
	return func(o *options) { o.replica.Resolver = r }
}

func WithForeignKeyResolver(r revision.ForeignKeyResolver) Option {
	return func(o *options) { o.replica.ForeignKeys = r }
}

// WithEmpty sets the empty revision every log starts from. It decides which
// Revision implementation the DB stores.
func WithEmpty(empty Revision) Option { return func(o *options) { o.replica.Empty = empty } }

// WithInstance fixes the instance of this incarnation instead of picking a
// random one. Two live incarnations of a node must never share an instance.
func WithInstance(instance Instance) Option {
	return func(o *options) { o.replica.Instance = instance }
}

// WithPruneInterval sets how often log history is released. A negative
// interval disables periodic pruning.
func WithPruneInterval(d time.Duration) Option {
	return func(o *options) { o.pruneInterval = d }
}
