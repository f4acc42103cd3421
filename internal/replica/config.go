package replica

import (
	"github.com/arya-analytics/epidemic/internal/metrics"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	// ID is the stable address of the local node.
	ID node.ID
	// Instance identifies this incarnation of the local node. A random Instance
	// is chosen when left empty.
	Instance node.Instance
	// Network carries outbound messages.
	Network Network
	// Empty is the revision every log starts from.
	Empty revision.Revision
	// Resolver settles cells that both sides of a merge changed.
	Resolver NodeConflictResolver
	// ForeignKeys is passed to every merge unchanged.
	ForeignKeys revision.ForeignKeyResolver
	// Metrics records counters for the replica. Nil disables them.
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Instance == uuid.Nil {
		cfg.Instance = def.Instance
	}
	if cfg.Network == nil {
		cfg.Network = def.Network
	}
	if cfg.Empty == nil {
		cfg.Empty = def.Empty
	}
	if cfg.Resolver == nil {
		cfg.Resolver = def.Resolver
	}
	if cfg.ForeignKeys == nil {
		cfg.ForeignKeys = def.ForeignKeys
	}
	if cfg.Metrics == nil {
		cfg.Metrics = def.Metrics
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.ID == "" {
		return errors.New("[replica] - node id required")
	}
	if cfg.Instance == node.DefaultInstance {
		return errors.New("[replica] - instance must not be the default instance")
	}
	if cfg.Network == nil {
		return errors.New("[replica] - network required")
	}
	if cfg.Empty == nil {
		return errors.New("[replica] - empty revision required")
	}
	if cfg.Resolver == nil {
		return errors.New("[replica] - conflict resolver required")
	}
	if cfg.ForeignKeys == nil {
		return errors.New("[replica] - foreign key resolver required")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Empty:       memrev.Empty(),
		Resolver:    LowerIDWins,
		ForeignKeys: revision.RestrictForeignKeys,
		Logger:      zap.NewNop(),
	}
}
