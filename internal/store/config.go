package store

import (
	"github.com/arya-analytics/epidemic/revision"
	"github.com/arya-analytics/epidemic/revision/memrev"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

type Config struct {
	// Dirname is the directory pebble keeps its files in.
	Dirname string
	// FS is the filesystem pebble writes to. Tests use vfs.NewMem().
	FS vfs.FS
	// Key is the key the snapshot is stored under.
	Key []byte
	// Empty is the revision snapshots are encoded against.
	Empty revision.Revision
	// Logger
	Logger *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Dirname == "" {
		cfg.Dirname = def.Dirname
	}
	if cfg.FS == nil {
		cfg.FS = def.FS
	}
	if len(cfg.Key) == 0 {
		cfg.Key = def.Key
	}
	if cfg.Empty == nil {
		cfg.Empty = def.Empty
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.FS == nil {
		return errors.New("[store] - filesystem required")
	}
	if len(cfg.Key) == 0 {
		return errors.New("[store] - key required")
	}
	if cfg.Empty == nil {
		return errors.New("[store] - empty revision required")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		FS:     vfs.Default,
		Key:    []byte("epidemic.head"),
		Empty:  memrev.Empty(),
		Logger: zap.NewNop(),
	}
}
