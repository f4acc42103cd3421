package grpc

import (
	"time"

	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type Config struct {
	// Address is the address the server listens on, e.g. "localhost:9090".
	Address string
	// Peers maps each node to the address its server listens on. Addresses
	// can also be set later with SetAddress.
	Peers map[node.ID]string
	// RetryInterval is how long a sender waits before retrying a failed
	// delivery.
	RetryInterval time.Duration
	// Timeout bounds a single delivery.
	Timeout time.Duration
	// Logger
	Logger *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Address == "" {
		return errors.New("[grpc] - address required")
	}
	if cfg.RetryInterval <= 0 {
		return errors.New("[grpc] - positive retry interval required")
	}
	if cfg.Timeout <= 0 {
		return errors.New("[grpc] - positive timeout required")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Address:       "localhost:0",
		RetryInterval: 200 * time.Millisecond,
		Timeout:       5 * time.Second,
		Logger:        zap.NewNop(),
	}
}
