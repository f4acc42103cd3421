// Package store persists the local head of a replica in pebble so that a
// restarted node comes back with its data, though as a new incarnation.
package store

import (
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Store holds a single head snapshot, encoded as a delta against the empty
// revision.
type Store struct {
	Config
	db *pebble.DB
}

// Open opens, or creates, the pebble database in cfg.Dirname.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := pebble.Open(cfg.Dirname, &pebble.Options{FS: cfg.FS})
	if err != nil {
		return nil, errors.Wrapf(err, "open store in %q", cfg.Dirname)
	}
	return &Store{Config: cfg, db: db}, nil
}

// Save replaces the stored snapshot with head.
func (s *Store) Save(head revision.Revision) error {
	d, err := wire.EncodeDelta(s.Empty, head)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err := s.db.Set(s.Key, d.Bytes(), pebble.Sync); err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	s.Logger.Debug("saved snapshot", zap.Int("bytes", len(d.Bytes())))
	return nil
}

// Load returns the stored snapshot. It returns the empty revision and false
// if nothing has been saved yet.
func (s *Store) Load() (revision.Revision, bool, error) {
	b, closer, err := s.db.Get(s.Key)
	if errors.Is(err, pebble.ErrNotFound) {
		return s.Empty, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load snapshot")
	}
	d, err := wire.ParseDelta(append([]byte(nil), b...))
	if cerr := closer.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "decode snapshot")
	}
	rev, err := d.Apply(s.Empty)
	if err != nil {
		return nil, false, errors.Wrap(err, "apply snapshot")
	}
	s.Logger.Debug("loaded snapshot", zap.Int("bytes", len(b)))
	return rev, true, nil
}

// Close closes the underlying pebble database.
func (s *Store) Close() error { return s.db.Close() }
