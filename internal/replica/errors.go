package replica

import (
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/cockroachdb/errors"
)

var (
	// ErrProtocol marks every error caused by an inbound message this replica
	// cannot act on. Such errors are fatal to the message, never to the
	// replica.
	ErrProtocol = wire.ErrProtocol
	// ErrMissedDiff is returned when a message builds on a record this replica
	// never received.
	ErrMissedDiff = errors.Mark(errors.New("missed a diff"), ErrProtocol)
	// ErrObsoleteDiff is returned when a message builds on a record this
	// replica has already pruned.
	ErrObsoleteDiff = errors.Mark(errors.New("obsolete diff"), ErrProtocol)
	// ErrUnexpectedKey is returned when a message names the placeholder
	// instance as the owner of a log.
	ErrUnexpectedKey = errors.Mark(errors.New("unexpected node key"), ErrProtocol)
)
