// Package wire implements the byte encoding of the change between two
// revisions: a depth-first walk of the keyed tree written as a stream of
// opcodes and tokens.
package wire

import (
	"fmt"
	"strings"

	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
)

var (
	// ErrProtocol marks every error caused by a peer sending something this
	// node cannot act on.
	ErrProtocol = errors.New("protocol violation")
	// ErrMalformed is returned when a byte stream is truncated or otherwise
	// cannot be decoded.
	ErrMalformed = errors.New("malformed encoding")
	// ErrUnexpectedOpcode is returned when a delta carries an undefined opcode.
	ErrUnexpectedOpcode = errors.Mark(errors.New("unexpected opcode"), ErrProtocol)
)

// Opcode is a single instruction in an encoded delta.
type Opcode byte

const (
	End Opcode = iota
	Descend
	Ascend
	Key
	Delete
	Insert
)

func (o Opcode) String() string {
	switch o {
	case End:
		return "end"
	case Descend:
		return "descend"
	case Ascend:
		return "ascend"
	case Key:
		return "key"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	}
	return fmt.Sprintf("opcode(%d)", byte(o))
}

// Delta is an encoded change from one revision to another.
type Delta struct {
	body []byte
	// fork is set on deltas produced in-process, letting Apply return the
	// target revision without replaying the body.
	fork revision.Revision
}

// EncodeDelta encodes the change from base to fork.
func EncodeDelta(base, fork revision.Revision) (Delta, error) {
	var (
		b   []byte
		err error
		res = base.Diff(fork, true)
	)
	for {
		switch t := res.Next(); t {
		case revision.End:
			return Delta{body: append(b, byte(End)), fork: fork}, nil
		case revision.Descend:
			b = append(b, byte(Descend))
		case revision.Ascend:
			b = append(b, byte(Ascend))
		case revision.Key:
			if k := res.Fork(); k != nil {
				b, err = AppendToken(append(b, byte(Key)), k)
			} else {
				b, err = AppendToken(append(b, byte(Delete)), res.Base())
				res.Skip()
			}
		case revision.Value:
			b, err = AppendToken(append(b, byte(Insert)), res.Fork())
		default:
			return Delta{}, errors.Newf("unexpected diff result type %s", t)
		}
		if err != nil {
			return Delta{}, err
		}
	}
}

// ParseDelta validates b as an encoded delta. b must hold exactly one delta.
// The returned Delta retains b.
func ParseDelta(b []byte) (Delta, error) {
	n, err := walk(b, func(Opcode, []any, any) error { return nil })
	if err != nil {
		return Delta{}, err
	}
	if n != len(b) {
		return Delta{}, errors.Wrapf(ErrMalformed, "%d trailing bytes after delta", len(b)-n)
	}
	return Delta{body: b}, nil
}

// Bytes returns the encoded form of the delta.
func (d Delta) Bytes() []byte { return d.body }

// Apply replays the delta on top of base.
func (d Delta) Apply(base revision.Revision) (revision.Revision, error) {
	if d.fork != nil {
		return d.fork, nil
	}
	var (
		bld     = base.Builder()
		visited = true
	)
	_, err := walk(d.body, func(op Opcode, path []any, v any) error {
		switch op {
		case Descend:
			visited = true
		case Ascend, End:
			if !visited {
				visited = true
				return bld.InsertKey(path)
			}
		case Key:
			// A key with nothing written beneath it is an empty subtree.
			if !visited {
				return bld.InsertKey(path)
			}
			visited = false
		case Delete:
			visited = true
			return bld.Delete(path)
		case Insert:
			visited = true
			return bld.Insert(path, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bld.Commit()
}

// String renders one line per inserted value or deleted subtree.
func (d Delta) String() string {
	var sb strings.Builder
	_, err := walk(d.body, func(op Opcode, path []any, v any) error {
		switch op {
		case Delete:
			fmt.Fprintf(&sb, "delete%v\n", path)
		case Insert:
			fmt.Fprintf(&sb, "insert%v\n", append(append([]any(nil), path...), v))
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(&sb, "error: %v\n", err)
	}
	return sb.String()
}

// walk decodes b up to and including its End opcode, calling fn for each
// opcode. For Ascend, Key and Delete fn receives the path of the key the
// opcode refers to; for Insert it receives the path of the leaf and its value.
// For Key, the path is that of the previous key at the same depth, and for
// End that of the last key at the top level. It returns the number of bytes
// consumed.
func walk(b []byte, fn func(op Opcode, path []any, v any) error) (int, error) {
	var (
		path  = make([]any, 1)
		depth = 0
		pos   = 0
	)
	for {
		if pos >= len(b) {
			return pos, errors.Wrap(ErrMalformed, "delta: missing end")
		}
		op := Opcode(b[pos])
		pos++
		switch op {
		case End:
			if depth != 0 {
				return pos, errors.Wrapf(ErrMalformed, "delta: end at depth %d", depth)
			}
			return pos, fn(op, path[:1], nil)
		case Descend:
			if err := fn(op, path[:depth+1], nil); err != nil {
				return pos, err
			}
			depth++
			if depth == len(path) {
				path = append(path, nil)
			}
		case Ascend:
			if depth == 0 {
				return pos, errors.Wrap(ErrMalformed, "delta: ascend above root")
			}
			if err := fn(op, path[:depth+1], nil); err != nil {
				return pos, err
			}
			path[depth] = nil
			depth--
		case Key, Delete, Insert:
			tok, n, err := ConsumeToken(b[pos:])
			if err != nil {
				return pos, err
			}
			pos += n
			switch op {
			case Key:
				if err := fn(op, path[:depth+1], nil); err != nil {
					return pos, err
				}
				path[depth] = tok
			case Delete:
				path[depth] = tok
				if err := fn(op, path[:depth+1], nil); err != nil {
					return pos, err
				}
			case Insert:
				if err := fn(op, path[:depth+1], tok); err != nil {
					return pos, err
				}
			}
		default:
			return pos, errors.Wrapf(ErrUnexpectedOpcode, "delta: opcode %d", byte(op))
		}
	}
}
