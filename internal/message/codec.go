package message

import (
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Encode returns the byte encoding of m.
func Encode(m Message) ([]byte, error) { return Append(nil, m) }

// Append appends the byte encoding of m to b.
func Append(b []byte, m Message) ([]byte, error) {
	b = append(b, byte(m.Kind()))
	switch msg := m.(type) {
	case Hello:
		return protowire.AppendBytes(b, msg.Instance[:]), nil
	case Sync:
		return protowire.AppendBytes(b, msg.Instance[:]), nil
	case Diff:
		b = protowire.AppendString(b, msg.Origin.String())
		b = protowire.AppendFixed64(b, msg.Start)
		b = protowire.AppendFixed64(b, msg.End)
		return append(b, msg.Delta.Bytes()...), nil
	case Ack:
		b = protowire.AppendString(b, msg.Acknowledger.String())
		b = protowire.AppendFixed64(b, msg.AckSeq)
		b = protowire.AppendString(b, msg.Origin.String())
		return protowire.AppendFixed64(b, msg.Seq), nil
	}
	return nil, errors.Newf("cannot encode message of type %T", m)
}

// Decode parses a single message from b. b must hold exactly one message.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(wire.ErrMalformed, "message: empty")
	}
	r := reader{b: b[1:]}
	var m Message
	switch k := Kind(b[0]); k {
	case KindHello:
		m = Hello{Instance: r.instance()}
	case KindSync:
		m = Sync{Instance: r.instance()}
	case KindDiff:
		d := Diff{Origin: r.key(), Start: r.fixed64(), End: r.fixed64()}
		if r.err == nil {
			d.Delta, r.err = wire.ParseDelta(append([]byte(nil), r.b...))
			r.b = nil
		}
		m = d
	case KindAck:
		m = Ack{Acknowledger: r.key(), AckSeq: r.fixed64(), Origin: r.key(), Seq: r.fixed64()}
	default:
		return nil, errors.Wrapf(wire.ErrMalformed, "message: unknown kind %d", uint8(k))
	}
	if r.err != nil {
		return nil, errors.Wrapf(r.err, "decode %s", m.Kind())
	}
	if len(r.b) != 0 {
		return nil, errors.Wrapf(wire.ErrMalformed, "decode %s: %d trailing bytes", m.Kind(), len(r.b))
	}
	return m, nil
}

// reader consumes fields from b, retaining the first error it hits.
type reader struct {
	b   []byte
	err error
}

func (r *reader) fail(n int) {
	r.err = errors.Wrap(wire.ErrMalformed, protowire.ParseError(n).Error())
}

func (r *reader) instance() (inst node.Instance) {
	if r.err != nil {
		return inst
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		r.fail(n)
		return inst
	}
	r.b = r.b[n:]
	inst, err := uuid.FromBytes(v)
	if err != nil {
		r.err = errors.Wrapf(wire.ErrMalformed, "instance: %v", err)
	}
	return inst
}

func (r *reader) key() node.Key {
	if r.err != nil {
		return node.Key{}
	}
	v, n := protowire.ConsumeString(r.b)
	if n < 0 {
		r.fail(n)
		return node.Key{}
	}
	r.b = r.b[n:]
	k, err := node.ParseKey(v)
	if err != nil {
		r.err = errors.Wrapf(wire.ErrMalformed, "%v", err)
	}
	return k
}

func (r *reader) fixed64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeFixed64(r.b)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.b = r.b[n:]
	return v
}
