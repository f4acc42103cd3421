package grpc

import (
	"github.com/arya-analytics/epidemic/internal/message"
	"github.com/arya-analytics/epidemic/internal/node"
	"github.com/arya-analytics/epidemic/internal/wire"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	sourceField  protowire.Number = 1
	messageField protowire.Number = 2
)

// encodeEnvelope frames an encoded message with the ID of the node that
// sent it.
func encodeEnvelope(source node.ID, msg message.Message) ([]byte, error) {
	body, err := message.Encode(msg)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, len(source)+len(body)+8)
	b = protowire.AppendTag(b, sourceField, protowire.BytesType)
	b = protowire.AppendString(b, string(source))
	b = protowire.AppendTag(b, messageField, protowire.BytesType)
	b = protowire.AppendBytes(b, body)
	return b, nil
}

func decodeEnvelope(b []byte) (node.ID, message.Message, error) {
	var (
		source node.ID
		body   []byte
		seen   int
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, errors.Wrap(wire.ErrMalformed, protowire.ParseError(n).Error())
		}
		b = b[n:]
		if typ != protowire.BytesType {
			return "", nil, errors.Wrapf(wire.ErrMalformed, "envelope field %d has wire type %d", num, typ)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", nil, errors.Wrap(wire.ErrMalformed, protowire.ParseError(n).Error())
		}
		b = b[n:]
		switch num {
		case sourceField:
			source = node.ID(v)
		case messageField:
			body = v
		default:
			continue
		}
		seen++
	}
	if seen != 2 || source == "" {
		return "", nil, errors.Wrap(wire.ErrMalformed, "incomplete envelope")
	}
	msg, err := message.Decode(body)
	return source, msg, err
}
