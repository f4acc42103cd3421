package wire

import (
	"math"

	"github.com/arya-analytics/epidemic/revision"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type tokenTag = byte

const (
	tagNil tokenTag = iota
	tagFalse
	tagTrue
	tagInt
	tagUint
	tagFloat
	tagString
	tagBytes
	tagTable
	tagColumn
)

// AppendToken appends the encoding of a single key or value token to b.
func AppendToken(b []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(b, tagNil), nil
	case bool:
		if t {
			return append(b, tagTrue), nil
		}
		return append(b, tagFalse), nil
	case int:
		return appendInt(b, int64(t)), nil
	case int8:
		return appendInt(b, int64(t)), nil
	case int16:
		return appendInt(b, int64(t)), nil
	case int32:
		return appendInt(b, int64(t)), nil
	case int64:
		return appendInt(b, t), nil
	case uint8:
		return appendInt(b, int64(t)), nil
	case uint16:
		return appendInt(b, int64(t)), nil
	case uint32:
		return appendInt(b, int64(t)), nil
	case uint:
		return protowire.AppendVarint(append(b, tagUint), uint64(t)), nil
	case uint64:
		return protowire.AppendVarint(append(b, tagUint), t), nil
	case float32:
		return protowire.AppendFixed64(append(b, tagFloat), math.Float64bits(float64(t))), nil
	case float64:
		return protowire.AppendFixed64(append(b, tagFloat), math.Float64bits(t)), nil
	case string:
		return protowire.AppendString(append(b, tagString), t), nil
	case []byte:
		return protowire.AppendBytes(append(b, tagBytes), t), nil
	case revision.Table:
		return protowire.AppendString(append(b, tagTable), string(t)), nil
	case revision.Column:
		return protowire.AppendString(append(b, tagColumn), string(t)), nil
	}
	return b, errors.Newf("cannot encode token of type %T", v)
}

func appendInt(b []byte, v int64) []byte {
	return protowire.AppendVarint(append(b, tagInt), protowire.EncodeZigZag(v))
}

// ConsumeToken decodes a single token from the front of b and returns it along
// with the number of bytes read.
func ConsumeToken(b []byte) (any, int, error) {
	if len(b) == 0 {
		return nil, 0, errors.Wrap(ErrMalformed, "token: unexpected end of input")
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagNil:
		return nil, 1, nil
	case tagFalse:
		return false, 1, nil
	case tagTrue:
		return true, 1, nil
	case tagInt:
		v, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return nil, 0, wrapParseError(n)
		}
		return protowire.DecodeZigZag(v), n + 1, nil
	case tagUint:
		v, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return nil, 0, wrapParseError(n)
		}
		return v, n + 1, nil
	case tagFloat:
		v, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			return nil, 0, wrapParseError(n)
		}
		return math.Float64frombits(v), n + 1, nil
	case tagString, tagTable, tagColumn:
		v, n := protowire.ConsumeString(rest)
		if n < 0 {
			return nil, 0, wrapParseError(n)
		}
		switch tag {
		case tagTable:
			return revision.Table(v), n + 1, nil
		case tagColumn:
			return revision.Column(v), n + 1, nil
		}
		return v, n + 1, nil
	case tagBytes:
		v, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return nil, 0, wrapParseError(n)
		}
		return append([]byte(nil), v...), n + 1, nil
	}
	return nil, 0, errors.Wrapf(ErrMalformed, "token: unknown tag %d", tag)
}

func wrapParseError(n int) error {
	return errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
}
