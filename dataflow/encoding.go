package dataflow

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// Encoded values start with their Kind byte, followed by:
//
//	bool      1 byte (0 or 1)
//	string    uvarint length, bytes
//	float     8 bytes, big-endian IEEE-754 bits
//	tuple     uvarint arity, elements
//	relation  uvarint field count, fields as strings, uvarint size, tuples

// AppendValue appends the binary encoding of v to buf.
func AppendValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Kind()))
	switch val := v.(type) {
	case Bool:
		if val {
			return append(buf, 1)
		}
		return append(buf, 0)
	case String:
		return appendString(buf, string(val))
	case Float:
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(val)))
	case Tuple:
		return appendElements(buf, val)
	case *Relation:
		buf = binary.AppendUvarint(buf, uint64(len(val.Fields())))
		for _, f := range val.Fields() {
			buf = appendString(buf, f)
		}
		buf = binary.AppendUvarint(buf, uint64(val.Len()))
		val.Ascend(func(t Tuple) bool {
			buf = appendElements(buf, t)
			return true
		})
		return buf
	default:
		panic(errors.AssertionFailedf("cannot encode value type: %T", v))
	}
}

// AppendTuple appends the encoding of a tuple row (arity and elements, without
// a kind byte) to buf.
func AppendTuple(buf []byte, t Tuple) []byte {
	return appendElements(buf, t)
}

// DecodeValue decodes one value from data and returns the remaining bytes.
func DecodeValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return nil, nil, errors.New("unexpected end of input decoding value")
	}
	kind, data := Kind(data[0]), data[1:]
	switch kind {
	case KindBool:
		if len(data) < 1 {
			return nil, nil, errors.New("bool value must be 1 byte")
		}
		return Bool(data[0] != 0), data[1:], nil
	case KindString:
		s, rest, err := decodeString(data)
		if err != nil {
			return nil, nil, err
		}
		return String(s), rest, nil
	case KindFloat:
		if len(data) < 8 {
			return nil, nil, errors.Newf("float value must be 8 bytes, got %d", len(data))
		}
		return Float(math.Float64frombits(binary.BigEndian.Uint64(data))), data[8:], nil
	case KindTuple:
		return DecodeTuple(data)
	case KindRelation:
		nfields, rest, err := decodeUvarint(data)
		if err != nil {
			return nil, nil, err
		}
		// Every field and tuple takes at least one byte.
		if nfields > uint64(len(rest)) {
			return nil, nil, errors.Newf("relation field count %d exceeds remaining %d bytes", nfields, len(rest))
		}
		fields := make([]string, 0, nfields)
		for i := uint64(0); i < nfields; i++ {
			var f string
			if f, rest, err = decodeString(rest); err != nil {
				return nil, nil, err
			}
			fields = append(fields, f)
		}
		size, rest, err := decodeUvarint(rest)
		if err != nil {
			return nil, nil, err
		}
		if size > uint64(len(rest)) {
			return nil, nil, errors.Newf("relation size %d exceeds remaining %d bytes", size, len(rest))
		}
		b := NewBuilder(fields...)
		for i := uint64(0); i < size; i++ {
			var t Tuple
			if t, rest, err = DecodeTuple(rest); err != nil {
				return nil, nil, err
			}
			if _, err := b.Add(t); err != nil {
				return nil, nil, err
			}
		}
		return b.Build(), rest, nil
	default:
		return nil, nil, errors.Newf("unknown value kind: %d", byte(kind))
	}
}

// DecodeTuple decodes a tuple row written by AppendTuple.
func DecodeTuple(data []byte) (Tuple, []byte, error) {
	n, rest, err := decodeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest)) {
		return nil, nil, errors.Newf("tuple arity %d exceeds remaining %d bytes", n, len(rest))
	}
	t := make(Tuple, n)
	for i := range t {
		if t[i], rest, err = DecodeValue(rest); err != nil {
			return nil, nil, errors.Wrapf(err, "tuple element %d", i)
		}
	}
	return t, rest, nil
}

func appendElements(buf []byte, t Tuple) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(t)))
	for _, v := range t {
		buf = AppendValue(buf, v)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func decodeString(data []byte) (string, []byte, error) {
	n, rest, err := decodeUvarint(data)
	if err != nil {
		return "", nil, err
	}
	if n > uint64(len(rest)) {
		return "", nil, errors.Newf("string length %d exceeds remaining %d bytes", n, len(rest))
	}
	return string(rest[:n]), rest[n:], nil
}

func decodeUvarint(data []byte) (uint64, []byte, error) {
	n, size := binary.Uvarint(data)
	if size <= 0 {
		return 0, nil, errors.New("malformed length prefix")
	}
	return n, data[size:], nil
}
