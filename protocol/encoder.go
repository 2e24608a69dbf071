package protocol

import (
	"math"
	"strconv"
)

var crlf = []byte("\r\n")

// Encode returns the wire representation of m. The result is allocated once
// with the exact size reported by Size.
//
// Encode never fails: every Message that can be constructed has a valid
// encoding. It is safe for concurrent use.
func Encode(m Message) []byte {
	return AppendMessage(make([]byte, 0, Size(m)), m)
}

// AppendMessage appends the wire representation of m to dst and returns the
// extended slice.
//
// Children of aggregates are written from an explicit stack, so the nesting
// depth of m does not grow the call stack.
func AppendMessage(dst []byte, m Message) []byte {
	stack := []Message{orNull(m)}

	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := m.(type) {
		case Array:
			dst = appendHeader(dst, TypeArray, len(v.elems))
			stack = pushReversed(stack, v.elems)
		case Set:
			dst = appendHeader(dst, TypeSet, len(v.elems))
			stack = pushReversed(stack, v.elems)
		case Push:
			dst = appendHeader(dst, TypePush, len(v.elems))
			stack = pushReversed(stack, v.elems)
		case Map:
			dst = appendHeader(dst, TypeMap, len(v.pairs))
			for i := len(v.pairs) - 1; i >= 0; i-- {
				stack = append(stack, v.pairs[i].Value, v.pairs[i].Key)
			}
		default:
			dst = appendScalar(dst, m)
		}
	}

	return dst
}

// Size returns the exact number of bytes Encode produces for m.
func Size(m Message) int {
	var (
		n     int
		stack = []Message{orNull(m)}
	)

	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := m.(type) {
		case Array:
			n += headerSize(len(v.elems))
			stack = append(stack, v.elems...)
		case Set:
			n += headerSize(len(v.elems))
			stack = append(stack, v.elems...)
		case Push:
			n += headerSize(len(v.elems))
			stack = append(stack, v.elems...)
		case Map:
			n += headerSize(len(v.pairs))
			for _, p := range v.pairs {
				stack = append(stack, p.Key, p.Value)
			}
		default:
			n += scalarSize(m)
		}
	}

	return n
}

func appendScalar(dst []byte, m Message) []byte {
	switch v := m.(type) {
	case SimpleString:
		return appendLine(dst, TypeSimpleString, v.s)
	case SimpleError:
		return appendLine(dst, TypeSimpleError, v.text)
	case Integer:
		dst = append(dst, byte(TypeInteger))
		dst = strconv.AppendInt(dst, int64(v), 10)
		return append(dst, crlf...)
	case Double:
		dst = append(dst, byte(TypeDouble))
		dst = appendDouble(dst, float64(v))
		return append(dst, crlf...)
	case Boolean:
		if v {
			return append(dst, '#', 't', '\r', '\n')
		}
		return append(dst, '#', 'f', '\r', '\n')
	case Null:
		return append(dst, '_', '\r', '\n')
	case BigNumber:
		return appendLine(dst, TypeBigNumber, v.digits())
	case BulkString:
		dst = appendHeader(dst, TypeBulkString, len(v.b))
		dst = append(dst, v.b...)
		return append(dst, crlf...)
	case VerbatimString:
		dst = appendHeader(dst, TypeVerbatimString, verbatimFormatLength+1+len(v.b))
		dst = append(dst, v.Format()...)
		dst = append(dst, ':')
		dst = append(dst, v.b...)
		return append(dst, crlf...)
	case BlobError:
		dst = appendHeader(dst, TypeBlobError, len(v.text))
		dst = append(dst, v.text...)
		return append(dst, crlf...)
	}

	panic("protocol: unhandled message type " + m.Type().String())
}

func scalarSize(m Message) int {
	switch v := m.(type) {
	case SimpleString:
		return 1 + len(v.s) + 2
	case SimpleError:
		return 1 + len(v.text) + 2
	case Integer:
		return 1 + intLen(int64(v)) + 2
	case Double:
		var buf [32]byte
		return 1 + len(appendDouble(buf[:0], float64(v))) + 2
	case Boolean:
		return 4
	case Null:
		return 3
	case BigNumber:
		return 1 + len(v.digits()) + 2
	case BulkString:
		return headerSize(len(v.b)) + len(v.b) + 2
	case VerbatimString:
		n := verbatimFormatLength + 1 + len(v.b)
		return headerSize(n) + n + 2
	case BlobError:
		return headerSize(len(v.text)) + len(v.text) + 2
	}

	panic("protocol: unhandled message type " + m.Type().String())
}

func appendLine(dst []byte, t Type, s string) []byte {
	dst = append(dst, byte(t))
	dst = append(dst, s...)
	return append(dst, crlf...)
}

func appendHeader(dst []byte, t Type, n int) []byte {
	dst = append(dst, byte(t))
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, crlf...)
}

func headerSize(n int) int {
	return 1 + intLen(int64(n)) + 2
}

func appendDouble(dst []byte, f float64) []byte {
	switch {
	case math.IsInf(f, 1):
		return append(dst, "inf"...)
	case math.IsInf(f, -1):
		return append(dst, "-inf"...)
	case math.IsNaN(f):
		return append(dst, "nan"...)
	}

	return strconv.AppendFloat(dst, f, 'g', -1, 64)
}

func intLen(n int64) int {
	var buf [20]byte
	return len(strconv.AppendInt(buf[:0], n, 10))
}

func pushReversed(stack, elems []Message) []Message {
	for i := len(elems) - 1; i >= 0; i-- {
		stack = append(stack, elems[i])
	}

	return stack
}
