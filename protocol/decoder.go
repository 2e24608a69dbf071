package protocol

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// maxPrealloc caps the capacity reserved for an aggregate's children, since
// the declared count comes from the peer.
const maxPrealloc = 64

type decoderState uint8

const (
	// stateTag waits for the type byte of the next value.
	stateTag decoderState = iota

	// stateLine waits for a CRLF terminated line: the whole value for line
	// types, the length for blobs and the count for aggregates.
	stateLine

	// statePayload waits for n payload bytes plus CRLF.
	statePayload
)

// frame is an aggregate whose children are still being read.
type frame struct {
	typ   Type
	want  int
	elems []Message
}

func (f *frame) build() Message {
	switch f.typ {
	case TypeMap:
		pairs := make([]Pair, len(f.elems)/2)
		for i := range pairs {
			pairs[i] = Pair{Key: f.elems[2*i], Value: f.elems[2*i+1]}
		}
		return Map{pairs: pairs}
	case TypeSet:
		return Set{elems: f.elems}
	case TypePush:
		return Push{elems: f.elems}
	}

	return Array{elems: f.elems}
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxPayloadSize limits the length of lines, the declared length of blobs
// and the declared count of aggregates to n. Exceeding it is a protocol
// error. Zero, the default, means no limit.
func WithMaxPayloadSize(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxPayload = n
	}
}

// WithMaxDepth limits how many aggregates may be open at once. Exceeding it
// is a protocol error. Zero, the default, means no limit.
func WithMaxDepth(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxDepth = n
	}
}

// Decoder is an incremental RESP3 decoder for a single stream.
//
// Bytes are handed to the Decoder as they arrive, in chunks of any size.
// Partial values are kept between calls, so a message split across chunks
// decodes exactly as if it had arrived whole. Nested aggregates are tracked
// on an explicit frame stack, so nesting depth never grows the call stack.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte

	// pos is the first unconsumed byte of buf.
	pos int

	// scan is where the search for the next '\n' resumes.
	scan int

	// base is the stream offset of buf[0].
	base int64

	state decoderState
	typ   Type
	n     int

	stack []frame

	maxPayload int
	maxDepth   int

	err error
}

// NewDecoder returns a Decoder with the given options applied.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Feed adds p to the input and returns every message that is now complete,
// in stream order.
//
// A nil error does not mean the input ended on a message boundary; Pending
// reports whether a partial message is held back. If the input is malformed
// Feed returns the messages completed before the fault together with a
// *ProtocolError, and every later call returns the same error.
//
// p is copied and may be reused by the caller once Feed returns.
func (d *Decoder) Feed(p []byte) ([]Message, error) {
	if d.err != nil {
		return nil, d.err
	}

	d.compact()
	d.buf = append(d.buf, p...)

	var out []Message
	for {
		m, err := d.next()
		if err == ErrIncomplete {
			break
		}

		if err != nil {
			return out, err
		}

		out = append(out, m)
	}

	d.compact()
	return out, nil
}

// Next decodes one message from the bytes already fed. It returns
// ErrIncomplete if more input is required.
func (d *Decoder) Next() (Message, error) {
	if d.err != nil {
		return nil, d.err
	}

	return d.next()
}

// Pending reports whether a message has been started but not finished.
func (d *Decoder) Pending() bool {
	return d.state != stateTag || len(d.stack) > 0
}

// Buffered returns the input that has been fed but not consumed yet. The
// slice is only valid until the next call to Feed.
func (d *Decoder) Buffered() []byte {
	return d.buf[d.pos:]
}

// Depth returns the number of aggregates currently open.
func (d *Decoder) Depth() int {
	return len(d.stack)
}

// Reset discards all buffered input, partial messages and any error, keeping
// the configured options.
func (d *Decoder) Reset() {
	for i := range d.stack {
		d.stack[i] = frame{}
	}

	*d = Decoder{
		buf:        d.buf[:0],
		stack:      d.stack[:0],
		maxPayload: d.maxPayload,
		maxDepth:   d.maxDepth,
	}
}

// Decode decodes the first message in b. It returns the message and the
// number of bytes it occupied, or ErrIncomplete if b holds only a prefix of
// a message. b is not modified.
func Decode(b []byte, opts ...DecoderOption) (Message, int, error) {
	d := NewDecoder(opts...)
	d.buf = b

	m, err := d.next()
	if err != nil {
		return nil, 0, err
	}

	return m, d.pos, nil
}

func (d *Decoder) next() (Message, error) {
	for {
		var (
			m   Message
			err error
		)

		switch d.state {
		case stateTag:
			if d.pos >= len(d.buf) {
				return nil, ErrIncomplete
			}

			t := Type(d.buf[d.pos])
			if !t.Valid() {
				return nil, d.fail(d.pos, fmt.Errorf("%w %q", ErrUnknownType, d.buf[d.pos]))
			}

			d.pos++
			d.scan = d.pos
			d.typ = t
			d.state = stateLine
			continue

		case stateLine:
			var (
				line  []byte
				start int
			)

			line, start, err = d.readLine()
			if err != nil {
				return nil, err
			}

			m, err = d.parseLine(line, start)

		case statePayload:
			m, err = d.readPayload()
		}

		if err != nil {
			return nil, err
		}

		if m == nil {
			// A header was read, its payload or children come next.
			continue
		}

		if m = d.complete(m); m != nil {
			return m, nil
		}
	}
}

// readLine returns the content of the next CRLF terminated line and its
// offset in buf.
func (d *Decoder) readLine() ([]byte, int, error) {
	i := bytes.IndexByte(d.buf[d.scan:], '\n')
	if i < 0 {
		d.scan = len(d.buf)

		if d.maxPayload > 0 && len(d.buf)-d.pos > d.maxPayload+1 {
			return nil, 0, d.fail(d.pos, fmt.Errorf("%w: line longer than %d bytes", ErrLimitExceeded, d.maxPayload))
		}

		return nil, 0, ErrIncomplete
	}

	end := d.scan + i
	if end == d.pos || d.buf[end-1] != '\r' {
		return nil, 0, d.fail(end, fmt.Errorf("%w: line ends in a bare \\n", ErrMissingTerminator))
	}

	start := d.pos
	line := d.buf[start : end-1]

	if d.maxPayload > 0 && len(line) > d.maxPayload {
		return nil, 0, d.fail(start, fmt.Errorf("%w: line longer than %d bytes", ErrLimitExceeded, d.maxPayload))
	}

	d.pos = end + 1
	d.scan = d.pos
	return line, start, nil
}

// parseLine interprets a line read in stateLine. It returns nil without an
// error when the line was a header and more must be read.
func (d *Decoder) parseLine(line []byte, start int) (Message, error) {
	d.state = stateTag

	switch d.typ {
	case TypeSimpleString:
		if bytes.IndexByte(line, '\r') >= 0 {
			return nil, d.fail(start, ErrInvalidSimple)
		}
		return SimpleString{s: string(line)}, nil

	case TypeSimpleError:
		if bytes.IndexByte(line, '\r') >= 0 {
			return nil, d.fail(start, ErrInvalidSimple)
		}
		text := string(line)
		code, message := splitErrorText(text)
		return SimpleError{code: code, message: message, text: text}, nil

	case TypeInteger:
		v, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return nil, d.fail(start, fmt.Errorf("%w: %q", ErrInvalidInteger, line))
		}
		return Integer(v), nil

	case TypeDouble:
		f, ok := parseDouble(line)
		if !ok {
			return nil, d.fail(start, fmt.Errorf("%w: %q", ErrInvalidDouble, line))
		}
		return Double(f), nil

	case TypeBoolean:
		if len(line) != 1 || (line[0] != 't' && line[0] != 'f') {
			return nil, d.fail(start, fmt.Errorf("%w, got %q", ErrInvalidBoolean, line))
		}
		return Boolean(line[0] == 't'), nil

	case TypeNull:
		if len(line) != 0 {
			return nil, d.fail(start, fmt.Errorf("%w, got %q", ErrInvalidNull, line))
		}
		return Null{}, nil

	case TypeBigNumber:
		if !isDecimal(line) {
			return nil, d.fail(start, fmt.Errorf("%w: %q", ErrInvalidBigNumber, line))
		}
		return BigNumber{text: string(line)}, nil

	case TypeBulkString, TypeVerbatimString, TypeBlobError:
		n, err := d.parseLength(line, start, d.typ == TypeBulkString)
		if err != nil {
			return nil, err
		}

		if n < 0 {
			return Null{}, nil
		}

		d.n = n
		d.state = statePayload
		return nil, nil

	case TypeArray, TypeMap, TypeSet, TypePush:
		n, err := d.parseLength(line, start, d.typ == TypeArray)
		if err != nil {
			return nil, err
		}

		if n < 0 {
			return Null{}, nil
		}

		f := frame{typ: d.typ, want: n}
		if f.typ == TypeMap {
			f.want = 2 * n
		}

		if f.want == 0 {
			return f.build(), nil
		}

		if d.maxDepth > 0 && len(d.stack) >= d.maxDepth {
			return nil, d.fail(start, fmt.Errorf("%w: more than %d nested aggregates", ErrLimitExceeded, d.maxDepth))
		}

		prealloc := f.want
		if prealloc > maxPrealloc {
			prealloc = maxPrealloc
		}
		f.elems = make([]Message, 0, prealloc)

		d.stack = append(d.stack, f)
		return nil, nil
	}

	// Unreachable, tags are checked in stateTag.
	return nil, d.fail(start, fmt.Errorf("%w %q", ErrUnknownType, byte(d.typ)))
}

// parseLength parses a blob length or aggregate count. When allowNull is set
// the RESP2 null form -1 is accepted and reported as -1.
func (d *Decoder) parseLength(line []byte, start int, allowNull bool) (int, error) {
	if allowNull && len(line) == 2 && line[0] == '-' && line[1] == '1' {
		return -1, nil
	}

	if len(line) == 0 || !allDigits(line) {
		return 0, d.fail(start, fmt.Errorf("%w: %q", ErrInvalidLength, line))
	}

	// Two bits of headroom keep 2*n for maps and pos+n+2 for payloads from
	// overflowing.
	n, err := strconv.ParseInt(string(line), 10, strconv.IntSize-2)
	if err != nil {
		return 0, d.fail(start, fmt.Errorf("%w: %q", ErrInvalidLength, line))
	}

	if d.maxPayload > 0 && n > int64(d.maxPayload) {
		return 0, d.fail(start, fmt.Errorf("%w: length %d is larger than %d", ErrLimitExceeded, n, d.maxPayload))
	}

	return int(n), nil
}

func (d *Decoder) readPayload() (Message, error) {
	if len(d.buf)-d.pos < d.n+2 {
		return nil, ErrIncomplete
	}

	start := d.pos
	payload := d.buf[start : start+d.n]
	if d.buf[start+d.n] != '\r' || d.buf[start+d.n+1] != '\n' {
		return nil, d.fail(start+d.n, fmt.Errorf("%w after %d byte payload", ErrMissingTerminator, d.n))
	}

	var m Message
	switch d.typ {
	case TypeBulkString:
		m = BulkString{b: cloneBytes(payload)}

	case TypeVerbatimString:
		if len(payload) < verbatimFormatLength+1 || payload[verbatimFormatLength] != ':' {
			return nil, d.fail(start, fmt.Errorf("%w: missing format prefix", ErrInvalidVerbatim))
		}

		format := payload[:verbatimFormatLength]
		if bytes.IndexAny(format, "\r\n") >= 0 {
			return nil, d.fail(start, fmt.Errorf("%w: %q", ErrInvalidVerbatim, format))
		}

		m = VerbatimString{format: string(format), b: cloneBytes(payload[verbatimFormatLength+1:])}

	case TypeBlobError:
		m = blobErrorFromText(string(payload))
	}

	d.pos = start + d.n + 2
	d.scan = d.pos
	d.state = stateTag
	return m, nil
}

// complete hands a finished value to the innermost open aggregate, closing
// every aggregate that becomes full. It returns the top level message once
// there is one, nil otherwise.
func (d *Decoder) complete(m Message) Message {
	for len(d.stack) > 0 {
		top := &d.stack[len(d.stack)-1]
		top.elems = append(top.elems, m)
		if len(top.elems) < top.want {
			return nil
		}

		m = top.build()
		*top = frame{}
		d.stack = d.stack[:len(d.stack)-1]
	}

	return m
}

// compact drops the consumed prefix of buf.
func (d *Decoder) compact() {
	if d.pos == 0 {
		return
	}

	n := copy(d.buf, d.buf[d.pos:])
	d.buf = d.buf[:n]
	d.base += int64(d.pos)
	d.scan -= d.pos
	d.pos = 0
}

func (d *Decoder) fail(at int, err error) error {
	d.err = &ProtocolError{Offset: d.base + int64(at), Err: err}
	return d.err
}

// parseDouble accepts the non finite literals and
// [+-]digits[.digits][(e|E)[+-]digits].
func parseDouble(b []byte) (float64, bool) {
	switch string(b) {
	case "inf", "+inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	case "nan", "-nan":
		return math.NaN(), true
	}

	if !isFloatLiteral(b) {
		return 0, false
	}

	f, err := strconv.ParseFloat(string(b), 64)
	return f, err == nil
}

func isFloatLiteral(b []byte) bool {
	i := 0
	digits := func() int {
		s := i
		for i < len(b) && b[i] >= '0' && b[i] <= '9' {
			i++
		}
		return i - s
	}

	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		i++
	}

	if digits() == 0 {
		return false
	}

	if i < len(b) && b[i] == '.' {
		i++
		if digits() == 0 {
			return false
		}
	}

	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '-' || b[i] == '+') {
			i++
		}
		if digits() == 0 {
			return false
		}
	}

	return i == len(b)
}
