package protocol

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Message is a single RESP3 value.
//
// The set of implementations is closed: only the variants declared in this
// package satisfy Message. All of them are immutable once constructed.
type Message interface {
	// Type returns the wire tag of the value.
	Type() Type

	// String returns a debug rendering that includes the type tag.
	String() string

	isMessage()
}

var (
	_ Message = SimpleString{}
	_ Message = SimpleError{}
	_ Message = Integer(0)
	_ Message = Double(0)
	_ Message = Boolean(false)
	_ Message = Null{}
	_ Message = BigNumber{}
	_ Message = BulkString{}
	_ Message = VerbatimString{}
	_ Message = BlobError{}
	_ Message = Array{}
	_ Message = Map{}
	_ Message = Set{}
	_ Message = Push{}
)

// OK is the +OK reply.
var OK = SimpleString{s: "OK"}

// SimpleString is a short, binary unsafe string that never contains CR or LF.
type SimpleString struct {
	s string
}

// NewSimpleString returns a SimpleString holding s. It fails with
// ErrInvalidSimple if s contains \r or \n.
func NewSimpleString(s string) (SimpleString, error) {
	if err := checkSimple(s); err != nil {
		return SimpleString{}, err
	}

	return SimpleString{s: s}, nil
}

// MustSimpleString is like NewSimpleString but panics on invalid input.
func MustSimpleString(s string) SimpleString {
	m, err := NewSimpleString(s)
	if err != nil {
		panic(err)
	}

	return m
}

func (m SimpleString) Value() string { return m.s }
func (SimpleString) Type() Type      { return TypeSimpleString }
func (SimpleString) isMessage()      {}

func (m SimpleString) String() string {
	return "SimpleString[+" + m.s + "]"
}

// SimpleError is a one line error reply such as "ERR unknown command".
//
// Code is the first word of the text and Message the remainder. The text is
// what goes on the wire.
type SimpleError struct {
	code    string
	message string
	text    string
}

// NewSimpleError builds an error from a code and message. The text is the
// code alone when message is empty, otherwise code + " " + message.
func NewSimpleError(code, message string) (SimpleError, error) {
	text := code
	if message != "" {
		text = code + " " + message
	}

	if err := checkSimple(text); err != nil {
		return SimpleError{}, err
	}

	return SimpleError{code: code, message: message, text: text}, nil
}

// NewSimpleErrorText builds an error from its full text, splitting the code
// off at the first whitespace.
func NewSimpleErrorText(text string) (SimpleError, error) {
	if err := checkSimple(text); err != nil {
		return SimpleError{}, err
	}

	code, message := splitErrorText(text)
	return SimpleError{code: code, message: message, text: text}, nil
}

// MustSimpleError is like NewSimpleError but panics on invalid input.
func MustSimpleError(code, message string) SimpleError {
	m, err := NewSimpleError(code, message)
	if err != nil {
		panic(err)
	}

	return m
}

func (m SimpleError) Code() string    { return m.code }
func (m SimpleError) Message() string { return m.message }
func (m SimpleError) Text() string    { return m.text }
func (m SimpleError) Error() string   { return m.text }
func (SimpleError) Type() Type        { return TypeSimpleError }
func (SimpleError) isMessage()        {}

func (m SimpleError) String() string {
	return "SimpleError[-" + m.text + "]"
}

// Integer is a signed 64 bit number.
type Integer int64

func (Integer) Type() Type { return TypeInteger }
func (Integer) isMessage() {}

func (m Integer) String() string {
	return "Integer[:" + strconv.FormatInt(int64(m), 10) + "]"
}

// Double is an IEEE-754 double, including the infinities and NaN.
type Double float64

func (Double) Type() Type { return TypeDouble }
func (Double) isMessage() {}

func (m Double) String() string {
	return "Double[," + string(appendDouble(nil, float64(m))) + "]"
}

// Boolean is true or false.
type Boolean bool

func (Boolean) Type() Type { return TypeBoolean }
func (Boolean) isMessage() {}

func (m Boolean) String() string {
	if m {
		return "Boolean[#t]"
	}

	return "Boolean[#f]"
}

// Null is the absence of a value. The RESP2 null bulk string ($-1) and null
// array (*-1) decode to Null as well.
type Null struct{}

func (Null) Type() Type     { return TypeNull }
func (Null) isMessage()     {}
func (Null) String() string { return "Null[_]" }

// BigNumber is an integer too large for Integer, kept as its decimal text.
type BigNumber struct {
	text string
}

// NewBigNumber validates text as a base 10 integer with an optional sign.
func NewBigNumber(text string) (BigNumber, error) {
	if !isDecimal([]byte(text)) {
		return BigNumber{}, fmt.Errorf("%w: %q", ErrInvalidBigNumber, text)
	}

	return BigNumber{text: text}, nil
}

// NewBigNumberFromInt returns the BigNumber for n.
func NewBigNumberFromInt(n *big.Int) BigNumber {
	return BigNumber{text: n.String()}
}

func (m BigNumber) Text() string { return m.text }
func (BigNumber) Type() Type     { return TypeBigNumber }
func (BigNumber) isMessage()     {}

// Int parses the number. The zero BigNumber is 0.
func (m BigNumber) Int() *big.Int {
	n := new(big.Int)
	if m.text == "" {
		return n
	}

	// The text was validated at construction so this can not fail.
	n.SetString(strings.TrimPrefix(m.text, "+"), 10)
	return n
}

func (m BigNumber) String() string {
	return "BigNumber[(" + m.digits() + "]"
}

func (m BigNumber) digits() string {
	if m.text == "" {
		return "0"
	}

	return m.text
}

// BulkString is a binary safe, length prefixed string.
type BulkString struct {
	b []byte
}

// NewBulkString returns a BulkString holding a copy of b.
func NewBulkString(b []byte) BulkString {
	return BulkString{b: cloneBytes(b)}
}

// NewBulkStringFromString returns a BulkString holding s.
func NewBulkStringFromString(s string) BulkString {
	return BulkString{b: []byte(s)}
}

// Bytes returns a copy of the payload.
func (m BulkString) Bytes() []byte { return cloneBytes(m.b) }
func (m BulkString) Text() string  { return string(m.b) }
func (m BulkString) Len() int      { return len(m.b) }
func (BulkString) Type() Type      { return TypeBulkString }
func (BulkString) isMessage()      {}

func (m BulkString) String() string {
	return "BulkString[$" + strconv.Quote(string(m.b)) + "]"
}

const verbatimFormatLength = 3

// VerbatimString is a BulkString with a three byte format hint such as "txt"
// or "mkd".
type VerbatimString struct {
	format string
	b      []byte
}

// NewVerbatimString returns a VerbatimString. format must be exactly three
// bytes and must not contain ':', '\r' or '\n'.
func NewVerbatimString(format string, data []byte) (VerbatimString, error) {
	if len(format) != verbatimFormatLength || strings.ContainsAny(format, ":\r\n") {
		return VerbatimString{}, fmt.Errorf("%w: %q", ErrInvalidVerbatim, format)
	}

	return VerbatimString{format: format, b: cloneBytes(data)}, nil
}

// MustVerbatimString is like NewVerbatimString but panics on invalid input.
func MustVerbatimString(format string, data []byte) VerbatimString {
	m, err := NewVerbatimString(format, data)
	if err != nil {
		panic(err)
	}

	return m
}

// Format returns the format hint. The zero VerbatimString uses "txt".
func (m VerbatimString) Format() string {
	if m.format == "" {
		return "txt"
	}

	return m.format
}

func (m VerbatimString) Bytes() []byte { return cloneBytes(m.b) }
func (m VerbatimString) Text() string  { return string(m.b) }
func (VerbatimString) Type() Type      { return TypeVerbatimString }
func (VerbatimString) isMessage()      {}

func (m VerbatimString) String() string {
	return "VerbatimString[=" + m.Format() + ":" + strconv.Quote(string(m.b)) + "]"
}

// BlobError is a binary safe error reply.
//
// Its text defaults to code + " " + message. When an explicit text is given
// it is authoritative: it is what Text returns and what gets encoded.
type BlobError struct {
	code    string
	message string
	text    string
}

// NewBlobError returns a BlobError whose text is code + " " + message.
func NewBlobError(code, message string) BlobError {
	return NewBlobErrorText(code, message, code+" "+message)
}

// NewBlobErrorText returns a BlobError with an explicit text.
func NewBlobErrorText(code, message, text string) BlobError {
	return BlobError{code: code, message: message, text: text}
}

func blobErrorFromText(text string) BlobError {
	code, message := splitErrorText(text)
	return BlobError{code: code, message: message, text: text}
}

func (m BlobError) Code() string    { return m.code }
func (m BlobError) Message() string { return m.message }
func (m BlobError) Text() string    { return m.text }
func (m BlobError) Error() string   { return m.text }
func (BlobError) Type() Type        { return TypeBlobError }
func (BlobError) isMessage()        {}

func (m BlobError) String() string {
	return "BlobError[!" + strconv.Quote(m.text) + "]"
}

func checkSimple(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidSimple, s)
	}

	return nil
}

func splitErrorText(text string) (code, message string) {
	i := strings.IndexAny(text, " \t\r\n")
	if i < 0 {
		return text, ""
	}

	return text[:i], text[i+1:]
}

// isDecimal reports whether b is [+-]digit+.
func isDecimal(b []byte) bool {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		b = b[1:]
	}

	return len(b) > 0 && allDigits(b)
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
