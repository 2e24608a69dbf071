package protocol

import (
	"io"
)

// Writer encodes messages onto an io.Writer, reusing one buffer between
// writes. Each call issues a single Write on the underlying writer.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage encodes m and writes it.
func (rw *Writer) WriteMessage(m Message) error {
	return rw.WriteMessages(m)
}

// WriteMessages encodes ms back to back and writes them with one call.
func (rw *Writer) WriteMessages(ms ...Message) error {
	if len(ms) == 0 {
		return nil
	}

	rw.buf = rw.buf[:0]
	for _, m := range ms {
		rw.buf = AppendMessage(rw.buf, m)
	}

	_, err := rw.w.Write(rw.buf)
	return err
}

// Write encodes m and writes it to w.
func Write(w io.Writer, m Message) error {
	_, err := w.Write(Encode(m))
	return err
}

// WriteOk writes the +OK reply.
func WriteOk(w io.Writer) error {
	return Write(w, OK)
}

// WriteError writes a simple error reply built from code and errMsg. Any CR
// or LF in errMsg is replaced by a space so the reply stays on one line.
func WriteError(w io.Writer, code, errMsg string) error {
	return Write(w, SanitizedError(code, errMsg))
}

// SanitizedError returns the SimpleError for code and errMsg with CR and LF
// replaced by spaces.
func SanitizedError(code, errMsg string) SimpleError {
	m, err := NewSimpleError(sanitizeLine(code), sanitizeLine(errMsg))
	if err != nil {
		// sanitizeLine removed everything NewSimpleError rejects.
		panic(err)
	}

	return m
}

func sanitizeLine(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '\r' || c == '\n' {
			b[i] = ' '
		}
	}

	return string(b)
}
