package protocol

import (
	"io"
)

const defaultReadSize = 4096

// Reader reads messages from an io.Reader, feeding whatever each Read
// returns into a Decoder.
type Reader struct {
	r   io.Reader
	dec *Decoder
	buf []byte

	pending []Message
	err     error
}

// NewReader returns a Reader decoding from r.
//
// To bound the memory a misbehaving peer can make the Reader hold, pass
// WithMaxPayloadSize and WithMaxDepth.
func NewReader(r io.Reader, opts ...DecoderOption) *Reader {
	return &Reader{
		r:   r,
		dec: NewDecoder(opts...),
		buf: make([]byte, defaultReadSize),
	}
}

// ReadMessage returns the next message.
//
// It returns io.EOF if the stream ends between messages and
// io.ErrUnexpectedEOF if it ends inside one. Messages completed before a
// protocol error are returned before the error is.
func (rr *Reader) ReadMessage() (Message, error) {
	for len(rr.pending) == 0 {
		if rr.err != nil {
			return nil, rr.err
		}

		n, err := rr.r.Read(rr.buf)
		if n > 0 {
			msgs, derr := rr.dec.Feed(rr.buf[:n])
			rr.pending = append(rr.pending, msgs...)

			if derr != nil {
				rr.err = derr
				continue
			}
		}

		if err != nil {
			if err == io.EOF && rr.dec.Pending() {
				err = io.ErrUnexpectedEOF
			}
			rr.err = err
		}
	}

	m := rr.pending[0]
	rr.pending[0] = nil
	rr.pending = rr.pending[1:]

	return m, nil
}

// Buffered returns the number of messages already decoded but not yet
// returned by ReadMessage.
func (rr *Reader) Buffered() int {
	return len(rr.pending)
}
