package protocol_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/resp3d/protocol"
)

// countingWriter records how many Write calls it received.
type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

var _ = Describe("Writer", func() {
	Describe("WriteOk", func() {
		It("ends in \r\n", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteOk(w)).To(Succeed())
			Expect(w.String()).To(HaveSuffix("\r\n"))
		})

		It("writes the OK simple string", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteOk(w)).To(Succeed())
			Expect(w.String()).To(Equal("+OK\r\n"))
		})
	})

	Describe("WriteError", func() {
		It("includes the error code and the error string", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteError(w, "ERR", "errMessage")).To(Succeed())
			Expect(w.String()).To(Equal("-ERR errMessage\r\n"))
		})

		It("keeps the reply on one line", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteError(w, "ERR", "first\r\nsecond")).To(Succeed())
			Expect(w.String()).To(Equal("-ERR first  second\r\n"))
		})

		It("writes the bare code without a message", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteError(w, "NOAUTH", "")).To(Succeed())
			Expect(w.String()).To(Equal("-NOAUTH\r\n"))
		})
	})

	Describe("Write", func() {
		It("encodes the message", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.Write(w, protocol.NewArray(bulk("a"), protocol.Integer(1)))).To(Succeed())
			Expect(w.String()).To(Equal("*2\r\n$1\r\na\r\n:1\r\n"))
		})

		It("returns the error of the underlying writer", func() {
			Expect(protocol.Write(failingWriter{}, protocol.OK)).To(MatchError("broken pipe"))
		})
	})

	Describe("WriteMessages", func() {
		It("writes every message with a single call", func() {
			w := &countingWriter{}
			rw := protocol.NewWriter(w)

			Expect(rw.WriteMessages(protocol.OK, protocol.Integer(2), protocol.Null{})).To(Succeed())
			Expect(w.writes).To(Equal(1))
			Expect(w.String()).To(Equal("+OK\r\n:2\r\n_\r\n"))
		})

		It("reuses its buffer between calls", func() {
			w := &countingWriter{}
			rw := protocol.NewWriter(w)

			Expect(rw.WriteMessage(bulk("first"))).To(Succeed())
			Expect(rw.WriteMessage(protocol.Boolean(false))).To(Succeed())
			Expect(w.writes).To(Equal(2))
			Expect(w.String()).To(Equal("$5\r\nfirst\r\n#f\r\n"))
		})

		It("does nothing without messages", func() {
			w := &countingWriter{}

			Expect(protocol.NewWriter(w).WriteMessages()).To(Succeed())
			Expect(w.writes).To(Equal(0))
		})
	})
})
