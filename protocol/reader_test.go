package protocol_test

import (
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/resp3d/protocol"
)

var _ = Describe("Reader", func() {
	It("reads messages one at a time", func() {
		r := protocol.NewReader(strings.NewReader("+OK\r\n*2\r\n:1\r\n:2\r\n"))

		m, err := r.ReadMessage()
		Expect(err).To(Succeed())
		Expect(m).To(EqualMessage(simple("OK")))
		Expect(r.Buffered()).To(Equal(1))

		m, err = r.ReadMessage()
		Expect(err).To(Succeed())
		Expect(m).To(EqualMessage(protocol.NewArray(protocol.Integer(1), protocol.Integer(2))))

		_, err = r.ReadMessage()
		Expect(err).To(Equal(io.EOF))
	})

	It("assembles messages from single byte reads", func() {
		var stream strings.Builder
		var expected []protocol.Message
		for _, c := range wireCases() {
			stream.WriteString(c.wire)
			expected = append(expected, c.msg)
		}

		r := protocol.NewReader(iotest.OneByteReader(strings.NewReader(stream.String())))
		for i := range expected {
			m, err := r.ReadMessage()
			Expect(err).To(Succeed())
			Expect(m).To(EqualMessage(expected[i]))
		}

		_, err := r.ReadMessage()
		Expect(err).To(Equal(io.EOF))
	})

	It("reports a stream cut inside a message", func() {
		r := protocol.NewReader(strings.NewReader("$10\r\nhello"))

		_, err := r.ReadMessage()
		Expect(err).To(Equal(io.ErrUnexpectedEOF))
	})

	It("returns the messages before a protocol error", func() {
		r := protocol.NewReader(strings.NewReader(":1\r\n:2\r\n#nope\r\n"))

		for _, expected := range []protocol.Integer{1, 2} {
			m, err := r.ReadMessage()
			Expect(err).To(Succeed())
			Expect(m).To(Equal(expected))
		}

		_, err := r.ReadMessage()
		Expect(errors.Is(err, protocol.ErrInvalidBoolean)).To(BeTrue())

		_, again := r.ReadMessage()
		Expect(again).To(Equal(err))
	})

	It("returns read errors from the underlying reader", func() {
		r := protocol.NewReader(iotest.TimeoutReader(strings.NewReader("+OK\r\n")))

		m, err := r.ReadMessage()
		Expect(err).To(Succeed())
		Expect(m).To(EqualMessage(simple("OK")))

		_, err = r.ReadMessage()
		Expect(err).To(MatchError(iotest.ErrTimeout))
	})

	It("applies decoder options", func() {
		r := protocol.NewReader(strings.NewReader(nestedWire(3)), protocol.WithMaxDepth(2))

		_, err := r.ReadMessage()
		Expect(errors.Is(err, protocol.ErrLimitExceeded)).To(BeTrue())
	})
})
