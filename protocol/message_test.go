package protocol_test

import (
	"errors"
	"math"
	"math/big"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/resp3d/protocol"
)

var _ = Describe("Message", func() {
	Describe("constructors", func() {
		It("rejects simple strings containing a line break", func() {
			_, err := protocol.NewSimpleString("a\r\nb")
			Expect(errors.Is(err, protocol.ErrInvalidSimple)).To(BeTrue())

			_, err = protocol.NewSimpleString("a\nb")
			Expect(errors.Is(err, protocol.ErrInvalidSimple)).To(BeTrue())

			Expect(func() { protocol.MustSimpleString("\r") }).To(Panic())
		})

		It("rejects simple errors containing a line break", func() {
			_, err := protocol.NewSimpleError("ERR", "two\nlines")
			Expect(errors.Is(err, protocol.ErrInvalidSimple)).To(BeTrue())

			_, err = protocol.NewSimpleErrorText("ERR\r")
			Expect(errors.Is(err, protocol.ErrInvalidSimple)).To(BeTrue())
		})

		It("derives the simple error text from code and message", func() {
			m := protocol.MustSimpleError("ERR", "bad arg")
			Expect(m.Text()).To(Equal("ERR bad arg"))
			Expect(m.Code()).To(Equal("ERR"))
			Expect(m.Message()).To(Equal("bad arg"))

			m = protocol.MustSimpleError("NOAUTH", "")
			Expect(m.Text()).To(Equal("NOAUTH"))
			Expect(m.Message()).To(BeEmpty())
		})

		It("splits simple error text into code and message", func() {
			m, err := protocol.NewSimpleErrorText("WRONGTYPE Operation against a key")
			Expect(err).To(Succeed())
			Expect(m.Code()).To(Equal("WRONGTYPE"))
			Expect(m.Message()).To(Equal("Operation against a key"))
		})

		It("validates big numbers", func() {
			for _, text := range []string{"0", "-1", "+12", "123456789012345678901234567890"} {
				_, err := protocol.NewBigNumber(text)
				Expect(err).To(Succeed(), text)
			}

			for _, text := range []string{"", "-", "1.5", "12a", " 1"} {
				_, err := protocol.NewBigNumber(text)
				Expect(errors.Is(err, protocol.ErrInvalidBigNumber)).To(BeTrue(), text)
			}
		})

		It("converts big numbers to and from big.Int", func() {
			n, _ := new(big.Int).SetString("-98765432109876543210", 10)
			m := protocol.NewBigNumberFromInt(n)
			Expect(m.Text()).To(Equal("-98765432109876543210"))
			Expect(m.Int().Cmp(n)).To(Equal(0))

			plus, err := protocol.NewBigNumber("+5")
			Expect(err).To(Succeed())
			Expect(plus.Int().Int64()).To(Equal(int64(5)))

			Expect(protocol.BigNumber{}.Int().Sign()).To(Equal(0))
		})

		It("validates the verbatim format", func() {
			for _, format := range []string{"", "tx", "text", "t:t", "t\nt"} {
				_, err := protocol.NewVerbatimString(format, nil)
				Expect(errors.Is(err, protocol.ErrInvalidVerbatim)).To(BeTrue(), format)
			}

			m, err := protocol.NewVerbatimString("mkd", []byte("# title"))
			Expect(err).To(Succeed())
			Expect(m.Format()).To(Equal("mkd"))
			Expect(m.Text()).To(Equal("# title"))
		})

		It("derives the blob error text from code and message", func() {
			m := protocol.NewBlobError("ERR", "bad arg")
			Expect(m.Text()).To(Equal("ERR bad arg"))
			Expect(m.Error()).To(Equal("ERR bad arg"))
		})

		It("keeps an explicit blob error text", func() {
			m := protocol.NewBlobErrorText("ERR", "bad arg", "custom")
			Expect(m.Code()).To(Equal("ERR"))
			Expect(m.Message()).To(Equal("bad arg"))
			Expect(m.Text()).To(Equal("custom"))
		})

		It("replaces nil children with Null", func() {
			arr := protocol.NewArray(nil, protocol.Integer(1))
			Expect(arr.At(0)).To(Equal(protocol.Null{}))

			m := protocol.NewMap(protocol.Pair{Key: simple("k")})
			Expect(m.At(0).Value).To(Equal(protocol.Null{}))
		})

		It("builds command arrays from strings", func() {
			Expect(protocol.NewBulkStringArray("SET", "k", "v")).To(EqualMessage(
				protocol.NewArray(bulk("SET"), bulk("k"), bulk("v")),
			))
		})
	})

	Describe("immutability", func() {
		It("copies the bytes given to a bulk string", func() {
			b := []byte("hello")
			m := protocol.NewBulkString(b)
			b[0] = 'j'
			Expect(m.Text()).To(Equal("hello"))
		})

		It("hands out copies of the payload", func() {
			m := bulk("hello")
			b := m.Bytes()
			b[0] = 'j'
			Expect(m.Text()).To(Equal("hello"))

			v := protocol.MustVerbatimString("txt", []byte("hi"))
			vb := v.Bytes()
			vb[0] = 'x'
			Expect(v.Text()).To(Equal("hi"))
		})

		It("copies the children of aggregates", func() {
			elems := []protocol.Message{protocol.Integer(1), protocol.Integer(2)}
			arr := protocol.NewArray(elems...)
			elems[0] = protocol.Integer(9)
			Expect(arr.At(0)).To(Equal(protocol.Integer(1)))

			out := arr.Elements()
			out[1] = protocol.Integer(9)
			Expect(arr.At(1)).To(Equal(protocol.Integer(2)))

			m := protocol.NewMap(protocol.Pair{Key: simple("k"), Value: protocol.Integer(1)})
			pairs := m.Pairs()
			pairs[0].Value = protocol.Integer(2)
			Expect(m.At(0).Value).To(Equal(protocol.Integer(1)))
		})
	})

	Describe("Map.Get()", func() {
		It("returns the last value for a duplicated key", func() {
			m := protocol.NewMap(
				protocol.Pair{Key: simple("k"), Value: protocol.Integer(1)},
				protocol.Pair{Key: bulk("k"), Value: protocol.Integer(2)},
				protocol.Pair{Key: simple("k"), Value: protocol.Integer(3)},
			)

			v, ok := m.Get(simple("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(protocol.Integer(3)))

			v, ok = m.Get(bulk("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(protocol.Integer(2)))

			_, ok = m.Get(simple("missing"))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Equal()", func() {
		DescribeTable("equal messages",
			func(a, b protocol.Message) {
				Expect(protocol.Equal(a, b)).To(BeTrue())
				Expect(protocol.Equal(b, a)).To(BeTrue())
			},
			Entry("NaN", protocol.Double(math.NaN()), protocol.Double(math.NaN())),
			Entry("big numbers by value", mustBigNumber("+7"), mustBigNumber("7")),
			Entry("zero big number", protocol.BigNumber{}, mustBigNumber("0")),
			Entry("zero verbatim format", protocol.VerbatimString{}, protocol.MustVerbatimString("txt", nil)),
			Entry("blob errors by text",
				protocol.NewBlobError("ERR", "bad arg"),
				protocol.NewBlobErrorText("X", "Y", "ERR bad arg"),
			),
			Entry("sets in any order",
				protocol.NewSet(protocol.Integer(1), protocol.Integer(2), protocol.Integer(1)),
				protocol.NewSet(protocol.Integer(2), protocol.Integer(1), protocol.Integer(1)),
			),
			Entry("maps in any order",
				protocol.NewMap(
					protocol.Pair{Key: simple("a"), Value: protocol.NewArray(protocol.Integer(1))},
					protocol.Pair{Key: simple("b"), Value: protocol.Null{}},
				),
				protocol.NewMap(
					protocol.Pair{Key: simple("b"), Value: protocol.Null{}},
					protocol.Pair{Key: simple("a"), Value: protocol.NewArray(protocol.Integer(1))},
				),
			),
			Entry("nested sets inside arrays",
				protocol.NewArray(protocol.NewSet(simple("x"), simple("y"))),
				protocol.NewArray(protocol.NewSet(simple("y"), simple("x"))),
			),
			Entry("sets of sets in any order",
				protocol.NewSet(
					protocol.NewSet(protocol.Integer(1), protocol.Integer(2)),
					protocol.NewSet(protocol.Integer(3)),
				),
				protocol.NewSet(
					protocol.NewSet(protocol.Integer(3)),
					protocol.NewSet(protocol.Integer(2), protocol.Integer(1)),
				),
			),
			Entry("maps with set keys",
				protocol.NewMap(
					protocol.Pair{Key: protocol.NewSet(bulk("a"), bulk("b")), Value: protocol.Integer(1)},
					protocol.Pair{Key: protocol.NewSet(bulk("c")), Value: protocol.Integer(2)},
				),
				protocol.NewMap(
					protocol.Pair{Key: protocol.NewSet(bulk("c")), Value: protocol.Integer(2)},
					protocol.Pair{Key: protocol.NewSet(bulk("b"), bulk("a")), Value: protocol.Integer(1)},
				),
			),
			Entry("NaN and signed zeros inside sets",
				protocol.NewSet(protocol.Double(math.NaN()), protocol.Double(math.Copysign(0, -1))),
				protocol.NewSet(protocol.Double(0), protocol.Double(math.NaN())),
			),
			Entry("big numbers inside sets",
				protocol.NewSet(mustBigNumber("12345678901234567890")),
				protocol.NewSet(mustBigNumber("12345678901234567890")),
			),
		)

		DescribeTable("different messages",
			func(a, b protocol.Message) {
				Expect(protocol.Equal(a, b)).To(BeFalse())
				Expect(protocol.Equal(b, a)).To(BeFalse())
			},
			Entry("simple and bulk string", simple("a"), bulk("a")),
			Entry("simple error and blob error",
				protocol.MustSimpleError("ERR", "x"),
				protocol.NewBlobError("ERR", "x"),
			),
			Entry("integer and double", protocol.Integer(1), protocol.Double(1)),
			Entry("array and push",
				protocol.NewArray(protocol.Integer(1)),
				protocol.NewPush(protocol.Integer(1)),
			),
			Entry("array and set",
				protocol.NewArray(protocol.Integer(1)),
				protocol.NewSet(protocol.Integer(1)),
			),
			Entry("arrays in a different order",
				protocol.NewArray(protocol.Integer(1), protocol.Integer(2)),
				protocol.NewArray(protocol.Integer(2), protocol.Integer(1)),
			),
			Entry("sets with different multiplicity",
				protocol.NewSet(protocol.Integer(1), protocol.Integer(1), protocol.Integer(2)),
				protocol.NewSet(protocol.Integer(1), protocol.Integer(2), protocol.Integer(2)),
			),
			Entry("maps with different values",
				protocol.NewMap(protocol.Pair{Key: simple("a"), Value: protocol.Integer(1)}),
				protocol.NewMap(protocol.Pair{Key: simple("a"), Value: protocol.Integer(2)}),
			),
			Entry("verbatim formats",
				protocol.MustVerbatimString("txt", []byte("x")),
				protocol.MustVerbatimString("mkd", []byte("x")),
			),
			Entry("zero and NaN",
				protocol.Double(0), protocol.Double(math.NaN()),
			),
			Entry("sets of sets with different members",
				protocol.NewSet(protocol.NewSet(protocol.Integer(1)), protocol.NewSet(protocol.Integer(2))),
				protocol.NewSet(protocol.NewSet(protocol.Integer(1)), protocol.NewSet(protocol.Integer(1))),
			),
			Entry("maps whose pairs swap keys and values",
				protocol.NewMap(protocol.Pair{Key: bulk("a"), Value: bulk("b")}),
				protocol.NewMap(protocol.Pair{Key: bulk("b"), Value: bulk("a")}),
			),
			Entry("sets holding an array and a push",
				protocol.NewSet(protocol.NewArray(protocol.Integer(1))),
				protocol.NewSet(protocol.NewPush(protocol.Integer(1))),
			),
			Entry("empty set and empty map",
				protocol.NewSet(), protocol.NewMap(),
			),
		)

		It("treats a nil message as distinct from Null", func() {
			Expect(protocol.Equal(nil, nil)).To(BeTrue())
			Expect(protocol.Equal(nil, protocol.Null{})).To(BeFalse())
			Expect(protocol.Equal(protocol.Null{}, nil)).To(BeFalse())
		})

		It("compares deeply nested arrays", func() {
			Expect(protocol.Equal(nested(5000), nested(5000))).To(BeTrue())
			Expect(protocol.Equal(nested(5000), nested(5001))).To(BeFalse())
		})

		It("compares deeply nested sets and maps", func() {
			build := func(depth int, leaf int64) protocol.Message {
				var m protocol.Message = protocol.Integer(leaf)
				for i := 0; i < depth; i++ {
					if i%2 == 0 {
						m = protocol.NewSet(m, protocol.Integer(int64(i)))
					} else {
						m = protocol.NewMap(protocol.Pair{Key: protocol.Integer(int64(i)), Value: m})
					}
				}
				return m
			}

			Expect(protocol.Equal(build(10000, 1), build(10000, 1))).To(BeTrue())
			Expect(protocol.Equal(build(10000, 1), build(10000, 2))).To(BeFalse())
		})
	})

	Describe("String()", func() {
		DescribeTable("debug rendering",
			func(m protocol.Message, expected string) {
				Expect(m.String()).To(Equal(expected))
			},
			Entry("simple string", simple("OK"), "SimpleString[+OK]"),
			Entry("simple error", protocol.MustSimpleError("ERR", "no"), "SimpleError[-ERR no]"),
			Entry("integer", protocol.Integer(-3), "Integer[:-3]"),
			Entry("double", protocol.Double(math.Inf(-1)), "Double[,-inf]"),
			Entry("boolean", protocol.Boolean(true), "Boolean[#t]"),
			Entry("null", protocol.Null{}, "Null[_]"),
			Entry("big number", mustBigNumber("123"), "BigNumber[(123]"),
			Entry("bulk string", bulk("a\r\n"), `BulkString[$"a\r\n"]`),
			Entry("verbatim string", protocol.MustVerbatimString("mkd", []byte("x")), `VerbatimString[=mkd:"x"]`),
			Entry("blob error", protocol.NewBlobError("ERR", "x"), `BlobError[!"ERR x"]`),
			Entry("array",
				protocol.NewArray(protocol.Integer(1), protocol.Integer(2)),
				"Array[*2]{Integer[:1], Integer[:2]}",
			),
			Entry("map",
				protocol.NewMap(protocol.Pair{Key: simple("k"), Value: protocol.Boolean(false)}),
				"Map[%1]{SimpleString[+k]: Boolean[#f]}",
			),
			Entry("empty set", protocol.NewSet(), "Set[~0]{}"),
			Entry("push", protocol.NewPush(simple("del")), "Push[>1]{SimpleString[+del]}"),
		)
	})

	Describe("Type", func() {
		It("knows every tag", func() {
			Expect(protocol.TypeBulkString.String()).To(Equal("BulkString"))
			Expect(protocol.Type('+').Valid()).To(BeTrue())
			Expect(protocol.Type('|').Valid()).To(BeFalse())
			Expect(protocol.Type('?').String()).To(Equal(`Type('?')`))
		})

		It("tells aggregates from scalars", func() {
			for _, t := range []protocol.Type{protocol.TypeArray, protocol.TypeMap, protocol.TypeSet, protocol.TypePush} {
				Expect(t.IsAggregate()).To(BeTrue(), t.String())
			}

			Expect(protocol.TypeBulkString.IsAggregate()).To(BeFalse())
			Expect(protocol.TypeNull.IsAggregate()).To(BeFalse())
		})
	})
})

func mustBigNumber(text string) protocol.BigNumber {
	m, err := protocol.NewBigNumber(text)
	if err != nil {
		panic(err)
	}

	return m
}
