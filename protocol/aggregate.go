package protocol

import (
	"strconv"
	"strings"
)

// Array is an ordered sequence of messages.
type Array struct {
	elems []Message
}

// NewArray returns an Array of the given elements. The slice is copied and
// nil elements are stored as Null.
func NewArray(elems ...Message) Array {
	return Array{elems: cloneElems(elems)}
}

// NewBulkStringArray returns an Array of BulkStrings, which is how commands
// are sent to a server.
func NewBulkStringArray(args ...string) Array {
	elems := make([]Message, len(args))
	for i, arg := range args {
		elems[i] = NewBulkStringFromString(arg)
	}

	return Array{elems: elems}
}

func (m Array) Len() int            { return len(m.elems) }
func (m Array) At(i int) Message    { return m.elems[i] }
func (m Array) Elements() []Message { return cloneElems(m.elems) }
func (Array) Type() Type            { return TypeArray }
func (Array) isMessage()            {}
func (m Array) String() string      { return renderElems(TypeArray, m.elems) }

// Set is a collection of messages. It is unordered as a value but encoded in
// the order it was built with.
type Set struct {
	elems []Message
}

// NewSet returns a Set of the given elements. The slice is copied and nil
// elements are stored as Null.
func NewSet(elems ...Message) Set {
	return Set{elems: cloneElems(elems)}
}

func (m Set) Len() int            { return len(m.elems) }
func (m Set) At(i int) Message    { return m.elems[i] }
func (m Set) Elements() []Message { return cloneElems(m.elems) }
func (Set) Type() Type            { return TypeSet }
func (Set) isMessage()            {}
func (m Set) String() string      { return renderElems(TypeSet, m.elems) }

// Push is an out of band message sent by a server without a matching
// request. Apart from its tag it is an Array.
type Push struct {
	elems []Message
}

// NewPush returns a Push of the given elements. The slice is copied and nil
// elements are stored as Null.
func NewPush(elems ...Message) Push {
	return Push{elems: cloneElems(elems)}
}

func (m Push) Len() int            { return len(m.elems) }
func (m Push) At(i int) Message    { return m.elems[i] }
func (m Push) Elements() []Message { return cloneElems(m.elems) }
func (Push) Type() Type            { return TypePush }
func (Push) isMessage()            {}
func (m Push) String() string      { return renderElems(TypePush, m.elems) }

// Pair is one key/value entry of a Map.
type Pair struct {
	Key   Message
	Value Message
}

// Map is an ordered list of key/value pairs. Keys are not required to be
// unique.
type Map struct {
	pairs []Pair
}

// NewMap returns a Map of the given pairs in order. The slice is copied and
// nil keys or values are stored as Null.
func NewMap(pairs ...Pair) Map {
	c := make([]Pair, len(pairs))
	for i, p := range pairs {
		c[i] = Pair{Key: orNull(p.Key), Value: orNull(p.Value)}
	}

	return Map{pairs: c}
}

func (m Map) Len() int      { return len(m.pairs) }
func (m Map) At(i int) Pair { return m.pairs[i] }
func (Map) Type() Type      { return TypeMap }
func (Map) isMessage()      {}

// Pairs returns a copy of the pairs in order.
func (m Map) Pairs() []Pair {
	c := make([]Pair, len(m.pairs))
	copy(c, m.pairs)
	return c
}

// Get returns the value of the last pair whose key is Equal to key.
func (m Map) Get(key Message) (Message, bool) {
	for i := len(m.pairs) - 1; i >= 0; i-- {
		if Equal(m.pairs[i].Key, key) {
			return m.pairs[i].Value, true
		}
	}

	return nil, false
}

func (m Map) String() string {
	var b strings.Builder
	b.WriteString("Map[%")
	b.WriteString(strconv.Itoa(len(m.pairs)))
	b.WriteString("]{")
	for i, p := range m.pairs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Key.String())
		b.WriteString(": ")
		b.WriteString(p.Value.String())
	}
	b.WriteString("}")
	return b.String()
}

func renderElems(t Type, elems []Message) string {
	var b strings.Builder
	b.WriteString(t.String())
	b.WriteByte('[')
	b.WriteByte(byte(t))
	b.WriteString(strconv.Itoa(len(elems)))
	b.WriteString("]{")
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteString("}")
	return b.String()
}

func cloneElems(elems []Message) []Message {
	c := make([]Message, len(elems))
	for i, e := range elems {
		c[i] = orNull(e)
	}

	return c
}

func orNull(m Message) Message {
	if m == nil {
		return Null{}
	}

	return m
}
