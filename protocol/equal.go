package protocol

import (
	"bytes"
	"math"
	"sort"
	"strconv"
)

// Equal reports whether a and b hold the same value.
//
// Arrays and Pushes compare element by element. Maps and Sets compare as
// multisets so their order does not matter. Errors compare by their text and
// a NaN Double equals any other NaN Double. Nothing is compared
// recursively: Arrays and Pushes are walked with an explicit work list and
// Maps and Sets through canonical ids built with an explicit stack.
func Equal(a, b Message) bool {
	type pair struct{ a, b Message }

	var ids *canon

	work := []pair{{a, b}}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		if p.a == nil || p.b == nil {
			if p.a != nil || p.b != nil {
				return false
			}
			continue
		}

		if p.a.Type() != p.b.Type() {
			return false
		}

		switch x := p.a.(type) {
		case Array:
			y := p.b.(Array)
			if len(x.elems) != len(y.elems) {
				return false
			}
			for i := range x.elems {
				work = append(work, pair{x.elems[i], y.elems[i]})
			}

		case Push:
			y := p.b.(Push)
			if len(x.elems) != len(y.elems) {
				return false
			}
			for i := range x.elems {
				work = append(work, pair{x.elems[i], y.elems[i]})
			}

		case Set, Map:
			if ids == nil {
				ids = newCanon()
			}
			if ids.id(p.a) != ids.id(p.b) {
				return false
			}

		default:
			if !scalarEqual(p.a, p.b) {
				return false
			}
		}
	}

	return true
}

// scalarEqual compares two non aggregate messages of the same Type.
func scalarEqual(a, b Message) bool {
	switch x := a.(type) {
	case SimpleString:
		return x.s == b.(SimpleString).s
	case SimpleError:
		return x.text == b.(SimpleError).text
	case Integer:
		return x == b.(Integer)
	case Double:
		y := b.(Double)
		return x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y)))
	case Boolean:
		return x == b.(Boolean)
	case Null:
		return true
	case BigNumber:
		return x.Int().Cmp(b.(BigNumber).Int()) == 0
	case BulkString:
		return bytes.Equal(x.b, b.(BulkString).b)
	case VerbatimString:
		y := b.(VerbatimString)
		return x.Format() == y.Format() && bytes.Equal(x.b, y.b)
	case BlobError:
		return x.text == b.(BlobError).text
	}

	return false
}

// canon numbers messages so that two messages get the same id exactly when
// they are Equal. Each id is interned from a key made of the type tag and
// either the canonical scalar content or the ids of the children, sorted for
// Sets and Maps.
type canon struct {
	ids map[string]int
	key []byte
}

func newCanon() *canon {
	return &canon{ids: make(map[string]int)}
}

func (c *canon) id(m Message) int {
	type frame struct {
		m        Message
		children []Message
		ids      []int
	}

	stack := []*frame{{m: m, children: children(m)}}
	for {
		f := stack[len(stack)-1]

		if n := len(f.ids); n < len(f.children) {
			child := f.children[n]
			if child.Type().IsAggregate() {
				stack = append(stack, &frame{m: child, children: children(child)})
			} else {
				f.ids = append(f.ids, c.scalarID(child))
			}
			continue
		}

		id := c.aggregateID(f.m, f.ids)
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return id
		}

		parent := stack[len(stack)-1]
		parent.ids = append(parent.ids, id)
	}
}

// children lists the elements of an aggregate, Map pairs flattened key
// first. Scalars have none.
func children(m Message) []Message {
	switch x := m.(type) {
	case Array:
		return x.elems
	case Push:
		return x.elems
	case Set:
		return x.elems
	case Map:
		out := make([]Message, 0, 2*len(x.pairs))
		for _, p := range x.pairs {
			out = append(out, p.Key, p.Value)
		}
		return out
	}

	return nil
}

func (c *canon) aggregateID(m Message, ids []int) int {
	switch m.(type) {
	case Set:
		sort.Ints(ids)

	case Map:
		pairs := make([][2]int, len(ids)/2)
		for i := range pairs {
			pairs[i] = [2]int{ids[2*i], ids[2*i+1]}
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
		for i, p := range pairs {
			ids[2*i], ids[2*i+1] = p[0], p[1]
		}
	}

	if !m.Type().IsAggregate() {
		return c.scalarID(m)
	}

	c.key = append(c.key[:0], byte(m.Type()))
	for _, id := range ids {
		c.key = strconv.AppendInt(c.key, int64(id), 10)
		c.key = append(c.key, ',')
	}

	return c.intern()
}

func (c *canon) scalarID(m Message) int {
	c.key = append(c.key[:0], byte(m.Type()))

	switch x := m.(type) {
	case SimpleString:
		c.key = append(c.key, x.s...)
	case SimpleError:
		c.key = append(c.key, x.text...)
	case Integer:
		c.key = strconv.AppendInt(c.key, int64(x), 10)
	case Double:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			c.key = append(c.key, "nan"...)
		case f == 0:
			// -0 == 0
			c.key = append(c.key, '0')
		default:
			c.key = strconv.AppendFloat(c.key, f, 'g', -1, 64)
		}
	case Boolean:
		c.key = strconv.AppendBool(c.key, bool(x))
	case BigNumber:
		c.key = x.Int().Append(c.key, 10)
	case BulkString:
		c.key = append(c.key, x.b...)
	case VerbatimString:
		c.key = append(c.key, x.Format()...)
		c.key = append(c.key, ':')
		c.key = append(c.key, x.b...)
	case BlobError:
		c.key = append(c.key, x.text...)
	}

	return c.intern()
}

func (c *canon) intern() int {
	if id, ok := c.ids[string(c.key)]; ok {
		return id
	}

	id := len(c.ids)
	c.ids[string(c.key)] = id
	return id
}
