package key

import (
	"fmt"
	"reflect"
	"strings"
)

// marker is a process-unique value separating positional values from
// keyword pairs inside a Composite. It is compared by address.
type marker struct{ name string }

// kwMark must not be a zero-size allocation: distinct zero-size values may
// share an address.
var kwMark = &marker{name: "kwmark"}

// Composite is the immutable key of a call that cannot use a bare scalar.
// Equality and hashing are structural over its items (tuple semantics).
//
// A single-item Composite is only built for a lone positional argument,
// so it compares and hashes exactly like that argument: f(3) and f(3.0)
// produce the same key unless typed mode is on.
type Composite struct {
	items []any
}

// Len returns the number of items.
func (c *Composite) Len() int { return len(c.items) }

// At returns item i.
func (c *Composite) At(i int) any { return c.items[i] }

func (c *Composite) String() string {
	parts := make([]string, len(c.items))
	for i, it := range c.items {
		if it == kwMark {
			parts[i] = "<kwmark>"
			continue
		}
		parts[i] = fmt.Sprintf("%v", it)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (c *Composite) hash() (uint64, error) {
	if len(c.items) == 1 {
		return Hash(c.items[0])
	}
	h := newSeqHasher(tagTuple, len(c.items))
	for _, it := range c.items {
		v, err := Hash(it)
		if err != nil {
			return 0, err
		}
		h.Add(v)
	}
	return h.Sum(), nil
}

func (c *Composite) equal(other any) bool {
	if len(c.items) == 1 {
		if o, ok := other.(*Composite); ok {
			if o.Len() != 1 {
				return false
			}
			other = o.items[0]
		}
		return Equal(c.items[0], other)
	}
	o, ok := other.(*Composite)
	if !ok || len(o.items) != len(c.items) {
		return false
	}
	if o == c {
		return true
	}
	for i := range c.items {
		if !Equal(c.items[i], o.items[i]) {
			return false
		}
	}
	return true
}

// Build derives the cache key of a call.
//
// With typed off, no keywords and a single positional argument whose
// dynamic type is exactly string or exactly int, the argument itself is
// the key. Otherwise the key is a *Composite of the positional values,
// then (if any keywords) a unique marker followed by each name and value,
// then (if typed) the dynamic type of every positional and keyword value.
func Build(args Args, typed bool) any {
	pos, kw := args.Positional, args.Keyword
	if !typed && len(kw) == 0 && len(pos) == 1 {
		switch v := pos[0].(type) {
		case string, int:
			return v
		}
	}

	n := len(pos)
	if len(kw) > 0 {
		n += 1 + 2*len(kw)
	}
	if typed {
		n += len(pos) + len(kw)
	}
	items := make([]any, 0, n)
	items = append(items, pos...)
	if len(kw) > 0 {
		items = append(items, kwMark)
		for _, p := range kw {
			items = append(items, p.Name, p.Value)
		}
	}
	if typed {
		for _, v := range pos {
			items = append(items, typeOf(v))
		}
		for _, p := range kw {
			items = append(items, typeOf(p.Value))
		}
	}
	return &Composite{items: items}
}

// typeOf returns the dynamic type of v as a key item. A nil interface has
// no reflect.Type, so it is represented by a nil item.
func typeOf(v any) any {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	return t
}
