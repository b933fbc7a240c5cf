package key

import (
	"math"
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/IvanBrykalov/memocache/internal/util"
)

// ErrUnhashable is returned by Hash for values that have no stable
// identity: slices, maps, functions, or anything containing them.
var ErrUnhashable = errors.New("key: unhashable value")

// Hashable lets an argument type define its own key identity.
//
// Hash must return equal values for arguments that Equal reports equal.
// Both methods may run arbitrary code, including calls back into the
// cache that is looking the key up.
type Hashable interface {
	Hash() uint64
	Equal(other any) bool
}

// domain tags for sequence hashing
const (
	tagTuple uint64 = iota + 0x9e3779b97f4a7c15
	tagStruct
	tagArray
	tagComplex
)

var (
	nilHash   = util.HashUint64(0x6e696c) // "nil"
	trueHash  = util.HashUint64(0x74727565)
	falseHash = util.HashUint64(0x66616c73)
)

func newSeqHasher(tag uint64, n int) util.Hasher {
	h := util.NewHasher(tag)
	h.Add(uint64(n))
	return h
}

// Hash returns the structural hash of v. Values that Equal reports equal
// hash equal.
func Hash(v any) (uint64, error) {
	switch x := v.(type) {
	case nil:
		return nilHash, nil
	case Hashable:
		return x.Hash(), nil
	case *Composite:
		return x.hash()
	case string:
		return util.HashString(x), nil
	case int:
		return util.HashUint64(uint64(x)), nil
	}
	return hashValue(reflect.ValueOf(v))
}

func hashValue(rv reflect.Value) (uint64, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nilHash, nil
	case reflect.Bool:
		if rv.Bool() {
			return trueHash, nil
		}
		return falseHash, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return util.HashUint64(uint64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return util.HashUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return hashFloat(rv.Float()), nil
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		if imag(c) == 0 {
			return hashFloat(real(c)), nil
		}
		h := util.NewHasher(tagComplex)
		h.Add(hashFloat(real(c)))
		h.Add(hashFloat(imag(c)))
		return h.Sum(), nil
	case reflect.String:
		return util.HashString(rv.String()), nil
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return util.HashUint64(uint64(rv.Pointer())), nil
	case reflect.Interface:
		if rv.IsNil() {
			return nilHash, nil
		}
		return hashValue(rv.Elem())
	case reflect.Array:
		h := newSeqHasher(tagArray, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := hashValue(rv.Index(i))
			if err != nil {
				return 0, err
			}
			h.Add(v)
		}
		return h.Sum(), nil
	case reflect.Struct:
		h := newSeqHasher(tagStruct, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			v, err := hashValue(rv.Field(i))
			if err != nil {
				return 0, err
			}
			h.Add(v)
		}
		return h.Sum(), nil
	default:
		return 0, errors.Wrapf(ErrUnhashable, "type %s", rv.Type())
	}
}

// hashFloat hashes integral floats like the equal integer so that
// 3 and 3.0 land in the same bucket.
func hashFloat(f float64) uint64 {
	if !math.IsInf(f, 0) && f == math.Trunc(f) {
		switch {
		case f >= -two63 && f < two63:
			return util.HashUint64(uint64(int64(f)))
		case f >= 0 && f < two64:
			return util.HashUint64(uint64(f))
		}
	}
	return util.HashUint64(math.Float64bits(f))
}

const (
	two63 = 1 << 63
	two64 = 1 << 64
)

// Equal reports whether two key values denote the same argument.
//
// Hashable values decide for themselves (b is asked if only b implements
// Hashable). Numbers compare by numeric value across kinds, strings and
// bools by value regardless of named type. Anything else must have the
// same dynamic type and compare equal with ==.
//
// NaN is not equal to anything, itself included, so a call with a NaN
// argument never hits: every such call computes, and an unbounded cache
// stores a new entry each time.
func Equal(a, b any) bool {
	if x, ok := a.(Hashable); ok {
		return x.Equal(b)
	}
	if y, ok := b.(Hashable); ok {
		return y.Equal(a)
	}
	if c, ok := a.(*Composite); ok {
		return c.equal(b)
	}
	if c, ok := b.(*Composite); ok {
		return c.equal(a)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if na, ok := numberOf(ra); ok {
		nb, ok := numberOf(rb)
		return ok && na.equal(nb)
	}
	switch ka, kb := ra.Kind(), rb.Kind(); {
	case ka == reflect.String && kb == reflect.String:
		return ra.String() == rb.String()
	case ka == reflect.Bool && kb == reflect.Bool:
		return ra.Bool() == rb.Bool()
	}
	if ra.Type() != rb.Type() {
		return false
	}
	return safeEqual(a, b)
}

// safeEqual is == that reports false instead of panicking when a
// comparable type holds an uncomparable dynamic value.
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

type numKind uint8

const (
	numInt numKind = iota
	numUint
	numFloat
	numComplex
)

// number is a numeric value normalized for cross-kind comparison.
type number struct {
	kind numKind
	i    int64
	u    uint64
	f    float64 // float value, or real part when kind == numComplex
	im   float64
}

func numberOf(rv reflect.Value) (number, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{kind: numInt, i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return number{kind: numUint, u: rv.Uint()}, true
	case reflect.Float32, reflect.Float64:
		return number{kind: numFloat, f: rv.Float()}, true
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		if imag(c) == 0 {
			return number{kind: numFloat, f: real(c)}, true
		}
		return number{kind: numComplex, f: real(c), im: imag(c)}, true
	}
	return number{}, false
}

func (a number) equal(b number) bool {
	if a.kind > b.kind {
		a, b = b, a
	}
	switch {
	case a.kind == numInt && b.kind == numInt:
		return a.i == b.i
	case a.kind == numInt && b.kind == numUint:
		return a.i >= 0 && uint64(a.i) == b.u
	case a.kind == numInt && b.kind == numFloat:
		return b.f == math.Trunc(b.f) && b.f >= -two63 && b.f < two63 && int64(b.f) == a.i
	case a.kind == numUint && b.kind == numUint:
		return a.u == b.u
	case a.kind == numUint && b.kind == numFloat:
		return b.f == math.Trunc(b.f) && b.f >= 0 && b.f < two64 && uint64(b.f) == a.u
	case a.kind == numFloat && b.kind == numFloat:
		return a.f == b.f
	case a.kind == numComplex && b.kind == numComplex:
		return a.f == b.f && a.im == b.im
	}
	return false
}
