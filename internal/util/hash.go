// Package util contains internal helpers (hashing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashString hashes the bytes of s with xxhash (64-bit).
func HashString(s string) uint64 { return xxhash.Sum64String(s) }

// HashUint64 hashes the 8 little-endian bytes of u without allocating.
func HashUint64(u uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], u)
	return xxhash.Sum64(b[:])
}

// Hasher folds a sequence of 64-bit hashes into one, in order.
// The zero value is not usable; call NewHasher.
type Hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

// NewHasher returns a Hasher seeded with a domain tag so that
// sequences of different shapes (tuple, struct, array) do not collide
// trivially with each other or with a scalar.
func NewHasher(tag uint64) Hasher {
	h := Hasher{d: xxhash.New()}
	h.Add(tag)
	return h
}

// Add mixes one element hash into the running state.
func (h *Hasher) Add(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:]) // xxhash.Digest.Write never fails
}

// Sum returns the combined hash.
func (h *Hasher) Sum() uint64 { return h.d.Sum64() }
