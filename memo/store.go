package memo

import "slices"

// store maps precomputed key hashes to the arena slots holding keys with
// that hash. It never hashes anything itself: key hashing may run user
// code and must happen once per call, in the engine.
//
// Equality is supplied by the caller and may call back into the cache.
// Every mutation bumps gen; a lookup that sees gen move across an
// equality check starts over, because the bucket it was scanning may no
// longer exist.
type store struct {
	buckets map[uint64][]int32
	n       int
	gen     uint64
}

func newStore(hint int) *store {
	return &store{buckets: make(map[uint64][]int32, hint)}
}

// get returns the slot whose key equals k. Identical keys match without
// calling eq. keyAt resolves a slot to its key.
func (s *store) get(k any, h uint64, keyAt func(int32) any, eq func(a, b any) bool) (int32, bool) {
	pos, ok := s.find(k, h, keyAt, eq)
	if !ok {
		return 0, false
	}
	return s.buckets[h][pos], true
}

// put records slot i under hash h. The caller must have probed for an
// equal key with no mutation since; put does not check for duplicates.
func (s *store) put(h uint64, i int32) {
	s.buckets[h] = append(s.buckets[h], i)
	s.n++
	s.gen++
}

// remove deletes the slot whose key equals k and returns it.
func (s *store) remove(k any, h uint64, keyAt func(int32) any, eq func(a, b any) bool) (int32, bool) {
	pos, ok := s.find(k, h, keyAt, eq)
	if !ok {
		return 0, false
	}
	b := s.buckets[h]
	i := b[pos]
	if len(b) == 1 {
		delete(s.buckets, h)
	} else {
		s.buckets[h] = slices.Delete(b, pos, pos+1)
	}
	s.n--
	s.gen++
	return i, true
}

// holds reports whether slot i is filed under hash h.
func (s *store) holds(h uint64, i int32) bool { return slices.Contains(s.buckets[h], i) }

func (s *store) len() int { return s.n }

func (s *store) clear() {
	s.buckets = make(map[uint64][]int32)
	s.n = 0
	s.gen++
}

// find returns the bucket position of k. The returned position is valid
// until the next mutation.
func (s *store) find(k any, h uint64, keyAt func(int32) any, eq func(a, b any) bool) (int, bool) {
restart:
	for {
		gen := s.gen
		b := s.buckets[h]
		for pos, i := range b {
			sk := keyAt(i)
			if sk == k {
				return pos, true
			}
			same := eq(sk, k)
			if s.gen != gen {
				continue restart
			}
			if same {
				return pos, true
			}
		}
		return 0, false
	}
}
