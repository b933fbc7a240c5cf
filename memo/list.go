package memo

import "github.com/cockroachdb/errors"

// root is the index of the sentinel slot. It is never a real entry.
const root int32 = 0

// entry is one cached key→result binding plus its recency links.
// Links are arena indices, not pointers, so the store and the list can
// both refer to an entry without owning it.
type entry[R any] struct {
	key    any
	hash   uint64
	result R

	prev, next int32
	linked     bool
}

// entryList is a circular doubly linked list over an arena of entries.
// root.next is the least recently used entry (eviction candidate) and
// root.prev the most recently used one. Empty: root.next == root.prev == root.
type entryList[R any] struct {
	slots []entry[R]
	free  []int32

	// epoch changes whenever the arena is replaced by clear, which
	// invalidates every index handed out before.
	epoch uint64
}

func newEntryList[R any](hint int) *entryList[R] {
	l := &entryList[R]{}
	l.init(hint)
	return l
}

func (l *entryList[R]) init(hint int) {
	if hint < 0 {
		hint = 0
	}
	l.slots = make([]entry[R], 1, hint+1)
	l.slots[root].prev, l.slots[root].next = root, root
	l.free = nil
}

// alloc stores a new unlinked entry and returns its index.
func (l *entryList[R]) alloc(k any, h uint64, r R) int32 {
	var i int32
	if n := len(l.free); n > 0 {
		i = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.slots = append(l.slots, entry[R]{})
		i = int32(len(l.slots) - 1)
	}
	l.reset(i, k, h, r)
	return i
}

// reset overwrites the payload of slot i. Links are left to the caller.
func (l *entryList[R]) reset(i int32, k any, h uint64, r R) {
	e := &l.slots[i]
	e.key, e.hash, e.result = k, h, r
}

// release returns an unlinked slot to the free list.
func (l *entryList[R]) release(i int32) {
	if l.slots[i].linked {
		panic(errors.AssertionFailedf("memo: release of linked entry %d", i))
	}
	l.slots[i] = entry[R]{}
	l.free = append(l.free, i)
}

func (l *entryList[R]) keyAt(i int32) any { return l.slots[i].key }

func (l *entryList[R]) linked(i int32) bool { return l.slots[i].linked }

func (l *entryList[R]) empty() bool { return l.slots[root].next == root }

// appendTail links i as the most recently used entry.
func (l *entryList[R]) appendTail(i int32) {
	last := l.slots[root].prev
	e := &l.slots[i]
	e.prev, e.next, e.linked = last, root, true
	l.slots[last].next = i
	l.slots[root].prev = i
}

// unlink removes i from the list by relinking its neighbours.
func (l *entryList[R]) unlink(i int32) {
	e := &l.slots[i]
	if i == root || !e.linked {
		panic(errors.AssertionFailedf("memo: unlink of unlinked entry %d", i))
	}
	l.slots[e.prev].next = e.next
	l.slots[e.next].prev = e.prev
	e.prev, e.next, e.linked = root, root, false
}

// moveToTail marks i as the most recently used entry.
func (l *entryList[R]) moveToTail(i int32) {
	if l.slots[root].prev == i {
		return
	}
	l.unlink(i)
	l.appendTail(i)
}

// peekHead returns the least recently used entry.
func (l *entryList[R]) peekHead() (int32, bool) {
	n := l.slots[root].next
	return n, n != root
}

// clear detaches every entry and returns the old arena (root excluded)
// for the caller to drop.
func (l *entryList[R]) clear() []entry[R] {
	old := l.slots[1:]
	l.init(0)
	l.epoch++
	return old
}
