package memo

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IvanBrykalov/memocache/internal/util"
	"github.com/IvanBrykalov/memocache/key"
)

// engine implements the three call strategies over one store and one
// recency list.
//
// Concurrency: mu guards store and list. It is never held while user code
// runs: the wrapped function and key equality checks (which may call back
// into this engine) execute with mu released, and every step after such a
// call-out re-checks the state it depends on.
type engine[R any] struct {
	mode    Mode
	maxSize int
	typed   bool

	// ---- guarded by mu ----
	mu    sync.Mutex
	store *store
	list  *entryList[R]

	metrics Metrics
	log     *slog.Logger

	// ---- hot counters (separate cache lines) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
}

func newEngine[R any](opt Options) *engine[R] {
	mode, maxSize := opt.mode()
	hint := 0
	if mode == Bounded {
		hint = min(maxSize, 1024)
	}
	return &engine[R]{
		mode:    mode,
		maxSize: maxSize,
		typed:   opt.Typed,
		store:   newStore(hint),
		list:    newEntryList[R](hint),
		metrics: opt.Metrics,
		log:     opt.Logger,
	}
}

func (e *engine[R]) call(ctx context.Context, fn Func[R], args key.Args) (R, error) {
	switch e.mode {
	case Uncached:
		return e.uncached(ctx, fn, args)
	case Unbounded:
		return e.unbounded(ctx, fn, args)
	default:
		return e.bounded(ctx, fn, args)
	}
}

func (e *engine[R]) uncached(ctx context.Context, fn Func[R], args key.Args) (R, error) {
	e.miss()
	return fn(ctx, args)
}

func (e *engine[R]) unbounded(ctx context.Context, fn Func[R], args key.Args) (R, error) {
	k, h, err := e.keyOf(args)
	if err != nil {
		var zero R
		return zero, err
	}

	e.mu.Lock()
	if i, ok := e.lookup(k, h); ok {
		r := e.list.slots[i].result
		e.mu.Unlock()
		e.hit()
		return r, nil
	}
	e.mu.Unlock()

	e.miss()
	r, err := fn(ctx, args)
	if err != nil {
		return r, err
	}

	e.mu.Lock()
	if i, ok := e.lookup(k, h); ok {
		// Installed meanwhile: assignment semantics, newest result wins.
		e.list.slots[i].result = r
	} else {
		e.store.put(h, e.list.alloc(k, h, r))
	}
	e.metrics.Size(e.store.len())
	e.mu.Unlock()
	return r, nil
}

func (e *engine[R]) bounded(ctx context.Context, fn Func[R], args key.Args) (R, error) {
	k, h, err := e.keyOf(args)
	if err != nil {
		var zero R
		return zero, err
	}

	e.mu.Lock()
	if i, ok := e.lookup(k, h); ok {
		// An unlinked entry is mid-eviction in an outer call on this
		// stack; serve it without touching recency.
		if e.list.linked(i) {
			e.list.moveToTail(i)
		}
		r := e.list.slots[i].result
		e.mu.Unlock()
		e.hit()
		return r, nil
	}
	e.mu.Unlock()

	e.miss()
	r, err := fn(ctx, args)
	if err != nil {
		return r, err
	}

	e.mu.Lock()
	if _, ok := e.lookup(k, h); ok {
		e.mu.Unlock()
		e.log.Debug("memo: key installed during call, result not stored again")
		return r, nil
	}

	if e.store.len() < e.maxSize || e.list.empty() {
		i := e.list.alloc(k, h, r)
		e.store.put(h, i)
		e.list.appendTail(i)
		e.metrics.Size(e.store.len())
		e.mu.Unlock()
		return r, nil
	}

	victim, _ := e.list.peekHead()
	e.list.unlink(victim)
	epoch, gen := e.list.epoch, e.store.gen
	vk, vh := e.list.slots[victim].key, e.list.slots[victim].hash

	i, ok := e.store.remove(vk, vh, e.list.keyAt, e.equalUnlocked)
	if !ok {
		// A call-out during the removal dropped the victim already.
		e.dropVictim(victim, vh, epoch)
		e.mu.Unlock()
		e.log.Debug("memo: eviction victim vanished, result not cached")
		return r, nil
	}
	e.metrics.Evict()
	// Normally i == victim. After a reentrant clear the same key object
	// may have been reinstalled in another slot; keep it off the list too.
	if e.list.linked(i) {
		e.list.unlink(i)
	}
	if i != victim {
		e.dropVictim(victim, vh, epoch)
	}

	if e.store.gen != gen+1 {
		// Call-outs during the removal mutated the store: k may be
		// installed by now, or the freed room taken.
		epoch = e.list.epoch
		_, dup := e.lookup(k, h)
		stale := e.list.epoch != epoch
		if dup || e.store.len() >= e.maxSize {
			if !stale {
				e.list.release(i)
			}
			e.metrics.Size(e.store.len())
			e.mu.Unlock()
			e.log.Debug("memo: cache changed during eviction, result not cached")
			return r, nil
		}
		if stale {
			i = e.list.alloc(k, h, r)
		}
	}

	e.list.reset(i, k, h, r)
	e.store.put(h, i)
	e.list.appendTail(i)
	e.metrics.Size(e.store.len())
	e.mu.Unlock()
	return r, nil
}

// dropVictim disposes of an unlinked eviction victim that was not the slot
// removed from the store. A slot of a cleared arena is left alone; one the
// store still files goes back on the list; anything else is freed.
func (e *engine[R]) dropVictim(victim int32, vh uint64, epoch uint64) {
	switch {
	case e.list.epoch != epoch || e.list.linked(victim):
	case e.store.holds(vh, victim):
		e.list.appendTail(victim)
	default:
		e.list.release(victim)
	}
}

// keyOf builds the call key and hashes it once. Hashing may run user code,
// so it happens before the lock is taken.
func (e *engine[R]) keyOf(args key.Args) (any, uint64, error) {
	k := key.Build(args, e.typed)
	h, err := key.Hash(k)
	if err != nil {
		return nil, 0, err
	}
	return k, h, nil
}

// lookup must be called with mu held and returns with mu held, though mu
// may have been released in between.
func (e *engine[R]) lookup(k any, h uint64) (int32, bool) {
	return e.store.get(k, h, e.list.keyAt, e.equalUnlocked)
}

// equalUnlocked runs a key comparison with mu released. If the comparison
// panics, mu stays released and the panic unwinds through the caller.
func (e *engine[R]) equalUnlocked(a, b any) bool {
	e.mu.Unlock()
	eq := key.Equal(a, b)
	e.mu.Lock()
	return eq
}

func (e *engine[R]) hit() {
	e.hits.Add(1)
	e.metrics.Hit()
}

func (e *engine[R]) miss() {
	e.misses.Add(1)
	e.metrics.Miss()
}

func (e *engine[R]) info() Info {
	e.mu.Lock()
	n := e.store.len()
	e.mu.Unlock()
	return Info{
		Hits:        e.hits.Load(),
		Misses:      e.misses.Load(),
		CurrentSize: n,
		MaxSize:     e.maxSize,
		Unbounded:   e.mode == Unbounded,
	}
}

// clear drops every entry and resets the counters. Calls in flight keep
// their results; indices they hold are invalidated by the list epoch.
func (e *engine[R]) clear() {
	e.mu.Lock()
	n := e.store.len()
	_ = e.list.clear()
	e.store.clear()
	e.hits.Store(0)
	e.misses.Store(0)
	e.metrics.Size(0)
	e.mu.Unlock()
	e.log.Debug("memo: cache cleared", slog.Int("entries", n))
}
