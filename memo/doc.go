// Package memo memoizes function calls: it derives a key from the call's
// arguments, returns a previously computed result when one is cached, and
// otherwise calls the wrapped function and remembers its result.
//
// Design
//
//   - Modes: Options.Unbounded caches every distinct call; MaxSize > 0 keeps
//     at most MaxSize results and evicts the least recently used one;
//     MaxSize == 0 calls through every time and only counts misses.
//
//   - Keys: package key turns positional and keyword arguments into a
//     hashable key. A lone string or int argument is its own key; anything
//     else becomes a key.Composite. Options.Typed keeps 3 and 3.0 apart.
//
//   - Storage: an arena of entries linked into a circular LRU list by
//     index, plus a map from key hash to arena slots. Each key is hashed
//     once per call; lookups reuse the hash.
//
//   - Reentrancy: the wrapped function, and Equal on key.Hashable
//     arguments, may call back into the same Handle. The cache lock is
//     released around every such call-out and the state is re-checked
//     afterwards, so a reentrant call never observes an entry that is in
//     the map but not the list (or the reverse), and a key computed twice
//     on one stack is stored once.
//
//   - Concurrency: all methods are safe for concurrent use. Concurrent
//     misses for the same key each call the function; the first result
//     to land is cached.
//
//   - Errors: the wrapped function's error is returned verbatim and never
//     cached. Misses are counted before the function runs.
//
// Basic usage
//
//	square := memo.Must(memo.New(func(_ context.Context, a key.Args) (int, error) {
//	    n := a.Positional[0].(int)
//	    return n * n, nil
//	}, memo.Options{MaxSize: 128}))
//	v, _ := square.CallArgs(ctx, 12) // miss
//	v, _ = square.CallArgs(ctx, 12)  // hit
//	fmt.Println(square.Info())       // CacheInfo(hits=1, misses=1, maxsize=128, currsize=1)
//
// Keyword arguments
//
//	v, err := h.Call(ctx, key.Pos("users").With("limit", 10))
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "memo", "demo", nil) // implements Metrics
//	h, err := memo.New(fn, memo.Options{MaxSize: 1024, Metrics: m})
package memo
