package memo

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/IvanBrykalov/memocache/key"
)

// Handle memoizes a Func. All methods are safe for concurrent use, and the
// wrapped function may call back into its own Handle (recursion, or
// Hashable arguments whose Equal consults the cache).
type Handle[R any] struct {
	fn     Func[R]
	e      *engine[R]
	params Parameters
}

// New wraps fn according to opt.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> discard
//   - MaxSize < 0  -> 0 (no caching)
func New[R any](fn Func[R], opt Options) (*Handle[R], error) {
	if fn == nil {
		return nil, errors.Wrap(ErrInvalidConfiguration, "nil function")
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.MaxSize < 0 {
		opt.MaxSize = 0
	}

	e := newEngine[R](opt)
	e.log = opt.Logger.With(slog.String("mode", e.mode.String()))
	e.log.Debug("memo: cache created", slog.Int("maxsize", e.maxSize), slog.Bool("typed", opt.Typed))

	return &Handle[R]{
		fn: fn,
		e:  e,
		params: Parameters{
			MaxSize:   e.maxSize,
			Unbounded: e.mode == Unbounded,
			Typed:     opt.Typed,
		},
	}, nil
}

// NewUnbounded wraps fn in a cache without a size bound.
func NewUnbounded[R any](fn Func[R]) (*Handle[R], error) {
	return New(fn, Options{Unbounded: true})
}

// Must panics if err is non-nil. Handy for package-level handles.
func Must[R any](h *Handle[R], err error) *Handle[R] {
	if err != nil {
		panic(err)
	}
	return h
}

// Call returns the cached result for args, calling the wrapped function
// on a miss. The function's error is returned unchanged; an argument with
// no stable identity yields an error wrapping key.ErrUnhashable.
func (h *Handle[R]) Call(ctx context.Context, args key.Args) (R, error) {
	return h.e.call(ctx, h.fn, args)
}

// CallArgs is Call with positional arguments only.
func (h *Handle[R]) CallArgs(ctx context.Context, pos ...any) (R, error) {
	return h.e.call(ctx, h.fn, key.Pos(pos...))
}

// Info returns a snapshot of hits, misses and sizes.
func (h *Handle[R]) Info() Info { return h.e.info() }

// Clear drops all cached results and resets the statistics.
// Clearing an empty cache is a no-op.
func (h *Handle[R]) Clear() { h.e.clear() }

// Parameters returns the effective configuration.
func (h *Handle[R]) Parameters() Parameters { return h.params }

// Wrapped returns the underlying function, bypassing the cache.
func (h *Handle[R]) Wrapped() Func[R] { return h.fn }
