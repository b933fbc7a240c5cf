package memo

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/memocache/key"
)

// recorder wraps a function and counts real invocations per key string.
type recorder struct {
	calls map[string]int
}

func newRecorder() *recorder { return &recorder{calls: map[string]int{}} }

func (r *recorder) fn(_ context.Context, a key.Args) (string, error) {
	s := fmt.Sprint(a.Positional, a.Keyword)
	r.calls[s]++
	return "r:" + s, nil
}

func (r *recorder) total() int {
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func mustNew[R any](t *testing.T, fn Func[R], opt Options) *Handle[R] {
	t.Helper()
	h, err := New(fn, opt)
	require.NoError(t, err)
	return h
}

func TestHandle_UnboundedHitMiss(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{Unbounded: true})
	ctx := context.Background()

	const n = 50
	for i := 0; i < n; i++ {
		_, err := h.CallArgs(ctx, i)
		require.NoError(t, err)
	}
	info := h.Info()
	assert.Equal(t, int64(n), info.Misses)
	assert.Zero(t, info.Hits)
	assert.Equal(t, n, info.CurrentSize)
	assert.True(t, info.Unbounded)

	for i := 0; i < n; i++ {
		v, err := h.CallArgs(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("r:[%d] []", i), v)
		assert.Equal(t, int64(i+1), h.Info().Hits)
	}
	assert.Equal(t, int64(n), h.Info().Misses)
	assert.Equal(t, n, rec.total())
}

// Scenario: bound of one, hit, eviction, miss after eviction.
func TestHandle_BoundedSizeOne(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{MaxSize: 1})
	ctx := context.Background()

	r1, err := h.CallArgs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Info{Misses: 1, CurrentSize: 1, MaxSize: 1}, h.Info())

	again, err := h.CallArgs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, r1, again)
	assert.Equal(t, int64(1), h.Info().Hits)

	_, err = h.CallArgs(ctx, 2)
	require.NoError(t, err)
	info := h.Info()
	assert.Equal(t, 1, info.CurrentSize)
	assert.Equal(t, int64(2), info.Misses)

	_, err = h.CallArgs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Info().Misses)
	assert.Equal(t, 2, rec.calls["[1] []"])
}

// A, B inserted; A touched; C must evict B.
func TestHandle_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{MaxSize: 2})
	ctx := context.Background()

	for _, k := range []string{"A", "B", "A", "C"} {
		_, err := h.CallArgs(ctx, k)
		require.NoError(t, err)
	}
	require.Equal(t, Info{Hits: 1, Misses: 3, CurrentSize: 2, MaxSize: 2}, h.Info())

	_, _ = h.CallArgs(ctx, "A")
	assert.Equal(t, int64(2), h.Info().Hits, "A must survive (promoted)")
	_, _ = h.CallArgs(ctx, "B")
	assert.Equal(t, int64(4), h.Info().Misses, "B must be evicted")
}

func TestHandle_EvictsOldestWithoutAccess(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{MaxSize: 2})
	ctx := context.Background()

	for _, k := range []string{"A", "B", "C", "A"} {
		_, err := h.CallArgs(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(4), h.Info().Misses)
	assert.Equal(t, 2, rec.calls["[A] []"])
}

func TestHandle_Uncached(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -5} {
		rec := newRecorder()
		h := mustNew(t, rec.fn, Options{MaxSize: size})
		for i := 0; i < 3; i++ {
			_, err := h.CallArgs(context.Background(), "same")
			require.NoError(t, err)
			assert.Zero(t, h.Info().CurrentSize)
		}
		assert.Equal(t, Info{Misses: 3}, h.Info(), "size %d", size)
		assert.Equal(t, Parameters{}, h.Parameters())
		assert.Equal(t, 3, rec.total())
	}
}

func TestHandle_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{MaxSize: 4})
	ctx := context.Background()

	h.Clear() // empty cache
	assert.Equal(t, Info{MaxSize: 4}, h.Info())

	for _, k := range []int{1, 2, 1} {
		_, _ = h.CallArgs(ctx, k)
	}
	h.Clear()
	h.Clear()
	assert.Equal(t, Info{MaxSize: 4}, h.Info())

	_, _ = h.CallArgs(ctx, 1)
	assert.Equal(t, Info{Misses: 1, CurrentSize: 1, MaxSize: 4}, h.Info())
}

var errBoom = errors.New("boom")

// The function's error comes back verbatim, is counted as a miss, and
// leaves nothing behind.
func TestHandle_ErrorPropagates(t *testing.T) {
	t.Parallel()

	for _, opt := range []Options{{MaxSize: 2}, {Unbounded: true}, {}} {
		calls := 0
		h := mustNew(t, func(_ context.Context, _ key.Args) (int, error) {
			calls++
			return -1, errBoom
		}, opt)

		v, err := h.CallArgs(context.Background(), "k")
		assert.Same(t, errBoom, err)
		assert.Equal(t, -1, v)
		_, err = h.CallArgs(context.Background(), "k")
		assert.Same(t, errBoom, err)

		assert.Equal(t, 2, calls)
		info := h.Info()
		assert.Equal(t, int64(2), info.Misses)
		assert.Zero(t, info.CurrentSize)
	}
}

func TestHandle_UnhashableArgument(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{MaxSize: 2})

	_, err := h.CallArgs(context.Background(), []int{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, key.ErrUnhashable))
	assert.Equal(t, Info{MaxSize: 2}, h.Info())
	assert.Zero(t, rec.total())
}

func TestHandle_KeywordsAndTyped(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{Unbounded: true})
	ctx := context.Background()

	_, _ = h.CallArgs(ctx, 3)
	_, _ = h.Call(ctx, key.Args{}.With("x", 3))
	_, _ = h.CallArgs(ctx, 3.0) // same key as 3 when untyped
	assert.Equal(t, Info{Hits: 1, Misses: 2, CurrentSize: 2, Unbounded: true}, h.Info())

	typed := mustNew(t, rec.fn, Options{Unbounded: true, Typed: true})
	_, _ = typed.CallArgs(ctx, 3)
	_, _ = typed.CallArgs(ctx, 3.0)
	_, _ = typed.CallArgs(ctx, 3)
	assert.Equal(t, Info{Hits: 1, Misses: 2, CurrentSize: 2, Unbounded: true}, typed.Info())
	assert.True(t, typed.Parameters().Typed)
}

func TestNew_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	_, err := New[int](nil, Options{MaxSize: 1})
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = New(func(context.Context, key.Args) (int, error) { return 0, nil }, Options{Unbounded: true, MaxSize: 3})
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	assert.Panics(t, func() { Must(New[int](nil, Options{})) })
}

func TestParseMaxSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		size      int
		unbounded bool
		wantErr   bool
	}{
		{in: "", unbounded: true},
		{in: "None", unbounded: true},
		{in: "unbounded", unbounded: true},
		{in: "128", size: 128},
		{in: " 0 ", size: 0},
		{in: "-4", size: 0},
		{in: "1.5", wantErr: true},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			size, unbounded, err := ParseMaxSize(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, size)
			assert.Equal(t, tt.unbounded, unbounded)
		})
	}
}

func TestHandle_ParametersAndWrapped(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h, err := NewUnbounded(rec.fn)
	require.NoError(t, err)
	assert.Equal(t, Parameters{Unbounded: true}, h.Parameters())

	v, err := h.Wrapped()(context.Background(), key.Pos("direct"))
	require.NoError(t, err)
	assert.Equal(t, "r:[direct] []", v)
	assert.Equal(t, Info{Unbounded: true}, h.Info(), "Wrapped bypasses the cache")
}

func TestInfo_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CacheInfo(hits=1, misses=2, maxsize=8, currsize=2)",
		Info{Hits: 1, Misses: 2, MaxSize: 8, CurrentSize: 2}.String())
	assert.Equal(t, "CacheInfo(hits=0, misses=0, maxsize=None, currsize=0)",
		Info{Unbounded: true}.String())
}

type countingMetrics struct {
	hits, misses, evicts, size int
}

func (m *countingMetrics) Hit()       { m.hits++ }
func (m *countingMetrics) Miss()      { m.misses++ }
func (m *countingMetrics) Evict()     { m.evicts++ }
func (m *countingMetrics) Size(n int) { m.size = n }

func TestHandle_Metrics(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{MaxSize: 2, Metrics: m})
	ctx := context.Background()
	for _, k := range []int{1, 2, 1, 3, 4} {
		_, _ = h.CallArgs(ctx, k)
	}
	assert.Equal(t, countingMetrics{hits: 1, misses: 4, evicts: 2, size: 2}, *m)
}

// NaN never equals itself, so NaN calls always miss and pile up in an
// unbounded cache.
func TestHandle_NaNNeverHits(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := mustNew(t, rec.fn, Options{Unbounded: true})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := h.CallArgs(ctx, math.NaN())
		require.NoError(t, err)
	}
	assert.Equal(t, Info{Misses: 3, CurrentSize: 3, Unbounded: true}, h.Info())
	assert.Equal(t, 3, rec.calls["[NaN] []"])
}
