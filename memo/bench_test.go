package memo

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/memocache/key"
)

// benchmarkCalls runs parallel calls over a keyspace twice the size of
// the cache, so roughly half the calls miss and evict.
func benchmarkCalls(b *testing.B, opt Options, mkArgs func(int) key.Args) {
	h, err := New(func(_ context.Context, a key.Args) (int, error) {
		return len(a.Positional), nil
	}, opt)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 14) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		ctx := context.Background()
		for pb.Next() {
			_, _ = h.Call(ctx, mkArgs(r.Int()&keyMask))
		}
	})
}

func intArgs(i int) key.Args    { return key.Pos(i) }
func stringArgs(i int) key.Args { return key.Pos("k:" + strconv.Itoa(i)) }
func compositeArgs(i int) key.Args {
	return key.Pos(i, "page").With("limit", 10)
}

func BenchmarkBounded_IntKeys(b *testing.B) {
	benchmarkCalls(b, Options{MaxSize: 1 << 13}, intArgs)
}

func BenchmarkBounded_StringKeys(b *testing.B) {
	benchmarkCalls(b, Options{MaxSize: 1 << 13}, stringArgs)
}

func BenchmarkBounded_CompositeKeys(b *testing.B) {
	benchmarkCalls(b, Options{MaxSize: 1 << 13}, compositeArgs)
}

func BenchmarkUnbounded_IntKeys(b *testing.B) {
	benchmarkCalls(b, Options{Unbounded: true}, intArgs)
}

func BenchmarkUncached(b *testing.B) {
	benchmarkCalls(b, Options{}, intArgs)
}
