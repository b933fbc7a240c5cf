package memo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IvanBrykalov/memocache/key"
)

// Func is a function whose results a Handle memoizes. Its error is passed
// to the caller unchanged and its result is never cached on error.
type Func[R any] func(ctx context.Context, args key.Args) (R, error)

// Info is a point-in-time snapshot of cache statistics.
type Info struct {
	Hits        int64
	Misses      int64
	CurrentSize int
	MaxSize     int  // meaningless when Unbounded
	Unbounded   bool // no size bound
}

func (i Info) String() string {
	maxSize := "None"
	if !i.Unbounded {
		maxSize = strconv.Itoa(i.MaxSize)
	}
	return fmt.Sprintf("CacheInfo(hits=%d, misses=%d, maxsize=%s, currsize=%d)",
		i.Hits, i.Misses, maxSize, i.CurrentSize)
}

// Parameters reports the configuration a Handle was built with.
type Parameters struct {
	MaxSize   int
	Unbounded bool
	Typed     bool
}
