package memo

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidConfiguration is returned by New and ParseMaxSize when the
// cache cannot be configured as requested.
var ErrInvalidConfiguration = errors.New("memo: invalid configuration")

// Mode selects the call strategy of a cache.
type Mode uint8

const (
	// Uncached calls the wrapped function every time and stores nothing.
	Uncached Mode = iota
	// Unbounded stores every result and never evicts.
	Unbounded
	// Bounded stores up to MaxSize results and evicts the least recently used.
	Bounded
)

func (m Mode) String() string {
	switch m {
	case Uncached:
		return "uncached"
	case Unbounded:
		return "unbounded"
	default:
		return "bounded"
	}
}

// Metrics exposes cache-level observability hooks.
// Evict and Size are called while the cache lock is held: keep them
// lightweight and never call back into the cache from them.
type Metrics interface {
	Hit()
	Miss()
	Evict()
	Size(entries int)
}

// Options configures a Handle. Zero values are safe; New applies:
//   - MaxSize < 0    => 0 (Uncached)
//   - nil Metrics    => NoopMetrics
//   - nil Logger     => discard
type Options struct {
	// MaxSize bounds the number of cached results. Zero disables caching.
	// Ignored when Unbounded is set, and must then be left at zero.
	MaxSize int

	// Unbounded caches every distinct call forever.
	Unbounded bool

	// Typed makes arguments of different dynamic types distinct keys even
	// when they compare equal (f(3) vs f(3.0)).
	Typed bool

	// Observability
	Metrics Metrics
	Logger  *slog.Logger
}

// mode resolves the call strategy and the effective bound.
func (o Options) mode() (Mode, int) {
	switch {
	case o.Unbounded:
		return Unbounded, 0
	case o.MaxSize <= 0:
		return Uncached, 0
	default:
		return Bounded, o.MaxSize
	}
}

func (o Options) validate() error {
	if o.Unbounded && o.MaxSize != 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "max size %d set on an unbounded cache", o.MaxSize)
	}
	return nil
}

// ParseMaxSize reads a textual max size as used in flags and config files.
// "" and "none" mean unbounded; an integer is a bound (negative clamps to
// zero, which disables caching).
func ParseMaxSize(s string) (maxSize int, unbounded bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "unbounded":
		return 0, true, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false, errors.Wrapf(ErrInvalidConfiguration, "max size %q is neither an integer nor none", s)
	}
	if n < 0 {
		n = 0
	}
	return n, false, nil
}
