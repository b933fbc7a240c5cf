package main

import (
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/memocache/memo"
)

// workload describes one benchmark run. Every field can come from the
// YAML file given with --config and be overridden by flags.
type workload struct {
	MaxSize  string        `yaml:"maxsize"` // integer, or "none" for unbounded
	Typed    bool          `yaml:"typed"`
	Workers  int           `yaml:"workers"`
	Duration time.Duration `yaml:"duration"`
	Keys     uint64        `yaml:"keys"`
	ZipfS    float64       `yaml:"zipf_s"`
	ZipfV    float64       `yaml:"zipf_v"`
	Seed     int64         `yaml:"seed"`
	Work     time.Duration `yaml:"work"` // simulated cost of one miss
}

func defaultWorkload() workload {
	return workload{
		MaxSize:  "10000",
		Workers:  2 * runtime.GOMAXPROCS(0),
		Duration: 10 * time.Second,
		Keys:     1_000_000,
		ZipfS:    1.1,
		ZipfV:    1.0,
		Seed:     time.Now().UnixNano(),
		Work:     20 * time.Microsecond,
	}
}

// loadWorkload overlays the YAML file at path onto w.
func loadWorkload(path string, w workload) (workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return w, errors.Wrapf(err, "read workload %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, errors.Wrapf(err, "parse workload %s", path)
	}
	return w, nil
}

// options turns the workload into cache options.
func (w workload) options() (memo.Options, error) {
	size, unbounded, err := memo.ParseMaxSize(w.MaxSize)
	if err != nil {
		return memo.Options{}, err
	}
	return memo.Options{MaxSize: size, Unbounded: unbounded, Typed: w.Typed}, nil
}

func (w workload) validate() error {
	switch {
	case w.Workers <= 0:
		return errors.Newf("workers must be > 0, got %d", w.Workers)
	case w.Keys == 0:
		return errors.New("keys must be > 0")
	case w.ZipfS <= 1:
		return errors.Newf("zipf_s must be > 1, got %v", w.ZipfS)
	case w.ZipfV < 1:
		return errors.Newf("zipf_v must be >= 1, got %v", w.ZipfV)
	case w.Duration <= 0:
		return errors.New("duration must be > 0")
	}
	return nil
}
