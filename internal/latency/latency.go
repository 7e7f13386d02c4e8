// Package latency models how long an order request takes to land at the exchange.
package latency

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrInvalidRange = errors.New("latency: invalid range")

// Latency maps the virtual time an action is requested to the time it takes effect.
type Latency interface {
	// Lag returns the delay of the next action.
	Lag() time.Duration
	// Emulate returns the time an action requested at t lands.
	Emulate(t time.Time) time.Time
	// String describes the model, e.g. "fixed(1s)".
	String() string
}

type zero struct{}

// Zero returns a latency under which every action lands instantly.
func Zero() Latency { return zero{} }

func (zero) Lag() time.Duration            { return 0 }
func (zero) Emulate(t time.Time) time.Time { return t }
func (zero) String() string                { return "zero" }

type fixed struct{ d time.Duration }

// Fixed returns a constant latency.
func Fixed(d time.Duration) (Latency, error) {
	if d < 0 {
		return nil, fmt.Errorf("%w: negative latency %s", ErrInvalidRange, d)
	}
	if d == 0 {
		return zero{}, nil
	}
	return fixed{d: d}, nil
}

// MustFixed is Fixed for literal durations. It panics on a negative value.
func MustFixed(d time.Duration) Latency {
	l, err := Fixed(d)
	if err != nil {
		panic(err)
	}
	return l
}

func (f fixed) Lag() time.Duration            { return f.d }
func (f fixed) Emulate(t time.Time) time.Time { return t.Add(f.d) }
func (f fixed) String() string                { return "fixed(" + f.d.String() + ")" }

// random draws a uniform delay in [min, max]. Sequences are reproducible per seed.
type random struct {
	min, max time.Duration
	rng      *rand.Rand
}

// Random returns a latency drawn uniformly from [min, max].
func Random(min, max time.Duration, seed int64) (Latency, error) {
	if min < 0 || min > max {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, min, max)
	}
	return &random{min: min, max: max, rng: rand.New(rand.NewSource(seed))}, nil
}

func (r *random) Lag() time.Duration {
	span := int64(r.max - r.min)
	if span == 0 {
		return r.min
	}
	return r.min + time.Duration(r.rng.Int63n(span+1))
}

func (r *random) Emulate(t time.Time) time.Time {
	return t.Add(r.Lag())
}

func (r *random) String() string {
	return "random(" + r.min.String() + "," + r.max.String() + ")"
}

// Config is the latency section of the application configuration.
type Config struct {
	Kind  string        `yaml:"kind"` // zero, fixed or random
	Fixed time.Duration `yaml:"fixed"`
	Min   time.Duration `yaml:"min"`
	Max   time.Duration `yaml:"max"`
	Seed  int64         `yaml:"seed"`
}

// Parse builds a Latency from configuration. An empty kind means zero.
func Parse(cfg Config) (Latency, error) {
	switch cfg.Kind {
	case "", "zero":
		return Zero(), nil
	case "fixed":
		return Fixed(cfg.Fixed)
	case "random":
		return Random(cfg.Min, cfg.Max, cfg.Seed)
	}
	return nil, fmt.Errorf("latency: unknown kind %q", cfg.Kind)
}
