// Package pacing draws humanlike delays and counts from bounded ranges so
// that actions never run at a uniform cadence.
package pacing

import (
	"connectfill/internal/components/chrono"
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Range is an inclusive [Min, Max] interval expressed in seconds.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) normalized() Range {
	if r.Max < r.Min {
		return Range{Min: r.Max, Max: r.Min}
	}
	return r
}

// IntRange is an inclusive [Min, Max] interval of integers.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type Pacer struct {
	clock chrono.API

	mu   sync.Mutex
	rand *rand.Rand
}

// NewPacer creates a pacer, a nil source means a randomly seeded one.
func NewPacer(clock chrono.API, source rand.Source) *Pacer {
	if source == nil {
		source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Pacer{clock: clock, rand: rand.New(source)}
}

// Float returns a uniform value in r.
func (p *Pacer) Float(r Range) float64 {
	r = r.normalized()
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + p.rand.Float64()*(r.Max-r.Min)
}

// Int returns a uniform value in r, both ends included.
func (p *Pacer) Int(r IntRange) int {
	if r.Max < r.Min {
		r.Min, r.Max = r.Max, r.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + p.rand.IntN(r.Max-r.Min+1)
}

// Duration draws a duration (seconds) from r.
func (p *Pacer) Duration(r Range) time.Duration {
	return time.Duration(p.Float(r) * float64(time.Second))
}

// Pause sleeps for a duration drawn from r and returns how long it waited.
func (p *Pacer) Pause(ctx context.Context, r Range) (time.Duration, error) {
	d := p.Duration(r)
	return d, p.clock.Sleep(ctx, d)
}

// Shuffle permutes s in place.
func Shuffle[T any](p *Pacer, s []T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rand.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}
