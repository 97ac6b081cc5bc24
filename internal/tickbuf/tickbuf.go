// Package tickbuf provides the rolling tick window the engine computes
// indicators from: a fixed-capacity ordered sequence where a new tick
// evicts the oldest once the window is full.
package tickbuf

import (
	"math/rand"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// Buffer is a fixed-capacity FIFO window of ticks, oldest first.
// It is not safe for concurrent use; the engine controller owns it and
// mutates it only on its serialized tick path.
type Buffer struct {
	capacity int
	ticks    []model.Tick
}

// New creates an empty buffer with the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		ticks:    make([]model.Tick, 0, capacity),
	}
}

// Push appends a tick, evicting the oldest when the buffer is at capacity,
// and returns the updated ordered view.
func (b *Buffer) Push(t model.Tick) []model.Tick {
	b.ticks = append(b.ticks, t)
	if len(b.ticks) > b.capacity {
		b.ticks = b.ticks[1:]
	}
	return b.ticks
}

// Len returns the number of ticks currently held.
func (b *Buffer) Len() int { return len(b.ticks) }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Prices returns a copy of the prices in the window, oldest first.
func (b *Buffer) Prices() []float64 {
	prices := make([]float64, len(b.ticks))
	for i, t := range b.ticks {
		prices[i] = t.Price
	}
	return prices
}

// Ticks returns a copy of the window, oldest first.
func (b *Buffer) Ticks() []model.Tick {
	cp := make([]model.Tick, len(b.ticks))
	copy(cp, b.ticks)
	return cp
}

// Last returns the newest tick, or false if the buffer is empty.
func (b *Buffer) Last() (model.Tick, bool) {
	if len(b.ticks) == 0 {
		return model.Tick{}, false
	}
	return b.ticks[len(b.ticks)-1], true
}

// Seed pre-populates the buffer with count synthetic ticks via a bounded
// random walk starting at seedPrice: each step moves the price by
// uniform(-amplitude/2, +amplitude/2). Timestamps are spaced stepMs apart,
// ending at nowMs. Used by the simulated source so indicators have history
// before the first live tick; the last seeded price is returned as the
// walk's continuation point.
func (b *Buffer) Seed(seedPrice float64, count int, amplitude float64, stepMs, nowMs int64, rng *rand.Rand) float64 {
	price := seedPrice
	for i := count; i > 0; i-- {
		price += (rng.Float64() - 0.5) * amplitude
		b.Push(model.Tick{
			Time:  nowMs - int64(i)*stepMs,
			Price: price,
		})
	}
	return price
}
