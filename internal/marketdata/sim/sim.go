// Package sim provides the simulated tick source: a bounded random walk
// emitting one tick per fixed interval. It is the fallback when no live
// API token is configured and is a drop-in replacement for the Deriv
// connector behind the same channel contract.
package sim

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// Config holds configuration for the generator.
type Config struct {
	// StartPrice is the walk's starting point.
	StartPrice float64

	// Interval between ticks. Defaults to 1 second.
	Interval time.Duration

	// Amplitude bounds each step: price += (uniform(0,1)-0.5)*Amplitude.
	Amplitude float64

	// Seed for the random source; 0 uses the current time.
	Seed int64
}

func (c *Config) defaults() {
	if c.Interval == 0 {
		c.Interval = time.Second
	}
	if c.Amplitude == 0 {
		c.Amplitude = 3
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Generator emits synthetic ticks.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	price float64

	// OnDrop is called for each tick discarded because the channel was full.
	OnDrop func()
}

// New creates a Generator.
func New(cfg Config) *Generator {
	cfg.defaults()
	return &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		price: cfg.StartPrice,
	}
}

// SetPrice moves the walk's continuation point (used after seeding the
// buffer so live generation resumes where the seed history ended).
func (g *Generator) SetPrice(p float64) { g.price = p }

// Start emits ticks into tickCh until ctx is cancelled.
func (g *Generator) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[sim] generating ticks every %s from %.2f", g.cfg.Interval, g.price)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.price += (g.rng.Float64() - 0.5) * g.cfg.Amplitude
			tick := model.Tick{
				Time:  time.Now().UnixMilli(),
				Price: g.price,
			}
			select {
			case tickCh <- tick:
			default:
				log.Println("[sim] tickCh full, dropping tick")
				if g.OnDrop != nil {
					g.OnDrop()
				}
			}
		}
	}
}
