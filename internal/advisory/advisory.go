// Package advisory bridges the asynchronous market-analysis oracle into
// the strategy engine. A Poller submits the recent price window to the
// oracle on a fixed cadence and publishes the result into a single-writer
// Cell that the tick-driven evaluation reads without blocking. The polling
// cadence is independent of tick arrival; a recommendation may be several
// ticks stale by the time it is acted on, which is accepted by design.
package advisory

import (
	"context"
	"log"
	"sync"
	"time"
)

// Recommendation is the oracle's verdict for the analyzed window.
type Recommendation string

const (
	RecommendCall Recommendation = "CALL"
	RecommendPut  Recommendation = "PUT"
	RecommendHold Recommendation = "HOLD"
)

// Advice is one oracle response. Confidence is 0-100.
type Advice struct {
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Confidence     float64        `json:"confidence"`
	ReceivedAt     time.Time      `json:"received_at"`
}

// Hold returns the degraded fallback advice published on any oracle
// failure: HOLD with zero confidence, never an error.
func Hold(reason string) Advice {
	return Advice{
		Recommendation: RecommendHold,
		Reasoning:      reason,
		Confidence:     0,
		ReceivedAt:     time.Now().UTC(),
	}
}

// Oracle turns a price window into a recommendation. Implementations must
// honor the context deadline.
type Oracle interface {
	Analyze(ctx context.Context, prices []float64) (Advice, error)
}

// Cell holds the latest advice. Written only by the Poller; read by the
// strategy evaluation on the tick path. Each Poller run bumps the
// generation so results from a cancelled run are discarded rather than
// published.
type Cell struct {
	mu         sync.RWMutex
	advice     Advice
	generation uint64
}

// NewCell creates a Cell holding a zero-confidence HOLD.
func NewCell() *Cell {
	return &Cell{advice: Hold("aguardando primeira análise")}
}

// Latest returns the most recently published advice.
func (c *Cell) Latest() Advice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.advice
}

func (c *Cell) publish(gen uint64, a Advice) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.advice = a
	return true
}

func (c *Cell) nextGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	// Reset so a restart does not act on the previous session's advice.
	c.advice = Hold("reiniciando análise")
	return c.generation
}

// invalidate bumps the generation without starting a run, so any in-flight
// result is dropped on arrival.
func (c *Cell) invalidate() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
}

// PollerConfig configures the advisory polling loop.
type PollerConfig struct {
	Interval time.Duration // oracle cadence (default 5s)
	Window   int           // prices submitted per cycle (default 20)
	Timeout  time.Duration // per-call oracle deadline
}

// Poller drives the Oracle on a fixed timer and publishes into a Cell.
type Poller struct {
	cfg    PollerConfig
	oracle Oracle
	cell   *Cell

	// Prices returns the current window snapshot (engine callback).
	prices func() []float64

	// Gate, when set, is checked each cycle; a false result skips the
	// oracle call. Used to poll only while the advisory strategy is
	// actually selected, so no API quota burns for an unread verdict.
	Gate func() bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a Poller. prices is called once per cycle to snapshot
// the window; it must be safe to call from the poller goroutine.
func NewPoller(cfg PollerConfig, oracle Oracle, cell *Cell, prices func() []float64) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Window == 0 {
		cfg.Window = 20
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Poller{cfg: cfg, oracle: oracle, cell: cell, prices: prices}
}

// Start launches the polling goroutine. It runs one cycle immediately,
// then one per interval, until Stop is called.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	gen := p.cell.nextGeneration()

	go func() {
		defer close(p.done)
		p.runCycle(ctx, gen)

		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runCycle(ctx, gen)
			}
		}
	}()
}

// Stop cancels the polling loop and waits for it to exit. An oracle call
// already in flight is abandoned; its result cannot reach the Cell because
// the generation is invalidated first.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cell.invalidate()
	p.cancel()
	<-p.done
	p.cancel = nil
}

func (p *Poller) runCycle(ctx context.Context, gen uint64) {
	if p.Gate != nil && !p.Gate() {
		return
	}
	prices := p.prices()
	if len(prices) < p.cfg.Window {
		log.Printf("[advisory] skipping cycle: %d/%d samples", len(prices), p.cfg.Window)
		return
	}
	window := prices[len(prices)-p.cfg.Window:]

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	advice, err := p.oracle.Analyze(callCtx, window)
	if err != nil {
		// Degrade, never propagate: the run loop must survive oracle outages.
		log.Printf("[advisory] oracle error: %v", err)
		advice = Hold("Erro na conexão com IA. Aguardando...")
	}
	advice.ReceivedAt = time.Now().UTC()

	if !p.cell.publish(gen, advice) {
		log.Printf("[advisory] discarding stale result (poller stopped)")
	}
}
