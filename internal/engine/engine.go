// Package engine implements the bot controller: the run-state machine and
// the serialized tick-processing pipeline that ties the buffer, indicators,
// strategies, advisory state and trade manager together.
//
// One mutex serializes every state mutation. Ticks, Start/Stop calls and
// settings reads all funnel through it, so the pipeline never observes a
// half-applied transition. Throughput is bounded by tick cadence (about one
// per second), so lock contention is a non-issue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/advisory"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/indicator"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/metrics"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/notification"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/publish"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/settings"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/strategy"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/tickbuf"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/trade"
)

var (
	// ErrAlreadyRunning is returned by Start while the bot is TRADING.
	ErrAlreadyRunning = errors.New("engine: already running")

	// ErrNotRunning is returned by Stop when the bot is not TRADING.
	ErrNotRunning = errors.New("engine: not running")
)

// TickSource streams market ticks into the channel until ctx is cancelled.
type TickSource interface {
	Start(ctx context.Context, tickCh chan<- model.Tick) error
}

// TradeRecorder persists completed trades (the SQLite journal). Failures
// are logged, never fatal.
type TradeRecorder interface {
	Record(t model.Trade) error
}

// Config holds the engine's fixed parameters. Runtime-mutable values live
// in the settings store instead.
type Config struct {
	BufferCapacity int
	Indicators     indicator.Config
	Thresholds     strategy.Thresholds

	// Simulated-source seeding.
	InitialPrice    float64
	SimAmplitude    float64
	SimTickInterval time.Duration

	Asset string
}

// Deps are the engine's collaborators. Live, Metrics, Health, Journal,
// Notifier and Events may be nil; the engine degrades around each.
type Deps struct {
	Settings *settings.Store
	Trades   *trade.Manager
	Cell     *advisory.Cell
	Poller   *advisory.Poller

	Live TickSource // live brokerage feed, used when an API token is set
	Sim  TickSource // synthetic fallback feed

	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Journal  TradeRecorder
	Notifier notification.Notifier
	Events   chan<- publish.Event
}

// Engine is the bot controller.
type Engine struct {
	cfg  Config
	deps Deps

	// lifeMu serializes Start/Stop sequencing so a restart cannot overlap a
	// teardown still in flight. It is never held on the tick path.
	lifeMu sync.Mutex

	mu       sync.Mutex
	state    model.BotState
	buf      *tickbuf.Buffer
	snapshot indicator.Snapshot

	runSeq    uint64 // identifies the current run; stale ticks are dropped
	runCancel context.CancelFunc
	runDone   chan struct{}

	rng *rand.Rand
}

// New creates an Engine in the IDLE state.
func New(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:   cfg,
		deps:  deps,
		state: model.StateIdle,
		buf:   tickbuf.New(cfg.BufferCapacity),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AttachPoller wires the advisory poller after construction; the poller's
// window callback needs the engine, so the two cannot be built in one shot.
// Must be called before Start.
func (e *Engine) AttachPoller(p *advisory.Poller) {
	e.deps.Poller = p
}

// Start transitions IDLE/STOPPED -> TRADING: selects the tick source by
// whether an API token is configured, seeds the buffer for the simulated
// source, and launches the feed and processing goroutines.
func (e *Engine) Start() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	if e.state.Running() {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	prevDone := e.runDone
	e.mu.Unlock()

	// A previous run (including an auto-stop) may still be winding down.
	if prevDone != nil {
		<-prevDone
	}

	e.mu.Lock()
	st := e.deps.Settings.Get()

	source := e.deps.Sim
	mode := "simulated"
	if st.APIToken != "" && e.deps.Live != nil {
		source = e.deps.Live
		mode = "live"
	} else if e.buf.Len() == 0 {
		// Prime indicator history so strategies do not idle through a
		// full warm-up window on every fresh session.
		stepMs := e.cfg.SimTickInterval.Milliseconds()
		last := e.buf.Seed(e.cfg.InitialPrice, e.cfg.BufferCapacity,
			e.cfg.SimAmplitude, stepMs, time.Now().UnixMilli(), e.rng)
		if s, ok := source.(interface{ SetPrice(float64) }); ok {
			s.SetPrice(last)
		}
		log.Printf("[engine] seeded %d ticks, walk continues from %.2f", e.buf.Len(), last)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.runSeq++
	run := e.runSeq
	e.runCancel = cancel
	e.runDone = make(chan struct{})
	done := e.runDone
	e.state = model.StateTrading
	if e.deps.Metrics != nil {
		e.deps.Metrics.EngineState.Set(1)
	}
	e.mu.Unlock()

	if e.deps.Poller != nil {
		e.deps.Poller.Start()
	}

	// done closes only after the full teardown: source exited, remaining
	// ticks drained, poller stopped. Start's prevDone wait relies on that.
	tickCh := make(chan model.Tick, 64)
	go func() {
		if err := source.Start(ctx, tickCh); err != nil {
			log.Printf("[engine] tick source stopped with error: %v", err)
		}
		close(tickCh)
	}()
	go func() {
		defer close(done)
		for tick := range tickCh {
			e.onTick(run, tick)
		}
		if e.deps.Poller != nil {
			e.deps.Poller.Stop()
		}
	}()

	log.Printf("[engine] started in %s mode, strategy=%s stake=%.2f", mode, st.Strategy, st.Stake)
	e.notify(notification.AlertInfo, "Bot started",
		fmt.Sprintf("mode=%s strategy=%s stake=%.2f", mode, st.Strategy, st.Stake))
	return nil
}

// Stop transitions TRADING -> STOPPED. A pending trade is cancelled and
// recorded with zero profit; the feed and the advisory poller are torn down
// and Stop returns only after both have exited.
func (e *Engine) Stop() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	if !e.state.Running() {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.state = model.StateStopped
	if e.deps.Metrics != nil {
		e.deps.Metrics.EngineState.Set(0)
	}
	cancel := e.runCancel
	done := e.runDone
	e.runCancel = nil

	var lastPrice float64
	if last, ok := e.buf.Last(); ok {
		lastPrice = last.Price
	}
	e.mu.Unlock()

	if cancelled := e.deps.Trades.CancelActive(lastPrice); cancelled != nil {
		e.deps.Settings.SetTradeLock(false)
		e.recordCompleted(*cancelled)
	}

	cancel()
	<-done

	log.Printf("[engine] stopped, session profit %+.2f", e.deps.Trades.SessionProfit())
	e.notify(notification.AlertInfo, "Bot stopped",
		fmt.Sprintf("session profit %+.2f", e.deps.Trades.SessionProfit()))
	return nil
}

// onTick is the serialized pipeline for one tick: push, recompute
// indicators, settle, enforce session limits, evaluate, open.
func (e *Engine) onTick(run uint64, tick model.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if run != e.runSeq || !e.state.Running() {
		return
	}

	e.buf.Push(tick)
	prices := e.buf.Prices()
	e.snapshot = indicator.Compute(prices, e.cfg.Indicators)

	if e.deps.Metrics != nil {
		e.deps.Metrics.TicksTotal.Inc()
	}
	if e.deps.Health != nil {
		e.deps.Health.SetLastTickTime(tick.TickTime())
		e.deps.Health.SetFeedConnected(true)
	}
	e.emit(publish.EventTick, tickEvent{Tick: tick, Indicators: e.snapshot})

	now := time.Now()
	st := e.deps.Settings.Get()

	if settled := e.deps.Trades.TrySettle(tick, now); settled != nil {
		e.deps.Settings.SetTradeLock(false)
		e.recordCompleted(*settled)

		if limit, hit := e.sessionLimitHit(st); hit {
			e.autoStopLocked(limit)
		}
		// A settlement tick never opens the next position; evaluation
		// resumes on the following tick.
		return
	}

	if e.deps.Trades.HasActive() {
		return
	}

	decision := strategy.Evaluate(st.Strategy, strategy.Input{
		Snapshot: e.snapshot,
		Prices:   prices,
		Advice:   e.deps.Cell.Latest(),
	}, e.cfg.Thresholds)
	if decision == nil {
		return
	}

	opened, ok := e.deps.Trades.Open(decision.Type, tick.Price, st, now)
	if !ok {
		return
	}
	e.deps.Settings.SetTradeLock(true)
	if e.deps.Metrics != nil {
		e.deps.Metrics.TradesOpened.Inc()
	}
	log.Printf("[engine] signal: %s (%s)", decision.Type, decision.Reason)
	e.emit(publish.EventTrade, opened)
	e.notify(notification.AlertInfo, "Trade opened",
		fmt.Sprintf("%s %s @ %.2f stake %.2f: %s",
			opened.ID, opened.Type, opened.EntryPrice, opened.Stake, decision.Reason))
}

// sessionLimitHit reports whether the session profit crossed the
// take-profit or stop-loss boundary. A zero limit disables that boundary.
func (e *Engine) sessionLimitHit(st model.Settings) (string, bool) {
	profit := e.deps.Trades.SessionProfit()
	if st.TakeProfit > 0 && profit >= st.TakeProfit {
		return fmt.Sprintf("take-profit reached: %+.2f >= %.2f", profit, st.TakeProfit), true
	}
	if st.StopLoss > 0 && profit <= -st.StopLoss {
		return fmt.Sprintf("stop-loss reached: %+.2f <= -%.2f", profit, st.StopLoss), true
	}
	return "", false
}

// autoStopLocked performs an automatic stop while e.mu is held. The context
// cancel is non-blocking, so it runs inline; everything that could block
// (drain, poller stop) is the run goroutine's job, and runDone closes once
// it finishes. Never touches lifeMu: a concurrent Start must be free to
// hold it while waiting for that teardown.
func (e *Engine) autoStopLocked(reason string) {
	e.state = model.StateStopped
	if e.deps.Metrics != nil {
		e.deps.Metrics.EngineState.Set(0)
	}
	if e.runCancel != nil {
		e.runCancel()
		e.runCancel = nil
	}

	log.Printf("[engine] auto-stop: %s", reason)
	e.notify(notification.AlertWarning, "Session limit hit", reason)
}

// recordCompleted fans a finished trade out to metrics, the journal, the
// event stream and notifications.
func (e *Engine) recordCompleted(t model.Trade) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.TradesSettled.WithLabelValues(string(t.Status)).Inc()
		e.deps.Metrics.Balance.Set(e.deps.Trades.Balance())
	}
	if e.deps.Journal != nil {
		if err := e.deps.Journal.Record(t); err != nil {
			log.Printf("[engine] journal write failed for %s: %v", t.ID, err)
			if e.deps.Health != nil {
				e.deps.Health.SetJournalOK(false)
			}
		}
	}
	e.emit(publish.EventTrade, t)

	level := notification.AlertInfo
	if t.Status == model.ResultLoss {
		level = notification.AlertWarning
	}
	e.notify(level, "Trade "+string(t.Status),
		fmt.Sprintf("%s %s entry %.2f exit %.2f profit %+.2f",
			t.ID, t.Type, t.EntryPrice, t.ExitPrice, t.Profit))
}

// emit sends an event without blocking; a slow or absent consumer drops
// events rather than stalling the tick path.
func (e *Engine) emit(kind publish.EventKind, payload interface{}) {
	if e.deps.Events == nil {
		return
	}
	select {
	case e.deps.Events <- publish.Event{Kind: kind, Asset: e.cfg.Asset, Payload: payload}:
	default:
	}
}

// notify delivers an alert asynchronously; Telegram round-trips must never
// hold up tick processing.
func (e *Engine) notify(level notification.AlertLevel, title, message string) {
	if e.deps.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.deps.Notifier.Send(ctx, notification.Alert{
			Level:   level,
			Title:   title,
			Message: message,
		}); err != nil {
			log.Printf("[engine] notification failed: %v", err)
		}
	}()
}

// tickEvent is the payload published per processed tick.
type tickEvent struct {
	Tick       model.Tick         `json:"tick"`
	Indicators indicator.Snapshot `json:"indicators"`
}

// State returns the current run state.
func (e *Engine) State() model.BotState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PricesSnapshot returns the current price window, oldest first. It is the
// advisory poller's window callback.
func (e *Engine) PricesSnapshot() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Prices()
}

// Status is the engine's externally visible snapshot, served by the API.
type Status struct {
	State         model.BotState     `json:"state"`
	Balance       float64            `json:"balance"`
	SessionProfit float64            `json:"session_profit"`
	Settings      model.Settings     `json:"settings"`
	Indicators    indicator.Snapshot `json:"indicators"`
	LastTick      *model.Tick        `json:"last_tick,omitempty"`
	ActiveTrade   *model.Trade       `json:"active_trade,omitempty"`
	Advisory      advisory.Advice    `json:"advisory"`
}

// Status assembles a consistent snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	state := e.state
	snapshot := e.snapshot
	last, hasLast := e.buf.Last()
	e.mu.Unlock()

	st := Status{
		State:         state,
		Balance:       e.deps.Trades.Balance(),
		SessionProfit: e.deps.Trades.SessionProfit(),
		Settings:      e.deps.Settings.Get(),
		Indicators:    snapshot,
		Advisory:      e.deps.Cell.Latest(),
	}
	st.Settings.APIToken = "" // never expose the token
	if hasLast {
		st.LastTick = &last
	}
	if active, ok := e.deps.Trades.Active(); ok {
		st.ActiveTrade = &active
	}
	return st
}

// History returns all completed trades this session, oldest first.
func (e *Engine) History() []model.Trade {
	return e.deps.Trades.History()
}

// LatestAdvice returns the most recent advisory state.
func (e *Engine) LatestAdvice() advisory.Advice {
	return e.deps.Cell.Latest()
}

// CurrentSettings returns the live settings, token included. Callers that
// surface settings externally must scrub the token themselves.
func (e *Engine) CurrentSettings() model.Settings {
	return e.deps.Settings.Get()
}

// UpdateSettings applies a settings change, subject to the store's
// validation and the pending-trade lock.
func (e *Engine) UpdateSettings(next model.Settings) error {
	return e.deps.Settings.Update(next)
}
