package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/advisory"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/indicator"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/settings"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/strategy"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/trade"
)

// scriptedSource replays a fixed price sequence at a fixed interval, then
// blocks until cancelled.
type scriptedSource struct {
	prices   []float64
	interval time.Duration
}

func (s *scriptedSource) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	for _, p := range s.prices {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}
		select {
		case <-ctx.Done():
			return nil
		case tickCh <- model.Tick{Time: time.Now().UnixMilli(), Price: p}:
		}
	}
	<-ctx.Done()
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// newTestEngine wires an engine around a scripted live source. Using the
// live slot (with a token) skips buffer seeding, so tests control the
// exact price window.
func newTestEngine(t *testing.T, src TickSource, s model.Settings, hold time.Duration) (*Engine, *trade.Manager, *settings.Store) {
	t.Helper()
	store := settings.NewStore(s)
	trades := trade.NewManager(trade.ManagerConfig{
		HoldDuration:   hold,
		PayoutRatio:    0.95,
		InitialBalance: 10000,
	}, nil)

	e := New(Config{
		BufferCapacity: 60,
		Indicators:     indicator.Config{RSIPeriod: 14, FastPeriod: 5, SlowPeriod: 10},
		Thresholds:     strategy.Thresholds{RSIUpper: 75, RSILower: 25, Confidence: 75},
		Asset:          "Volatility 100",
	}, Deps{
		Settings: store,
		Trades:   trades,
		Cell:     advisory.NewCell(),
		Live:     src,
	})
	return e, trades, store
}

// risingPrices returns n prices climbing by 1: with RSIPeriod 14 the RSI
// saturates at 100 once 15 prices arrived, triggering a PUT.
func risingPrices(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestStartStop_StateMachine(t *testing.T) {
	src := &scriptedSource{interval: 10 * time.Millisecond}
	e, _, _ := newTestEngine(t, src, model.Settings{
		Stake: 50, Strategy: model.StrategyRSIReversal, APIToken: "tok",
	}, time.Hour)

	if got := e.State(); got != model.StateIdle {
		t.Fatalf("initial state: got %s, want IDLE", got)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := e.State(); got != model.StateTrading {
		t.Fatalf("after Start: got %s, want TRADING", got)
	}
	if err := e.Start(); err != ErrAlreadyRunning {
		t.Fatalf("second Start: got %v, want ErrAlreadyRunning", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := e.State(); got != model.StateStopped {
		t.Fatalf("after Stop: got %s, want STOPPED", got)
	}
	if err := e.Stop(); err != ErrNotRunning {
		t.Fatalf("second Stop: got %v, want ErrNotRunning", err)
	}

	// A stopped bot can be restarted.
	if err := e.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := e.State(); got != model.StateTrading {
		t.Fatalf("after restart: got %s, want TRADING", got)
	}
	e.Stop()
}

func TestPipeline_OpensAndSettlesWinningPut(t *testing.T) {
	// Rising prices saturate RSI at 100 -> PUT at 114. The closing ticks
	// drop hard: whichever of them lands after the 50ms hold settles the
	// trade below entry (a win), and the drop keeps RSI between the
	// thresholds so the remaining tick opens nothing.
	prices := append(risingPrices(15), 99, 98)
	src := &scriptedSource{prices: prices, interval: 30 * time.Millisecond}
	e, trades, store := newTestEngine(t, src, model.Settings{
		Stake: 50, Strategy: model.StrategyRSIReversal, APIToken: "tok",
	}, 50*time.Millisecond)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return len(trades.History()) == 1
	}, "trade to settle")

	hist := trades.History()
	tr := hist[0]
	if tr.Type != model.TradePut {
		t.Errorf("type: got %s, want PUT", tr.Type)
	}
	if tr.Status != model.ResultWin {
		t.Errorf("status: got %s, want WIN", tr.Status)
	}
	if tr.EntryPrice != 114 {
		t.Errorf("entry: got %v, want 114", tr.EntryPrice)
	}
	if math.Abs(tr.Profit-47.5) > 1e-9 {
		t.Errorf("profit: got %v, want 47.5", tr.Profit)
	}
	if math.Abs(trades.Balance()-10047.5) > 1e-9 {
		t.Errorf("balance: got %v, want 10047.5", trades.Balance())
	}

	// Settlement must release the settings lock.
	next := store.Get()
	next.Stake = 75
	if err := store.Update(next); err != nil {
		t.Errorf("stake change after settlement: %v", err)
	}
}

func TestStop_CancelsActiveTrade(t *testing.T) {
	src := &scriptedSource{prices: risingPrices(20), interval: 10 * time.Millisecond}
	e, trades, store := newTestEngine(t, src, model.Settings{
		Stake: 50, Strategy: model.StrategyRSIReversal, APIToken: "tok",
	}, time.Hour) // never settles on its own

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 3*time.Second, trades.HasActive, "trade to open")

	// Further signal ticks must not open a second position.
	time.Sleep(50 * time.Millisecond)
	if got := len(trades.History()); got != 0 {
		t.Fatalf("history before stop: got %d trades, want 0", got)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	hist := trades.History()
	if len(hist) != 1 {
		t.Fatalf("history: got %d trades, want 1 cancelled", len(hist))
	}
	if hist[0].Status != model.ResultCancelled {
		t.Errorf("status: got %s, want CANCELLED", hist[0].Status)
	}
	if hist[0].Profit != 0 {
		t.Errorf("cancelled profit: got %v, want 0", hist[0].Profit)
	}
	if trades.Balance() != 10000 {
		t.Errorf("balance: got %v, want untouched 10000", trades.Balance())
	}

	// Cancellation must release the settings lock too.
	next := store.Get()
	next.Strategy = model.StrategySMACrossover
	if err := store.Update(next); err != nil {
		t.Errorf("strategy change after cancel: %v", err)
	}
}

func TestSessionLimit_TakeProfitAutoStops(t *testing.T) {
	prices := append(risingPrices(15), 99, 98)
	src := &scriptedSource{prices: prices, interval: 30 * time.Millisecond}
	e, trades, _ := newTestEngine(t, src, model.Settings{
		Stake: 50, TakeProfit: 40, Strategy: model.StrategyRSIReversal, APIToken: "tok",
	}, 50*time.Millisecond)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// One win (+47.50) crosses the 40 take-profit, so the engine stops
	// itself.
	waitFor(t, 3*time.Second, func() bool {
		return e.State() == model.StateStopped
	}, "auto-stop after take-profit")

	if got := trades.SessionProfit(); math.Abs(got-47.5) > 1e-9 {
		t.Errorf("session profit: got %v, want 47.5", got)
	}
	if err := e.Stop(); err != ErrNotRunning {
		t.Errorf("Stop after auto-stop: got %v, want ErrNotRunning", err)
	}
}

func TestSettlementTick_DoesNotOpenNext(t *testing.T) {
	// Ticks are injected directly so the settlement tick is exactly
	// controlled; the source itself stays silent.
	src := &scriptedSource{interval: time.Hour}
	e, trades, _ := newTestEngine(t, src, model.Settings{
		Stake: 50, Strategy: model.StrategyRSIReversal, APIToken: "tok",
	}, time.Millisecond)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()
	run := e.runSeq

	for _, p := range risingPrices(15) {
		e.onTick(run, model.Tick{Time: time.Now().UnixMilli(), Price: p})
	}
	if !trades.HasActive() {
		t.Fatal("expected a PUT after the rising window")
	}

	// RSI is pinned at 100 on the settlement tick, so falling through to
	// evaluation would open the next position immediately.
	time.Sleep(10 * time.Millisecond)
	e.onTick(run, model.Tick{Time: time.Now().UnixMilli(), Price: 116})

	hist := trades.History()
	if len(hist) != 1 {
		t.Fatalf("history: got %d trades, want 1", len(hist))
	}
	if hist[0].Status != model.ResultLoss {
		t.Errorf("status: got %s, want LOSS", hist[0].Status)
	}
	if trades.HasActive() {
		t.Fatal("the tick that settles a trade must not open the next one")
	}

	// Evaluation resumes on the following tick.
	e.onTick(run, model.Tick{Time: time.Now().UnixMilli(), Price: 117})
	active, ok := trades.Active()
	if !ok {
		t.Fatal("the tick after settlement should evaluate and open")
	}
	if active.EntryPrice != 117 {
		t.Errorf("entry: got %v, want 117", active.EntryPrice)
	}
}

func TestRestartAfterAutoStop(t *testing.T) {
	src := &scriptedSource{interval: time.Hour}
	e, trades, _ := newTestEngine(t, src, model.Settings{
		Stake: 50, TakeProfit: 40, Strategy: model.StrategyRSIReversal, APIToken: "tok",
	}, time.Millisecond)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	run := e.runSeq

	for _, p := range risingPrices(15) {
		e.onTick(run, model.Tick{Time: time.Now().UnixMilli(), Price: p})
	}
	if !trades.HasActive() {
		t.Fatal("expected a position after the rising window")
	}
	time.Sleep(10 * time.Millisecond)
	// PUT win (+47.50) crosses the 40 take-profit: automatic stop.
	e.onTick(run, model.Tick{Time: time.Now().UnixMilli(), Price: 99})
	if got := e.State(); got != model.StateStopped {
		t.Fatalf("state after limit: got %s, want STOPPED", got)
	}

	// An immediate restart must come back, not hang on the teardown of
	// the run that just auto-stopped.
	restarted := make(chan error, 1)
	go func() { restarted <- e.Start() }()
	select {
	case err := <-restarted:
		if err != nil {
			t.Fatalf("restart: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("restart after auto-stop did not return")
	}
	if got := e.State(); got != model.StateTrading {
		t.Fatalf("state after restart: got %s, want TRADING", got)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestStart_SeedsBufferInSimulatedMode(t *testing.T) {
	src := &scriptedSource{interval: time.Hour} // no ticks, just blocks
	store := settings.NewStore(model.Settings{
		Stake: 50, Strategy: model.StrategyRSIReversal, // no API token
	})
	trades := trade.NewManager(trade.ManagerConfig{
		HoldDuration: time.Hour, PayoutRatio: 0.95, InitialBalance: 10000,
	}, nil)

	e := New(Config{
		BufferCapacity:  60,
		Indicators:      indicator.Config{RSIPeriod: 14, FastPeriod: 5, SlowPeriod: 10},
		Thresholds:      strategy.Thresholds{RSIUpper: 75, RSILower: 25, Confidence: 75},
		InitialPrice:    6350.50,
		SimAmplitude:    3,
		SimTickInterval: time.Second,
	}, Deps{
		Settings: store,
		Trades:   trades,
		Cell:     advisory.NewCell(),
		Sim:      src,
	})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	prices := e.PricesSnapshot()
	if len(prices) != 60 {
		t.Fatalf("seeded window: got %d prices, want 60", len(prices))
	}
	for i, p := range prices {
		if math.Abs(p-6350.50) > 1.5*60 {
			t.Fatalf("seeded price %d (%v) strayed beyond the walk bound", i, p)
		}
	}
}

func TestAdvisoryStrategy_ActsOnConfidentCall(t *testing.T) {
	src := &scriptedSource{prices: risingPrices(10), interval: 20 * time.Millisecond}
	e, trades, _ := newTestEngine(t, src, model.Settings{
		Stake: 50, Strategy: model.StrategyAIGemini, APIToken: "tok",
	}, time.Hour)

	cell := advisory.NewCell()
	e.deps.Cell = cell
	e.deps.Poller = advisory.NewPoller(advisory.PollerConfig{
		Interval: 10 * time.Millisecond,
		Window:   1,
		Timeout:  time.Second,
	}, oracleFunc(func(ctx context.Context, prices []float64) (advisory.Advice, error) {
		return advisory.Advice{
			Recommendation: advisory.RecommendCall,
			Reasoning:      "tendência de alta",
			Confidence:     90,
		}, nil
	}), cell, e.PricesSnapshot)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, trades.HasActive, "advisory-driven trade to open")

	active, _ := trades.Active()
	if active.Type != model.TradeCall {
		t.Errorf("type: got %s, want CALL", active.Type)
	}
	if active.StrategyUsed != string(model.StrategyAIGemini) {
		t.Errorf("strategy: got %s, want %s", active.StrategyUsed, model.StrategyAIGemini)
	}
}

type oracleFunc func(ctx context.Context, prices []float64) (advisory.Advice, error)

func (f oracleFunc) Analyze(ctx context.Context, prices []float64) (advisory.Advice, error) {
	return f(ctx, prices)
}

func TestStatus_SnapshotAndTokenScrubbing(t *testing.T) {
	src := &scriptedSource{prices: risingPrices(16), interval: 10 * time.Millisecond}
	e, trades, _ := newTestEngine(t, src, model.Settings{
		Stake: 50, Strategy: model.StrategyRSIReversal, APIToken: "secret",
	}, time.Hour)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, trades.HasActive, "trade to open")

	st := e.Status()
	if st.State != model.StateTrading {
		t.Errorf("state: got %s, want TRADING", st.State)
	}
	if st.Settings.APIToken != "" {
		t.Error("status must not expose the API token")
	}
	if st.ActiveTrade == nil {
		t.Error("status should carry the pending trade")
	}
	if st.LastTick == nil {
		t.Error("status should carry the last tick")
	}
	if st.Balance != 10000 {
		t.Errorf("balance: got %v, want 10000", st.Balance)
	}
}
