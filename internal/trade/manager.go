// Package trade owns the single active trade slot and the append-only
// trade history. It opens trades, settles them after the holding period
// with a fixed binary payout, and tracks the running balance.
package trade

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// OrderSubmitter forwards an opened trade to the live brokerage. The call
// is fire-and-forget: local settlement never awaits its result.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, t model.TradeType, stake float64) error
}

// ManagerConfig holds the settlement parameters.
type ManagerConfig struct {
	// HoldDuration is how long a trade stays open before the binary
	// settlement. Observed deployments disagree (3s vs 5s), so it is
	// configuration, never a constant.
	HoldDuration time.Duration

	// PayoutRatio is the fraction of the stake returned on a win (0.95
	// means a winning 50 stake pays +47.50; a loss always costs the full
	// stake).
	PayoutRatio float64

	InitialBalance float64
}

// Manager enforces the single-position invariant: at most one trade is
// PENDING at any time. Completed trades are appended to history and never
// mutated afterward.
type Manager struct {
	mu      sync.RWMutex
	cfg     ManagerConfig
	active  *model.Trade
	history []model.Trade
	balance float64
	seq     int64

	submitter OrderSubmitter // nil in simulated mode
}

// NewManager creates a Manager. submitter may be nil when no live
// brokerage is configured.
func NewManager(cfg ManagerConfig, submitter OrderSubmitter) *Manager {
	return &Manager{
		cfg:       cfg,
		history:   make([]model.Trade, 0, 128),
		balance:   cfg.InitialBalance,
		submitter: submitter,
	}
}

// Open creates a new PENDING trade. It is a silent no-op (ok=false) while
// another trade is pending — callers must treat that as a normal outcome,
// not an error. When a live submitter is configured the order is forwarded
// in a goroutine; its result is not awaited.
func (m *Manager) Open(t model.TradeType, price float64, settings model.Settings, now time.Time) (model.Trade, bool) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return model.Trade{}, false
	}

	m.seq++
	trade := model.Trade{
		ID:           fmt.Sprintf("T-%d-%d", now.UnixMilli(), m.seq),
		Type:         t,
		EntryPrice:   price,
		Stake:        settings.Stake,
		Profit:       0,
		OpenedAt:     now.UnixMilli(),
		Status:       model.ResultPending,
		StrategyUsed: string(settings.Strategy),
	}
	m.active = &trade
	m.mu.Unlock()

	log.Printf("[trade] opened %s %s entry=%.2f stake=%.2f strategy=%s",
		trade.ID, trade.Type, trade.EntryPrice, trade.Stake, trade.StrategyUsed)

	if m.submitter != nil && settings.APIToken != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.submitter.SubmitOrder(ctx, t, settings.Stake); err != nil {
				log.Printf("[trade] live order submit failed for %s: %v", trade.ID, err)
			}
		}()
	}

	return trade, true
}

// TrySettle settles the active trade against the current tick once the
// holding period has elapsed. Returns nil while there is nothing to settle
// (no active trade, or deadline not yet passed), making repeated calls
// idempotent. On settlement the trade moves to WIN or LOSS exactly once,
// the balance absorbs the profit, the slot clears, and the completed trade
// is returned.
func (m *Manager) TrySettle(tick model.Tick, now time.Time) *model.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	if now.Sub(time.UnixMilli(m.active.OpenedAt)) <= m.cfg.HoldDuration {
		return nil
	}

	trade := *m.active
	priceDiff := tick.Price - trade.EntryPrice

	var profit float64
	switch trade.Type {
	case model.TradeCall:
		if priceDiff > 0 {
			profit = trade.Stake * m.cfg.PayoutRatio
		} else {
			profit = -trade.Stake
		}
	case model.TradePut:
		if priceDiff < 0 {
			profit = trade.Stake * m.cfg.PayoutRatio
		} else {
			profit = -trade.Stake
		}
	}

	trade.ExitPrice = tick.Price
	trade.Profit = profit
	if profit > 0 {
		trade.Status = model.ResultWin
	} else {
		trade.Status = model.ResultLoss
	}

	m.history = append(m.history, trade)
	m.balance += profit
	m.active = nil

	log.Printf("[trade] settled %s %s entry=%.2f exit=%.2f profit=%+.2f balance=%.2f",
		trade.ID, trade.Status, trade.EntryPrice, trade.ExitPrice, trade.Profit, m.balance)
	return &trade
}

// CancelActive abandons the pending trade on a forced stop: the trade is
// recorded to history as CANCELLED with zero profit and an exit at the
// last seen price, and the balance is untouched. Returns nil when no trade
// is pending.
func (m *Manager) CancelActive(lastPrice float64) *model.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}

	trade := *m.active
	trade.ExitPrice = lastPrice
	trade.Profit = 0
	trade.Status = model.ResultCancelled

	m.history = append(m.history, trade)
	m.active = nil

	log.Printf("[trade] cancelled %s on stop (entry=%.2f)", trade.ID, trade.EntryPrice)
	return &trade
}

// Active returns a copy of the pending trade, or false when none exists.
func (m *Manager) Active() (model.Trade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return model.Trade{}, false
	}
	return *m.active, true
}

// HasActive reports whether a trade is pending.
func (m *Manager) HasActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil
}

// History returns a snapshot of all completed trades, oldest first.
func (m *Manager) History() []model.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]model.Trade, len(m.history))
	copy(cp, m.history)
	return cp
}

// Balance returns the current running balance.
func (m *Manager) Balance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance
}

// SessionProfit returns the cumulative profit of all settled trades this
// session. Cancelled trades contribute zero.
func (m *Manager) SessionProfit() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, t := range m.history {
		total += t.Profit
	}
	return total
}
