package model

// TradeType is the direction of a binary contract.
type TradeType string

const (
	TradeCall TradeType = "CALL" // price rises over the holding period
	TradePut  TradeType = "PUT"  // price falls over the holding period
)

// TradeResult is the lifecycle status of a trade.
type TradeResult string

const (
	ResultPending TradeResult = "PENDING"
	ResultWin     TradeResult = "WIN"
	ResultLoss    TradeResult = "LOSS"

	// ResultCancelled marks a trade abandoned by a forced stop before its
	// settlement deadline. Profit is zero and the balance is untouched.
	ResultCancelled TradeResult = "CANCELLED"
)

// Trade is a single binary-options contract. At most one trade may be
// PENDING at any time; once settled or cancelled it is appended to history
// and never mutated again.
type Trade struct {
	ID           string      `json:"id"`
	Type         TradeType   `json:"type"`
	EntryPrice   float64     `json:"entry_price"`
	ExitPrice    float64     `json:"exit_price,omitempty"`
	Stake        float64     `json:"stake"`
	Profit       float64     `json:"profit"`
	OpenedAt     int64       `json:"opened_at"` // Unix ms
	Status       TradeResult `json:"status"`
	StrategyUsed string      `json:"strategy_used"`
}
