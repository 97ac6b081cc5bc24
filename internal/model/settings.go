package model

// StrategyType selects one of the closed set of trading strategies.
type StrategyType string

const (
	StrategyAIGemini     StrategyType = "AI_GEMINI"
	StrategyRSIReversal  StrategyType = "RSI_REVERSAL"
	StrategySMACrossover StrategyType = "SMA_CROSSOVER"
)

// Valid reports whether s is one of the known strategies.
func (s StrategyType) Valid() bool {
	switch s {
	case StrategyAIGemini, StrategyRSIReversal, StrategySMACrossover:
		return true
	}
	return false
}

// Settings is the externally supplied bot configuration. It is read at
// every decision point, not snapshotted at start, so changes apply to the
// next decision. Strategy and Stake are locked by the settings store while
// a trade is pending.
type Settings struct {
	Stake      float64      `json:"stake" yaml:"stake"`
	TakeProfit float64      `json:"take_profit" yaml:"take_profit"` // session limit; 0 disables
	StopLoss   float64      `json:"stop_loss" yaml:"stop_loss"`     // session limit; 0 disables
	Asset      string       `json:"asset" yaml:"asset"`
	Strategy   StrategyType `json:"strategy" yaml:"strategy"`
	APIToken   string       `json:"-" yaml:"api_token"` // Deriv token; empty = simulated feed
}
