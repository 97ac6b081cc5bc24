// Package indicator provides technical indicator calculations over the
// rolling price window.
//
// The functions are pure and recompute from the full window on every call.
// No incremental state is kept between calls: the window is small (60
// ticks), so full recomputation is cheap and avoids numerical drift.
//
// Warm-up sentinels: RSI returns the neutral value 50 and SMA returns 0
// when the window is too short. Callers must treat these as "not yet
// meaningful", never as trading signals.
package indicator

// Snapshot holds the indicator values derived from one buffer state.
type Snapshot struct {
	RSI     float64 `json:"rsi"`
	SMAFast float64 `json:"sma_fast"`
	SMASlow float64 `json:"sma_slow"`
}

// Config holds the indicator periods.
type Config struct {
	RSIPeriod  int
	FastPeriod int
	SlowPeriod int
}

// Compute derives a full Snapshot from the price window, oldest first.
func Compute(prices []float64, cfg Config) Snapshot {
	return Snapshot{
		RSI:     RSI(prices, cfg.RSIPeriod),
		SMAFast: SMA(prices, cfg.FastPeriod),
		SMASlow: SMA(prices, cfg.SlowPeriod),
	}
}

// RSI calculates the Relative Strength Index over the last period deltas.
// Returns 50 when fewer than period+1 prices are available, and 100 when
// there are no losses in the window (saturation; avoids divide-by-zero).
// A zero delta counts as a gain, so a perfectly flat window saturates at
// 100 rather than returning neutral.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses += -diff
		}
	}

	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - (100 / (1 + rs))
}

// SMA calculates the arithmetic mean of the last period prices.
// Returns the 0 sentinel when fewer than period prices are available.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}
