// Package strategy decides whether the engine should open a trade from the
// current indicator snapshot, price window and latest advisory state.
//
// The strategy set is closed: Evaluate switches exhaustively over the
// known StrategyType values and ignores unknown values defensively. It is
// called only when no trade is active and the bot is running; both
// preconditions are enforced by the engine controller.
package strategy

import (
	"fmt"
	"log"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/advisory"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/indicator"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// Decision is an open request emitted by a strategy. A nil *Decision means
// no action this tick.
type Decision struct {
	Type   model.TradeType `json:"type"`
	Reason string          `json:"reason"`
}

// Thresholds holds the tunable decision boundaries.
type Thresholds struct {
	RSIUpper   float64 // overbought boundary, PUT above (default 75)
	RSILower   float64 // oversold boundary, CALL below (default 25)
	Confidence float64 // minimum advisory confidence to act (default 75)
}

// Input carries everything a strategy may read for one evaluation.
type Input struct {
	Snapshot indicator.Snapshot
	Prices   []float64 // ordered window, oldest first
	Advice   advisory.Advice
}

// Evaluate runs the selected strategy over the input. Unknown strategy
// values are logged and produce no signal.
func Evaluate(st model.StrategyType, in Input, th Thresholds) *Decision {
	switch st {
	case model.StrategyRSIReversal:
		return evalRSIReversal(in.Snapshot, th)
	case model.StrategySMACrossover:
		return evalSMACrossover(in.Snapshot, in.Prices)
	case model.StrategyAIGemini:
		return evalAdvisory(in.Advice, th)
	default:
		log.Printf("[strategy] ignoring unknown strategy %q", st)
		return nil
	}
}

func reason(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
