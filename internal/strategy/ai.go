package strategy

import (
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/advisory"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// evalAdvisory acts on the latest oracle recommendation when its
// confidence clears the threshold. It never triggers the oracle itself:
// the advisory poller runs on its own cadence and this function only reads
// whatever it last published. A degraded HOLD/confidence-0 advice (oracle
// failure, warm-up) therefore never opens a trade.
func evalAdvisory(advice advisory.Advice, th Thresholds) *Decision {
	if advice.Confidence <= th.Confidence {
		return nil
	}

	switch advice.Recommendation {
	case advisory.RecommendCall:
		return &Decision{
			Type:   model.TradeCall,
			Reason: reason("AI CALL (confidence %.0f): %s", advice.Confidence, advice.Reasoning),
		}
	case advisory.RecommendPut:
		return &Decision{
			Type:   model.TradePut,
			Reason: reason("AI PUT (confidence %.0f): %s", advice.Confidence, advice.Reasoning),
		}
	}
	return nil
}
