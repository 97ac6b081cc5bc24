package strategy

import (
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/indicator"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// evalSMACrossover approximates a golden/death cross using a single lagged
// sample: CALL when the fast SMA sits above the slow SMA and the
// second-to-last price was still below the slow SMA (crossing from below),
// PUT on the mirror condition.
//
// This is a heuristic, not a textbook crossover — it compares one raw
// price against the slow SMA instead of the previous bar's fast SMA, so it
// only fires when the fast/slow relationship and the lagged sample agree.
// The SMA warm-up sentinel 0 is guarded explicitly.
func evalSMACrossover(snap indicator.Snapshot, prices []float64) *Decision {
	if snap.SMAFast == 0 || snap.SMASlow == 0 || len(prices) < 2 {
		return nil
	}
	lagged := prices[len(prices)-2]

	if snap.SMAFast > snap.SMASlow && lagged < snap.SMASlow {
		return &Decision{
			Type:   model.TradeCall,
			Reason: reason("SMA golden cross (fast %.2f > slow %.2f, lagged %.2f below)", snap.SMAFast, snap.SMASlow, lagged),
		}
	}
	if snap.SMAFast < snap.SMASlow && lagged > snap.SMASlow {
		return &Decision{
			Type:   model.TradePut,
			Reason: reason("SMA death cross (fast %.2f < slow %.2f, lagged %.2f above)", snap.SMAFast, snap.SMASlow, lagged),
		}
	}
	return nil
}
