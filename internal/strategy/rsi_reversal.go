package strategy

import (
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/indicator"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// evalRSIReversal trades against RSI extremes: overbought reverses down
// (PUT), oversold reverses up (CALL). The warm-up sentinel 50 sits between
// the thresholds, so an unready indicator never signals.
func evalRSIReversal(snap indicator.Snapshot, th Thresholds) *Decision {
	switch {
	case snap.RSI > th.RSIUpper:
		return &Decision{
			Type:   model.TradePut,
			Reason: reason("RSI %.1f > %.1f (overbought reversal)", snap.RSI, th.RSIUpper),
		}
	case snap.RSI < th.RSILower:
		return &Decision{
			Type:   model.TradeCall,
			Reason: reason("RSI %.1f < %.1f (oversold reversal)", snap.RSI, th.RSILower),
		}
	}
	return nil
}
