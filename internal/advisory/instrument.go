package advisory

import (
	"context"
	"time"
)

// Instrumented decorates an Oracle with observation callbacks. The poller
// stays unaware of metrics and event publishing; wiring happens at startup.
type Instrumented struct {
	Oracle Oracle

	// OnRequest fires before each oracle call.
	OnRequest func()

	// OnResult fires after each call with the outcome and round-trip time.
	OnResult func(a Advice, err error, elapsed time.Duration)
}

// Analyze delegates to the wrapped oracle around the callbacks.
func (i *Instrumented) Analyze(ctx context.Context, prices []float64) (Advice, error) {
	if i.OnRequest != nil {
		i.OnRequest()
	}
	start := time.Now()
	advice, err := i.Oracle.Analyze(ctx, prices)
	if i.OnResult != nil {
		i.OnResult(advice, err, time.Since(start))
	}
	return advice, err
}
