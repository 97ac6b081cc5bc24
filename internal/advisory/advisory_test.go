package advisory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubOracle struct {
	calls  int64
	advice Advice
	err    error
	block  chan struct{} // when set, Analyze waits for ctx or close
}

func (s *stubOracle) Analyze(ctx context.Context, prices []float64) (Advice, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.block != nil {
		select {
		case <-ctx.Done():
			return Advice{}, ctx.Err()
		case <-s.block:
		}
	}
	return s.advice, s.err
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func windowOf(n int) func() []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	return func() []float64 { return prices }
}

func TestCell_StartsWithHold(t *testing.T) {
	cell := NewCell()
	a := cell.Latest()
	if a.Recommendation != RecommendHold {
		t.Errorf("got %s, want HOLD", a.Recommendation)
	}
	if a.Confidence != 0 {
		t.Errorf("confidence: got %v, want 0", a.Confidence)
	}
}

func TestPoller_PublishesOracleAdvice(t *testing.T) {
	oracle := &stubOracle{advice: Advice{
		Recommendation: RecommendCall,
		Reasoning:      "tendência de alta",
		Confidence:     88,
	}}
	cell := NewCell()
	p := NewPoller(PollerConfig{Interval: 5 * time.Millisecond, Window: 20, Timeout: time.Second},
		oracle, cell, windowOf(20))

	p.Start()
	defer p.Stop()

	waitFor(t, time.Second, func() bool {
		return cell.Latest().Recommendation == RecommendCall
	}, "advice to publish")

	a := cell.Latest()
	if a.Confidence != 88 {
		t.Errorf("confidence: got %v, want 88", a.Confidence)
	}
	if a.ReceivedAt.IsZero() {
		t.Error("ReceivedAt must be stamped on publish")
	}
}

func TestPoller_SkipsUntilWindowFull(t *testing.T) {
	oracle := &stubOracle{advice: Advice{Recommendation: RecommendCall, Confidence: 90}}
	cell := NewCell()
	p := NewPoller(PollerConfig{Interval: 5 * time.Millisecond, Window: 20, Timeout: time.Second},
		oracle, cell, windowOf(10)) // short window, never enough

	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	if n := atomic.LoadInt64(&oracle.calls); n != 0 {
		t.Errorf("oracle called %d times with a short window, want 0", n)
	}
	if got := cell.Latest().Recommendation; got != RecommendHold {
		t.Errorf("got %s, want initial HOLD", got)
	}
}

func TestPoller_DegradesOracleErrorToHold(t *testing.T) {
	oracle := &stubOracle{err: errors.New("upstream down")}
	cell := NewCell()
	p := NewPoller(PollerConfig{Interval: 5 * time.Millisecond, Window: 20, Timeout: time.Second},
		oracle, cell, windowOf(20))

	p.Start()
	defer p.Stop()

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt64(&oracle.calls) > 0 && !cell.Latest().ReceivedAt.IsZero()
	}, "degraded advice to publish")

	a := cell.Latest()
	if a.Recommendation != RecommendHold {
		t.Errorf("got %s, want HOLD on oracle failure", a.Recommendation)
	}
	if a.Confidence != 0 {
		t.Errorf("confidence: got %v, want 0 on oracle failure", a.Confidence)
	}
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	oracle := &stubOracle{
		advice: Advice{Recommendation: RecommendPut, Confidence: 99},
		block:  block,
	}
	cell := NewCell()
	p := NewPoller(PollerConfig{Interval: time.Hour, Window: 20, Timeout: time.Hour},
		oracle, cell, windowOf(20))

	p.Start()
	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt64(&oracle.calls) == 1
	}, "oracle call to start")

	done := make(chan struct{})
	go func() {
		p.Stop() // cancels the in-flight call; its result must be dropped
		close(done)
	}()
	close(block)
	<-done

	if got := cell.Latest().Recommendation; got == RecommendPut {
		t.Error("stale in-flight result reached the cell after Stop")
	}
}

func TestPoller_GateSkipsOracle(t *testing.T) {
	oracle := &stubOracle{advice: Advice{Recommendation: RecommendCall, Confidence: 90}}
	cell := NewCell()
	p := NewPoller(PollerConfig{Interval: 5 * time.Millisecond, Window: 20, Timeout: time.Second},
		oracle, cell, windowOf(20))
	p.Gate = func() bool { return false }

	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	if n := atomic.LoadInt64(&oracle.calls); n != 0 {
		t.Errorf("oracle called %d times behind a closed gate, want 0", n)
	}
}

func TestPoller_RestartResetsAdvice(t *testing.T) {
	oracle := &stubOracle{advice: Advice{Recommendation: RecommendCall, Confidence: 90}}
	cell := NewCell()
	p := NewPoller(PollerConfig{Interval: 5 * time.Millisecond, Window: 20, Timeout: time.Second},
		oracle, cell, windowOf(20))

	p.Start()
	waitFor(t, time.Second, func() bool {
		return cell.Latest().Recommendation == RecommendCall
	}, "advice before stop")
	p.Stop()

	// A fresh run must not inherit the previous session's verdict before
	// its first cycle completes.
	oracle.block = make(chan struct{})
	p.Start()
	if got := cell.Latest().Recommendation; got != RecommendHold {
		t.Errorf("after restart: got %s, want reset HOLD", got)
	}
	close(oracle.block)
	p.Stop()
}

func TestInstrumented_FiresCallbacks(t *testing.T) {
	oracle := &stubOracle{advice: Advice{Recommendation: RecommendHold, Confidence: 10}}
	var requests, results int
	var lastErr error
	wrapped := &Instrumented{
		Oracle:    oracle,
		OnRequest: func() { requests++ },
		OnResult: func(a Advice, err error, elapsed time.Duration) {
			results++
			lastErr = err
		},
	}

	if _, err := wrapped.Analyze(context.Background(), []float64{1, 2, 3}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if requests != 1 || results != 1 {
		t.Errorf("callbacks: got %d requests, %d results, want 1/1", requests, results)
	}
	if lastErr != nil {
		t.Errorf("result callback error: %v", lastErr)
	}
}
