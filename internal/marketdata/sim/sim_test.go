package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

func TestStart_EmitsBoundedWalk(t *testing.T) {
	g := New(Config{
		StartPrice: 6350.50,
		Interval:   5 * time.Millisecond,
		Amplitude:  3,
		Seed:       42,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickCh := make(chan model.Tick, 16)
	done := make(chan struct{})
	go func() {
		g.Start(ctx, tickCh)
		close(done)
	}()

	prev := 6350.50
	for i := 0; i < 5; i++ {
		select {
		case tick := <-tickCh:
			if step := math.Abs(tick.Price - prev); step > 1.5 {
				t.Errorf("tick %d: step %v exceeds amplitude/2", i, step)
			}
			prev = tick.Price
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for tick %d", i)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestSetPrice_MovesContinuationPoint(t *testing.T) {
	g := New(Config{StartPrice: 100, Interval: 5 * time.Millisecond, Amplitude: 3, Seed: 1})
	g.SetPrice(500)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickCh := make(chan model.Tick, 1)
	go g.Start(ctx, tickCh)

	select {
	case tick := <-tickCh:
		if math.Abs(tick.Price-500) > 1.5 {
			t.Errorf("first tick %v should continue from 500", tick.Price)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first tick")
	}
}
