package model

import "time"

// Tick represents a single market price observation.
// Time is a Unix timestamp in milliseconds, matching the Deriv feed
// (epoch seconds * 1000). Ticks are immutable once created.
type Tick struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// TickTime returns the tick timestamp as a time.Time (UTC).
func (t Tick) TickTime() time.Time {
	return time.UnixMilli(t.Time).UTC()
}
