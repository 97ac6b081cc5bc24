package model

// BotState is the run state of the engine controller.
type BotState string

const (
	StateIdle    BotState = "IDLE"
	StateTrading BotState = "TRADING"
	StateStopped BotState = "STOPPED"

	// StateAnalyzing is reserved. No transition currently targets it; it is
	// kept because it is part of the public state surface.
	StateAnalyzing BotState = "ANALYZING"
)

// Running reports whether tick processing and strategy evaluation are active.
func (s BotState) Running() bool {
	return s == StateTrading
}
