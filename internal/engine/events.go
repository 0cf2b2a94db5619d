package engine

import (
	"go.uber.org/zap"
)

// Phase is a step of a conversion run
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScanning  Phase = "scanning"
	PhaseResolving Phase = "resolving"
	PhaseDiffing   Phase = "diffing"
	PhaseEmitting  Phase = "emitting"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
	PhaseApplying  Phase = "applying"
)

// Event is a progress notification. It never changes how a run behaves.
type Event struct {
	RunID     string `json:"run_id"`
	Phase     Phase  `json:"phase"`
	Decks     int    `json:"decks,omitempty"`
	Cards     int    `json:"cards,omitempty"`
	Notes     int    `json:"notes,omitempty"`
	Mutations int    `json:"mutations,omitempty"`
	Warning   string `json:"warning,omitempty"`
	Err       error  `json:"-"`
}

// Observer receives progress events
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// Observe calls f(ev)
func (f ObserverFunc) Observe(ev Event) { f(ev) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// LogObserver writes events to logger
func LogObserver(logger *zap.Logger) Observer {
	return ObserverFunc(func(ev Event) {
		fields := []zap.Field{
			zap.String("run_id", ev.RunID),
			zap.String("phase", string(ev.Phase)),
			zap.Int("decks", ev.Decks),
			zap.Int("cards", ev.Cards),
			zap.Int("notes", ev.Notes),
			zap.Int("mutations", ev.Mutations),
		}

		switch {
		case ev.Err != nil:
			logger.Error("Conversion failed", append(fields, zap.Error(ev.Err))...)
		case ev.Warning != "":
			logger.Warn(ev.Warning, fields...)
		default:
			logger.Debug("Conversion progress", fields...)
		}
	})
}
