package events

import (
	"log/slog"

	"arbradar/internal/model"
)

// LogSink mirrors radar events into the process log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "radar_events")}
}

func (s *LogSink) Emit(event model.Event) {
	switch event.Level {
	case model.LevelError:
		s.logger.Error(event.Message, "event_id", event.ID)
	case model.LevelSignal:
		s.logger.Info(event.Message, "event_id", event.ID, "signal", true)
	default:
		s.logger.Info(event.Message, "event_id", event.ID)
	}
}
