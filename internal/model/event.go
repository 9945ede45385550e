package model

import (
	"time"

	"github.com/google/uuid"
)

// EventLevel is the severity of a radar event.
type EventLevel string

const (
	LevelInfo   EventLevel = "INFO"
	LevelSignal EventLevel = "SIGNAL"
	LevelError  EventLevel = "ERROR"
)

// Event is a single entry of the radar event stream.
type Event struct {
	ID      string     `db:"id" json:"id"`
	Level   EventLevel `db:"level" json:"level"`
	Message string     `db:"message" json:"message"`
	At      time.Time  `db:"created_at" json:"at"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(level EventLevel, message string, at time.Time) Event {
	return Event{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		At:      at,
	}
}
