// Package eventlog carries per-action outcome events to whatever wants to
// display or record them.
package eventlog

import (
	"log/slog"
	"sync"
	"time"
)

type Action string

const (
	ActionBlock Action = "block"
	ActionMute  Action = "mute"
	// ActionSuppress is a content rewrite, not an account mutation; it is
	// logged with the reasons that triggered it.
	ActionSuppress Action = "suppress"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// Event is one moderation action outcome.
type Event struct {
	Handle  string
	Action  Action
	Outcome Outcome
	Reason  string
	At      time.Time
}

type Log interface {
	Record(ev Event)
}

// SlogLog writes outcome events as structured log lines.
type SlogLog struct {
	Logger *slog.Logger
}

var _ Log = (*SlogLog)(nil)

func (l *SlogLog) Record(ev Event) {
	l.Logger.Info("moderation action",
		"handle", ev.Handle,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
	)
}

// MemLog buffers events in memory, for tests and for status displays that
// poll recent activity.
type MemLog struct {
	mu     sync.Mutex
	events []Event
}

var _ Log = (*MemLog)(nil)

func (l *MemLog) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *MemLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
