package service

import (
	"sync"

	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
)

const eventLogCapacity = 10000

// EventLog keeps the audit trail of mutating operations in a bounded
// in-memory window for queries. Durable persistence happens through the
// facade's mirror, not here.
type EventLog struct {
	events []*data.Event
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewEventLog creates an empty event log
func NewEventLog(logger *zap.Logger) *EventLog {
	return &EventLog{
		events: make([]*data.Event, 0, 64),
		logger: logger,
	}
}

// Append records an event
func (el *EventLog) Append(event *data.Event) {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.events = append(el.events, event)
	if len(el.events) > eventLogCapacity {
		el.events = el.events[len(el.events)-eventLogCapacity:]
	}
}

// Recent returns up to n most recent events, newest last
func (el *EventLog) Recent(n int) []*data.Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if n <= 0 || n > len(el.events) {
		n = len(el.events)
	}

	out := make([]*data.Event, n)
	for i, event := range el.events[len(el.events)-n:] {
		copied := *event
		out[i] = &copied
	}
	return out
}

// Len reports the number of events currently held in memory
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}
