package api

import (
	"sync"
)

// Event is one solve lifecycle notification fanned out to stream watchers.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Solve lifecycle event types published on the broker.
const (
	EventSolveStarted    = "solve.started"
	EventSolveSolved     = "solve.solved"
	EventSolveInfeasible = "solve.infeasible"
	EventSolveFailed     = "solve.failed"
)

// EventBroker distributes solve events keyed by problem ID.
type EventBroker interface {
	Subscribe(problemID string) chan Event
	Unsubscribe(problemID string, ch chan Event)
	Publish(problemID string, evt Event)
}

// Broker is the in-process EventBroker used when no REDIS_URL is configured.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(problemID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[problemID] == nil {
		b.subs[problemID] = map[chan Event]struct{}{}
	}
	b.subs[problemID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(problemID string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[problemID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, problemID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish never blocks: slow subscribers drop events.
func (b *Broker) Publish(problemID string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[problemID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
