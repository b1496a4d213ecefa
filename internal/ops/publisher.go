package ops

import (
	"sync"
	"time"
)

// EventType classifies operation events pushed to the transport layers.
type EventType string

// Event types consumed by the WebSocket boundary.
const (
	EventProgress  EventType = "progress"
	EventResult    EventType = "result"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventStatus    EventType = "status"
)

// Event is one notification about a search operation. Result carries the
// individual match payload on result events; it is opaque here so the
// producer's result type stays out of this package.
type Event struct {
	Type         EventType `json:"type"`
	SearchID     string    `json:"search_id"`
	Progress     float64   `json:"progress,omitempty"`
	Message      string    `json:"message,omitempty"`
	Result       any       `json:"result,omitempty"`
	ResultsCount int       `json:"results_count,omitempty"`
	Status       Status    `json:"status,omitempty"`
	TotalResults int       `json:"total_results,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers operation events to interested consumers. The search
// orchestrator is the sole producer.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}

// ChannelPublisher fans events out to channel subscribers. Slow subscribers
// drop events instead of blocking the producer.
type ChannelPublisher struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewChannelPublisher creates a publisher with no subscribers.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of future events and a cancel function that
// closes it.
func (p *ChannelPublisher) Subscribe() (<-chan Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.next
	p.next++

	ch := make(chan Event, 64)
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish stamps the event and delivers it to every subscriber.
func (p *ChannelPublisher) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
