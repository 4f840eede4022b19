package events

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultBufferSize is the number of recent events kept in memory.
	DefaultBufferSize = 256

	subscriberBuffer = 64
)

// Event is one entry of the event log.
type Event struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Name      string         `json:"event"`
	Message   string         `json:"msg,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// InstanceID returns the instance_id field, if any.
func (e Event) InstanceID() string {
	id, _ := e.Fields["instance_id"].(string)
	return id
}

// Appender persists events. *postgres.Client implements it.
type Appender interface {
	Append(ts time.Time, level, event, msg string, fields map[string]any, instanceID string) error
}

// Subscriber receives broadcast events.
type Subscriber chan Event

// Bus validates, buffers, persists and broadcasts events.
type Bus struct {
	buffer *RingBuffer
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
	appender    Appender
	appendErr   bool
	observers   []func(Event)
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the ring buffer capacity.
func WithBufferSize(n int) Option {
	return func(b *Bus) { b.buffer = NewRingBuffer(n) }
}

// WithAppender persists every emitted event.
func WithAppender(a Appender) Option {
	return func(b *Bus) { b.appender = a }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		buffer:      NewRingBuffer(DefaultBufferSize),
		logger:      slog.Default(),
		subscribers: make(map[Subscriber]struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetAppender replaces the persistent appender. nil disables persistence.
func (b *Bus) SetAppender(a Appender) {
	b.mu.Lock()
	b.appender = a
	b.appendErr = false
	b.mu.Unlock()
}

// Observe registers fn to be called synchronously for every emitted event.
func (b *Bus) Observe(fn func(Event)) {
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

// Emit records an event. Unknown event names are rejected.
func (b *Bus) Emit(level, name, msg string, fields map[string]any) (Event, error) {
	if err := Validate(name); err != nil {
		return Event{}, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	b.buffer.Add(e)
	b.persist(ts, e)
	b.broadcast(e)
	return e, nil
}

func (b *Bus) persist(ts time.Time, e Event) {
	b.mu.RLock()
	appender := b.appender
	b.mu.RUnlock()
	if appender == nil {
		return
	}

	err := appender.Append(ts, e.Level, e.Name, e.Message, e.Fields, e.InstanceID())
	if err == nil {
		return
	}

	// Report the first failure only. The system.error entry goes straight to
	// the buffer so a dead database cannot recurse through Emit.
	b.mu.Lock()
	first := !b.appendErr
	b.appendErr = true
	b.mu.Unlock()
	if !first {
		return
	}
	b.logger.Error("event append failed", "event", e.Name, "err", err)
	b.buffer.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "postgres append failed",
		Fields:    map[string]any{"error": err.Error()},
	})
}

// broadcast never blocks: a subscriber with a full buffer misses the event.
func (b *Bus) broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, fn := range b.observers {
		fn(e)
	}
	for sub := range b.subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}

// Subscribe adds a buffered subscriber.
func (b *Bus) Subscribe() Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// CloseAllSubscribers closes every subscriber channel. Used on shutdown.
func (b *Bus) CloseAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = make(map[Subscriber]struct{})
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Snapshot returns all buffered events, oldest first.
func (b *Bus) Snapshot() []Event {
	return b.buffer.Snapshot()
}

// RecentEvents returns the last n buffered events. n <= 0 returns all.
func (b *Bus) RecentEvents(n int) []Event {
	return b.buffer.Last(n)
}

// Clear empties the buffer.
func (b *Bus) Clear() {
	b.buffer.Clear()
}
