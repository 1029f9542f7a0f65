// Package bus implements the process-wide output broadcaster named in
// spec.md §5: a many-producer, many-consumer fan-out of OutputEvent
// values with bounded capacity (128) and lossy delivery to slow
// subscribers. Per-firing channels inside the Reactor are bridged into
// this single broadcaster so downstream consumers subscribe only once
// (spec.md §9, "Per-firing output broadcaster").
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gokayokyay/stewardx/internal/model"
)

// Capacity is the bounded buffer size of every subscriber channel.
const Capacity = 128

// Subscription is an active output subscription.
type Subscription struct {
	id int
	ch chan model.OutputEvent
}

// Ch returns the channel to receive output events on.
func (s *Subscription) Ch() <-chan model.OutputEvent {
	return s.ch
}

// OutputBus is the single process-wide output broadcaster.
type OutputBus struct {
	mu              sync.RWMutex
	subs            map[int]*Subscription
	nextID          int
	logger          *slog.Logger
	droppedEvents   atomic.Int64
	lastDropWarning atomic.Int64
}

// New creates an OutputBus. A nil logger disables drop-threshold
// warnings.
func New(logger *slog.Logger) *OutputBus {
	return &OutputBus{
		subs:   make(map[int]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. Callers must Unsubscribe when
// done to release the channel.
func (b *OutputBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, ch: make(chan model.OutputEvent, Capacity)}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *OutputBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Publish fans an OutputEvent out to every subscriber. Delivery is
// non-blocking: a subscriber with a full buffer silently misses the
// event (spec.md §5).
func (b *OutputBus) Publish(evt model.OutputEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			newCount := b.droppedEvents.Add(1)
			b.maybeLogDropWarning(newCount, evt.TaskID.String())
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *OutputBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// DroppedEventCount returns the total number of events dropped due to
// full subscriber buffers.
func (b *OutputBus) DroppedEventCount() int64 {
	return b.droppedEvents.Load()
}

func dropThreshold(count int64) int64 {
	threshold := int64(1)
	for threshold*10 <= count {
		threshold *= 10
	}
	return threshold
}

func (b *OutputBus) maybeLogDropWarning(newCount int64, taskID string) {
	if b.logger == nil {
		return
	}
	threshold := dropThreshold(newCount)
	if newCount != threshold {
		return
	}
	lastWarned := b.lastDropWarning.Load()
	if threshold <= lastWarned {
		return
	}
	if b.lastDropWarning.CompareAndSwap(lastWarned, threshold) {
		b.logger.Warn("output_bus_dropped_events_reached_threshold",
			slog.Int64("count", newCount),
			slog.String("task_id", taskID),
		)
	}
}
