// Package events fans out the admission/completion lifecycle of a
// deployment (admitted, preempted, failed) to in-process listeners: the
// webhook notifier, an audit log tailer, anything else that wants to react
// to a state transition without the scheduler calling it directly.
package events

import (
	"sync"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/metrics"
)

// EventType names a deployment or cluster lifecycle transition.
type EventType string

const (
	EventDeploymentAdmitted  EventType = "deployment.admitted"
	EventDeploymentPreempted EventType = "deployment.preempted"
	EventDeploymentCompleted EventType = "deployment.completed"
	EventDeploymentFailed    EventType = "deployment.failed"
	EventClusterExhausted    EventType = "cluster.capacity_exhausted"
)

const (
	// eventChanBuffer bounds how many published events can be queued for
	// broadcast before Publish starts blocking the caller (the scheduler's
	// admission path); sized well above the subscriber count so a slow
	// broadcast loop doesn't stall admission under normal load.
	eventChanBuffer = 256

	// subscriberBuffer bounds how far one subscriber can fall behind the
	// broadcast loop before its events start being dropped rather than
	// applying backpressure to every other subscriber.
	subscriberBuffer = 64
)

// Event is one deployment or cluster lifecycle transition.
type Event struct {
	ID           string
	Type         EventType
	Timestamp    time.Time
	DeploymentID uint64
	ClusterID    uint64
	Message      string
	Metadata     map[string]string
}

// Subscriber is a channel that receives events matching its subscription's
// type filter.
type Subscriber chan *Event

type subscription struct {
	ch    Subscriber
	types map[EventType]bool // nil means "all types"
}

// Broker distributes deployment lifecycle events to subscribers, each of
// which may narrow its subscription to a set of EventTypes so a webhook
// notifier watching only failures isn't woken (or starved) by admission
// chatter on a busy cluster.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]*subscription
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a Broker. Start must be called before Publish will make
// progress; until then, published events queue in the bounded eventCh.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]*subscription),
		eventCh:     make(chan *Event, eventChanBuffer),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's broadcast loop in its own goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts the broadcast loop. Safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a channel that receives every published event. Prefer
// SubscribeTo for a listener that only cares about specific transitions.
func (b *Broker) Subscribe() Subscriber {
	return b.subscribeFiltered(nil)
}

// SubscribeTo returns a channel that only receives events whose Type is in
// types. An empty types list behaves like Subscribe.
func (b *Broker) SubscribeTo(types ...EventType) Subscriber {
	if len(types) == 0 {
		return b.subscribeFiltered(nil)
	}
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return b.subscribeFiltered(set)
}

func (b *Broker) subscribeFiltered(types map[EventType]bool) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, subscriberBuffer)
	b.subscribers[sub] = &subscription{ch: sub, types: types}
	return sub
}

// Unsubscribe removes sub and closes it. Callers must stop reading from sub
// after calling this.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands event to the broadcast loop, stamping Timestamp if unset.
// Publish never drops event itself — only broadcast's per-subscriber fan-out
// can do that — but a Publish call made after Stop, or one that outruns the
// broadcast loop's own eventChanBuffer, returns without blocking forever.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

// broadcast fans event out to every subscriber whose filter matches,
// skipping (and counting) any subscriber whose buffer is already full
// rather than letting one stalled listener stall every other one.
func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.types != nil && !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
		}
	}
}

// SubscriberCount returns the number of active subscriptions, regardless of
// type filter.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
