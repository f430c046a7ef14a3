package event

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Bus provides pub/sub event distribution with fan-out support.
type Bus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription for specific event types.
	Subscribe(types []string, handler Handler) Subscription

	// SubscribeAll subscribes to every event type.
	SubscribeAll(handler Handler) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()

	// Pause temporarily stops delivery. Events published while paused
	// are skipped for this subscription, not queued.
	Pause()

	// Resume continues delivery after Pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// MaxSubscribers limits total subscriptions.
	// Default: 0 (unlimited)
	MaxSubscribers int

	// NonBlocking makes Publish drop events for subscriptions whose
	// buffers are full instead of waiting.
	// Default: false (blocking)
	NonBlocking bool

	// DeduplicateTTL enables ID-based deduplication with the given TTL.
	// Default: 0 (disabled)
	DeduplicateTTL time.Duration

	// OnDrop is called when an event is dropped (non-blocking mode).
	OnDrop func(evt Event, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(evt Event, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-memory Bus. Delivery is per-subscription FIFO: each
// subscription owns a buffered channel and a processing goroutine, so
// one slow handler never stalls the others (or, in non-blocking mode,
// the publisher).
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription
	byType        map[string]map[string]*subscription
	wildcards     map[string]*subscription

	dedupeMu    sync.RWMutex
	dedupeCache map[string]time.Time

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

var _ Bus = (*LocalBus)(nil)

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}

	bus := &LocalBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		byType:        make(map[string]map[string]*subscription),
		wildcards:     make(map[string]*subscription),
		closeCh:       make(chan struct{}),
	}

	if config.DeduplicateTTL > 0 {
		bus.dedupeCache = make(map[string]time.Time)
		go bus.cleanupDedupe()
	}

	return bus
}

// subscription is the internal Subscription implementation.
type subscription struct {
	id      string
	types   []string // empty = all types
	handler Handler
	events  chan Event
	paused  atomic.Bool
	done    chan struct{}
	once    sync.Once
	bus     *LocalBus
}

// Publish sends an event to all matching subscribers. A zero ID or
// Timestamp is filled in, so callers may publish bare Event literals.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return &EventError{Event: evt, Message: "bus is closed"}
	}

	if evt.ID == "" {
		filled := New(evt.Type)
		filled.ThreadID = evt.ThreadID
		filled.RunID = evt.RunID
		filled.NodeID = evt.NodeID
		filled.Step = evt.Step
		filled.CheckpointID = evt.CheckpointID
		filled.Phase = evt.Phase
		filled.Error = evt.Error
		evt = filled
	} else if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if b.config.DeduplicateTTL > 0 {
		if b.isDuplicate(evt) {
			return nil
		}
		b.recordEvent(evt)
	}

	b.mu.RLock()
	subs := b.matching(evt.Type)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.id)
				}
			}
			continue
		}

		select {
		case sub.events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return &EventError{Event: evt, Message: "bus closed during publish"}
		}
	}

	return nil
}

// Subscribe creates a subscription for specific event types.
// Returns nil when the bus is closed or the subscriber limit is hit.
func (b *LocalBus) Subscribe(types []string, handler Handler) Subscription {
	return b.subscribe(types, handler)
}

// SubscribeAll subscribes to every event type.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.subscribe(nil, handler)
}

func (b *LocalBus) subscribe(types []string, handler Handler) Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.MaxSubscribers > 0 && len(b.subscriptions) >= b.config.MaxSubscribers {
		return nil
	}

	sub := &subscription{
		id:      strconv.FormatInt(b.nextID.Add(1), 10),
		types:   types,
		handler: handler,
		events:  make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}

	b.subscriptions[sub.id] = sub

	if len(types) == 0 {
		b.wildcards[sub.id] = sub
	} else {
		for _, t := range types {
			if b.byType[t] == nil {
				b.byType[t] = make(map[string]*subscription)
			}
			b.byType[t][sub.id] = sub
		}
	}

	go sub.process()

	return sub
}

// matching returns subscriptions for an event type. Caller holds b.mu.
func (b *LocalBus) matching(eventType string) []*subscription {
	subs := make([]*subscription, 0, len(b.byType[eventType])+len(b.wildcards))
	for _, sub := range b.byType[eventType] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}
	return subs
}

// Close shuts down the bus. Queued events that were not yet handled are
// dropped.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.closeCh)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.stop()
	}

	return nil
}

// process drains a subscription's queue.
func (s *subscription) process() {
	for {
		select {
		case evt := <-s.events:
			if s.paused.Load() {
				continue
			}
			if err := s.handler(context.Background(), evt); err != nil && s.bus.config.OnError != nil {
				s.bus.config.OnError(evt, s.id, err)
			}

		case <-s.done:
			return
		}
	}
}

// stop ends the processing goroutine exactly once, so Unsubscribe after
// Close doesn't panic.
func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subscriptions, s.id)
	delete(s.bus.wildcards, s.id)

	for _, t := range s.types {
		delete(s.bus.byType[t], s.id)
	}

	s.stop()
}

// Pause temporarily stops delivery.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *subscription) IsPaused() bool {
	return s.paused.Load()
}

func (b *LocalBus) isDuplicate(evt Event) bool {
	b.dedupeMu.RLock()
	defer b.dedupeMu.RUnlock()

	_, exists := b.dedupeCache[evt.ID]
	return exists
}

func (b *LocalBus) recordEvent(evt Event) {
	b.dedupeMu.Lock()
	defer b.dedupeMu.Unlock()

	b.dedupeCache[evt.ID] = time.Now()
}

func (b *LocalBus) cleanupDedupe() {
	ticker := time.NewTicker(b.config.DeduplicateTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.dedupeMu.Lock()
			cutoff := time.Now().Add(-b.config.DeduplicateTTL)
			for id, ts := range b.dedupeCache {
				if ts.Before(cutoff) {
					delete(b.dedupeCache, id)
				}
			}
			b.dedupeMu.Unlock()

		case <-b.closeCh:
			return
		}
	}
}
