package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultQueueDepth bounds each subscription's backlog. The queue is shallow
// on purpose: a preview or encoder always wants the freshest frame, and
// anything deeper only adds latency under load.
const DefaultQueueDepth = 8

// ErrClosed is returned by Subscribe after the broadcaster has been closed.
var ErrClosed = errors.New("broadcast: broadcaster is closed")

// Stats tracks delivery counters for one subscription.
type Stats struct {
	Delivered uint64
	Dropped   uint64
}

// Broadcaster fans values from one producer out to independent subscribers.
// Broadcast is safe to call concurrently with Subscribe and Cancel.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription[T]
	published uint64
	closed    bool
}

// New constructs an empty broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[string]*Subscription[T])}
}

// Subscribe registers a new consumer. The returned subscription observes
// every value broadcast after registration; history is never replayed.
func (b *Broadcaster[T]) Subscribe() (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &Subscription[T]{
		id: uuid.NewString(),
		b:  b,
		ch: make(chan T, DefaultQueueDepth),
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Broadcast delivers v to every registered subscription without blocking on
// any of them. Delivery to a full queue discards that queue's oldest value.
func (b *Broadcaster[T]) Broadcast(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	atomic.AddUint64(&b.published, 1)
	for _, sub := range b.subs {
		sub.deliver(v)
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published reports the total number of values broadcast.
func (b *Broadcaster[T]) Published() uint64 {
	return atomic.LoadUint64(&b.published)
}

// Close terminates all subscriptions. Subsequent Broadcast calls are no-ops
// and subsequent Subscribe calls fail with ErrClosed.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.terminate()
		delete(b.subs, id)
	}
}

func (b *Broadcaster[T]) deregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one consumer's view of a broadcaster's stream.
type Subscription[T any] struct {
	id string
	b  *Broadcaster[T]
	ch chan T

	mu        sync.Mutex
	done      bool
	delivered uint64
	dropped   uint64
}

// Values returns the channel the subscription's values arrive on. The
// channel is closed when the subscription is cancelled or the broadcaster
// shuts down.
func (s *Subscription[T]) Values() <-chan T {
	return s.ch
}

// Cancel deregisters the subscription and closes its channel. It is
// idempotent and safe to call while a broadcast is in flight.
func (s *Subscription[T]) Cancel() {
	// Deregister first so the producer stops delivering before the channel
	// closes.
	s.b.deregister(s.id)
	s.terminate()
}

// Stats returns a snapshot of the subscription's delivery counters.
func (s *Subscription[T]) Stats() Stats {
	return Stats{
		Delivered: atomic.LoadUint64(&s.delivered),
		Dropped:   atomic.LoadUint64(&s.dropped),
	}
}

func (s *Subscription[T]) deliver(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return
	}
	for {
		select {
		case s.ch <- v:
			atomic.AddUint64(&s.delivered, 1)
			return
		default:
		}
		// Queue full: shed the oldest value and retry. The consumer may race
		// us for that value, in which case the retry succeeds immediately.
		select {
		case <-s.ch:
			atomic.AddUint64(&s.dropped, 1)
		default:
		}
	}
}

func (s *Subscription[T]) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
