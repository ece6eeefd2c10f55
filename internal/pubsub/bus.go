// Package pubsub implements the in-process publish/subscribe broker that
// couples chat sessions (spec.md §4.7). It is process-wide, single-node —
// spec.md §1 explicitly excludes horizontal scale-out, so there is no
// external broker here, only an in-memory fan-out.
package pubsub

import (
	"sync"

	"github.com/rs/zerolog"
)

// Subscriber receives messages published to a topic it is subscribed to.
// Implementations must tolerate "late" deliveries that race an unsubscribe
// (spec.md §4.7) — typically by making OnMessage a non-blocking, best-effort
// send into the subscriber's own outbound queue.
type Subscriber interface {
	OnMessage(topicID string, payload []byte)
}

// job is one scheduled delivery: one subscriber, one already-serialized
// message.
type job struct {
	sub     Subscriber
	topicID string
	payload []byte
}

// Bus is a single-threaded dispatcher over an indexed collection of
// (topic, subscriber) pairs, maintained with two indexes — by topic (for
// publish fan-out) and by subscriber identity (for bulk unsubscribe) —
// exactly as spec.md §4.7 describes. Publish enqueues delivery jobs onto one
// FIFO channel drained by a single dispatch goroutine, which is what gives
// "publications to a topic deliver to a given subscriber in publication
// order" (spec.md §5) without needing per-subscriber locking: the original
// C++ implementation gets the same property for free from a single-threaded
// io_context; we recreate it with a single serial consumer instead of
// fanning deliveries out across a worker pool, since worker-pool goroutines
// would race with each other and break that ordering guarantee.
type Bus struct {
	mu          sync.RWMutex
	byTopic     map[string]map[Subscriber]struct{}
	bySubscriber map[Subscriber]map[string]struct{}
	closed      bool

	logger zerolog.Logger
	jobs   chan job
	done   chan struct{}
}

// New creates a Bus and starts its dispatch goroutine. queueSize bounds how
// many pending deliveries may be buffered before Publish blocks the caller.
func New(logger zerolog.Logger, queueSize int) *Bus {
	b := &Bus{
		byTopic:      make(map[string]map[Subscriber]struct{}),
		bySubscriber: make(map[Subscriber]map[string]struct{}),
		logger:       logger,
		jobs:         make(chan job, queueSize),
		done:         make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

// Close stops the dispatch goroutine once pending jobs drain. It does not
// clear subscriptions. Safe to call while Publish calls from still-running
// websocket sessions are in flight: http.Server.Shutdown doesn't wait on
// hijacked connections, so a session can outlive the accept loop's own
// shutdown — Publish and Close serialize on mu so none of those calls ever
// sends on the channel after it's closed.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	close(b.jobs)
	<-b.done
}

func (b *Bus) dispatchLoop() {
	defer close(b.done)
	for j := range b.jobs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().
						Interface("panic", r).
						Str("topic_id", j.topicID).
						Msg("pubsub: subscriber OnMessage panicked, dropping delivery")
				}
			}()
			j.sub.OnMessage(j.topicID, j.payload)
		}()
	}
}

// Subscribe registers sub for every id in topicIDs. Re-subscribing to an
// already-held topic is a no-op.
func (b *Bus) Subscribe(sub Subscriber, topicIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.bySubscriber[sub]
	if !ok {
		subs = make(map[string]struct{})
		b.bySubscriber[sub] = subs
	}

	for _, topicID := range topicIDs {
		subs[topicID] = struct{}{}

		topicSubs, ok := b.byTopic[topicID]
		if !ok {
			topicSubs = make(map[Subscriber]struct{})
			b.byTopic[topicID] = topicSubs
		}
		topicSubs[sub] = struct{}{}
	}
}

// Unsubscribe removes every subscription held by sub. No-op if sub holds
// none.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked(sub)
}

func (b *Bus) unsubscribeLocked(sub Subscriber) {
	topics, ok := b.bySubscriber[sub]
	if !ok {
		return
	}
	for topicID := range topics {
		if topicSubs, ok := b.byTopic[topicID]; ok {
			delete(topicSubs, sub)
			if len(topicSubs) == 0 {
				delete(b.byTopic, topicID)
			}
		}
	}
	delete(b.bySubscriber, sub)
}

// Publish schedules payload for delivery to every subscriber currently
// registered for topicID. payload is shared (one allocation, many readers);
// callers must not mutate it after calling Publish. A subscriber that
// unsubscribes after Publish observes it as subscribed but before its
// delivery runs will still receive the message — OnMessage implementations
// must tolerate that.
func (b *Bus) Publish(topicID string, payload []byte) {
	// Held for the whole call, not just the subscriber-list copy: Close
	// takes the write lock to flip closed before closing b.jobs, so a
	// Publish already past this check is guaranteed to finish its sends
	// before Close can close the channel underneath it.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	topicSubs := b.byTopic[topicID]
	subs := make([]Subscriber, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}

	for _, sub := range subs {
		b.jobs <- job{sub: sub, topicID: topicID, payload: payload}
	}
}

// Guard is a scoped handle that unsubscribes its holder when Release is
// called, coupling subscription lifetime to session lifetime (spec.md §9).
type Guard struct {
	bus      *Bus
	sub      Subscriber
	released bool
	mu       sync.Mutex
}

// SubscribeGuarded subscribes sub to topicIDs and returns a Guard whose
// Release unsubscribes it.
func (b *Bus) SubscribeGuarded(sub Subscriber, topicIDs ...string) *Guard {
	b.Subscribe(sub, topicIDs...)
	return &Guard{bus: b, sub: sub}
}

// Release unsubscribes the guarded subscriber. Idempotent.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	g.bus.Unsubscribe(g.sub)
}
