// Package notify delivers mirror changes to subscribers, one batch per loop
// cycle.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/zap"
)

// DefaultQueueSize is the number of batches buffered per subscriber.
const DefaultQueueSize = 64

// Batch holds the final value of every target changed within one cycle.
type Batch struct {
	Seq     uint64         `json:"seq"`
	At      time.Time      `json:"at"`
	Changes []state.Change `json:"changes"`
}

// Subscription receives batches on C until it is closed.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Batch

	ch      chan Batch
	dropped atomic.Uint64
	n       *Notifier
}

// Dropped returns the number of batches discarded because the subscriber
// fell behind.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close ends the subscription and closes C.
func (s *Subscription) Close() { s.n.unsubscribe(s.ID) }

// Notifier coalesces changes until Flush. Publish and Flush are called by the
// daemon loop; Subscribe and Close may be called from anywhere.
type Notifier struct {
	mu        sync.Mutex
	pending   map[state.Target]int32
	subs      map[uuid.UUID]*Subscription
	queueSize int
	seq       uint64
	now       func() time.Time
}

func New(queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Notifier{
		pending:   make(map[state.Target]int32),
		subs:      make(map[uuid.UUID]*Subscription),
		queueSize: queueSize,
		now:       time.Now,
	}
}

// Publish records a change for the current cycle. A later change to the same
// target replaces the earlier one.
func (n *Notifier) Publish(c state.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[c.Target] = c.Value
}

// Flush ends the cycle and hands the batch to every subscriber. A full queue
// loses its oldest batch. Nothing is sent when no target changed.
func (n *Notifier) Flush() (Batch, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) == 0 {
		return Batch{}, false
	}
	n.seq++
	b := Batch{Seq: n.seq, At: n.now(), Changes: make([]state.Change, 0, len(n.pending))}
	for t, v := range n.pending {
		b.Changes = append(b.Changes, state.Change{Target: t, Value: v})
	}
	state.SortChanges(b.Changes)
	n.pending = make(map[state.Target]int32)
	for _, s := range n.subs {
		s.deliver(b)
	}
	return b, true
}

// deliver never blocks; the caller holds n.mu so it is the only sender.
func (s *Subscription) deliver(b Batch) {
	for {
		select {
		case s.ch <- b:
			return
		default:
		}
		select {
		case <-s.ch:
			if s.dropped.Add(1) == 1 {
				zap.S().Warnf("Subscriber %s is falling behind, dropping batches", s.ID)
			}
		default:
		}
	}
}

// Subscribe registers a new subscriber.
func (n *Notifier) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan Batch, n.queueSize)
	s := &Subscription{ID: uuid.New(), C: ch, ch: ch, n: n}
	n.subs[s.ID] = s
	zap.S().Debugf("Subscriber %s added", s.ID)
	return s
}

func (n *Notifier) unsubscribe(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(s.ch)
		zap.S().Debugf("Subscriber %s removed", id)
	}
}

// Subscribers returns the number of open subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close ends every subscription.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, s := range n.subs {
		delete(n.subs, id)
		close(s.ch)
	}
}
