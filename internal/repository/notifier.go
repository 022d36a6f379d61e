package repository

import "sync"

// Topic names the part of the state container that changed.
type Topic string

const (
	TopicTelemetry Topic = "telemetry"
	TopicHistory   Topic = "history"
	TopicActivity  Topic = "activity"
	TopicRelay     Topic = "relay"
	TopicMode      Topic = "mode"
	TopicPolling   Topic = "polling"
)

const defaultQueueLen = 16

// Notifier fans change topics out to subscribers. Each subscriber has a
// bounded queue; when it is full the oldest pending topic is dropped so a
// slow reader never blocks a writer.
type Notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	qLen int
}

// Subscription receives topics published after it was created.
type Subscription struct {
	ch   chan Topic
	n    *Notifier
	once sync.Once
}

// NewNotifier creates a notifier with the given per-subscriber queue length.
func NewNotifier(queueLen int) *Notifier {
	if queueLen <= 0 {
		queueLen = defaultQueueLen
	}
	return &Notifier{subs: make(map[*Subscription]struct{}), qLen: queueLen}
}

// Subscribe registers a new subscriber.
func (n *Notifier) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan Topic, n.qLen), n: n}
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	return s
}

// Publish delivers t to every subscriber. Safe on a nil Notifier.
func (n *Notifier) Publish(t Topic) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs {
		select {
		case s.ch <- t:
		default:
			// drop oldest if queue full
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- t:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Topic { return s.ch }

// Close unsubscribes and closes the channel. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.n.mu.Lock()
		delete(s.n.subs, s)
		close(s.ch)
		s.n.mu.Unlock()
	})
}
