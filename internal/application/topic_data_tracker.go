package application

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/snapshot"
	"github.com/OliveiraNt/kviz/internal/tracker"
	"github.com/OliveiraNt/kviz/internal/utils"
)

const sampleBuffer = 256

// TopicDataTracker keeps the latest messages of every sampled topic. Each
// received message bumps the version, so callers long-poll it exactly like
// the topology trackers.
type TopicDataTracker struct {
	client      domain.KafkaClient
	store       *snapshot.Store[domain.TopicMessages]
	maxMessages atomic.Int64

	started atomic.Bool

	mu     sync.Mutex // guards cancel, closed and wg
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewTopicDataTracker creates a tracker keeping at most maxMessages per topic.
func NewTopicDataTracker(client domain.KafkaClient, maxMessages int) *TopicDataTracker {
	t := &TopicDataTracker{
		client: client,
		store:  snapshot.New[domain.TopicMessages](),
	}
	t.SetMaxMessages(maxMessages)
	return t
}

// SetMaxMessages changes the window size. Existing windows shrink on their
// next message.
func (t *TopicDataTracker) SetMaxMessages(n int) {
	if n <= 0 {
		n = 1
	}
	old := t.maxMessages.Swap(int64(n))
	if old != 0 && old != int64(n) {
		utils.Logger.Info("topic message window changed", "from", old, "to", n)
	}
}

// MaxMessages returns the current window size.
func (t *TopicDataTracker) MaxMessages() int {
	return int(t.maxMessages.Load())
}

// Start launches the sampling consumer. It can be called once.
func (t *TopicDataTracker) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return tracker.ErrAlreadyStarted
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, t.cancel = context.WithCancel(ctx)
	if t.closed {
		t.cancel()
	}
	out := make(chan domain.TopicMessage, sampleBuffer)

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		t.client.StreamMessages(ctx, out)
	}()
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-out:
				t.record(m)
			}
		}
	}()
	utils.Logger.Info("topic sampler started", "max_messages", t.MaxMessages())
	return nil
}

// Started reports whether Start has been called.
func (t *TopicDataTracker) Started() bool {
	return t.started.Load()
}

// Close stops sampling and waits for the consumer to exit. A Start after
// Close exits at once.
func (t *TopicDataTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// record is only called from the sampling goroutine, which makes it the
// store's single writer.
func (t *TopicDataTracker) record(m domain.TopicMessage) {
	if m.Topic == domain.ReservedTopic {
		return
	}
	limit := t.MaxMessages()
	prev, _ := t.store.Get(m.Topic)

	msgs := make([]domain.Message, 0, min(len(prev.Messages)+1, limit))
	start := len(prev.Messages) + 1 - limit
	if start < 0 {
		start = 0
	}
	if start < len(prev.Messages) {
		msgs = append(msgs, prev.Messages[start:]...)
	}
	msgs = append(msgs, m.Message)

	t.store.Put(m.Topic, domain.TopicMessages{
		Topic:    m.Topic,
		Version:  t.store.Version() + 1,
		Messages: msgs,
	})
}

// Messages returns the window of topic unless since is non-zero and not older
// than the window. ok is false when the topic has never been sampled.
func (t *TopicDataTracker) Messages(topic string, since uint64) (window domain.TopicMessages, changed bool, ok bool) {
	tm, ok := t.store.Get(topic)
	if !ok {
		return domain.TopicMessages{Topic: topic, Messages: []domain.Message{}}, since == 0, false
	}
	if since != 0 && since >= tm.Version {
		return domain.TopicMessages{}, false, true
	}
	return tm, true, true
}

// Version returns the sampler version.
func (t *TopicDataTracker) Version() uint64 {
	return t.store.Version()
}

// Changed returns a channel closed on the next sampled message.
func (t *TopicDataTracker) Changed() <-chan struct{} {
	return t.store.Changed()
}
