package domain

import (
	"context"
	"time"
)

// ChildListener receives the full current child list of a watched path.
type ChildListener func(parentPath string, children []string)

// Coordinator is the read-only view of the coordination service the trackers need.
type Coordinator interface {
	WaitUntilExists(ctx context.Context, path string, timeout time.Duration) error
	Children(path string) ([]string, error)
	Data(path string) ([]byte, error)
	// SubscribeChildChanges delivers the full child list on every change
	// until ctx is cancelled.
	SubscribeChildChanges(ctx context.Context, path string, listener ChildListener) error
}

// KafkaClient defines the traffic and admin operations used beside topology tracking.
type KafkaClient interface {
	IsHealthy() bool
	ListConsumerGroups(ctx context.Context) ([]ConsumerGroupSummary, error)
	StreamMessages(ctx context.Context, out chan<- TopicMessage)
	WriteMessage(ctx context.Context, topic string, msg Message) error
	Close()
}

// TopicMessage pairs a sampled message with the topic it came from.
type TopicMessage struct {
	Topic   string
	Message Message
}
