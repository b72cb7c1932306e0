// Package domain defines the core entities and collaborator interfaces for kviz.
// It includes the broker and topic records mirrored from ZooKeeper, the versioned
// snapshot handed to polling callers, sampled Kafka messages, and the abstractions
// over the coordination service and the Kafka client.
package domain

import "errors"

var (
	// ErrTimeout is returned when a coordination path does not appear in time.
	ErrTimeout = errors.New("timed out waiting for path")

	// ErrNoNode is returned when a coordination path does not exist.
	ErrNoNode = errors.New("node does not exist")
)

// Broker is a Kafka broker registered under /brokers/ids.
type Broker struct {
	ID   string `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Snapshot is a versioned point-in-time view of a tracked entity set.
// Version 0 means nothing has been observed yet.
type Snapshot[V any] struct {
	Version uint64 `json:"version"`
	Values  []V    `json:"values"`
}

// BrokerSnapshot is the tracked broker set.
type BrokerSnapshot = Snapshot[Broker]

// TopicSnapshot is the tracked topic set.
type TopicSnapshot = Snapshot[Topic]

// ConsumerGroupSummary holds basic info about a consumer group
type ConsumerGroupSummary struct {
	GroupID  string           `json:"group_id"`
	State    string           `json:"state"`
	Members  int              `json:"members"`
	TotalLag int64            `json:"total_lag"`
	TopicLag map[string]int64 `json:"topic_lag,omitempty"`
}
