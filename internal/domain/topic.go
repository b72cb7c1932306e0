package domain

import "time"

// ReservedTopic is the internal offsets topic Kafka keeps for itself.
const ReservedTopic = "__consumer_offsets"

// Topic represents a Kafka topic with its partition count at discovery time.
type Topic struct {
	Name       string `json:"name"`
	Partitions int    `json:"partitions"`
}

// Message is a record sampled from, or written to, a topic.
type Message struct {
	Key       []byte    `json:"key"`
	Value     []byte    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
}

// TopicMessages is the bounded window of latest messages seen on one topic.
// Version is the sampler version at which the window last changed.
type TopicMessages struct {
	Topic    string    `json:"topic"`
	Version  uint64    `json:"version"`
	Messages []Message `json:"messages"`
}
