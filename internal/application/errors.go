package application

import "errors"

var (
	// ErrTopicNotFound is returned when a topic is neither tracked nor sampled
	ErrTopicNotFound = errors.New("topic not found")

	// ErrInvalidVersion is returned when a version query parameter is not a non-negative integer
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidMessage is returned when a message to publish has no value
	ErrInvalidMessage = errors.New("invalid message")

	// ErrSamplerDisabled is returned when no Kafka brokers are configured
	ErrSamplerDisabled = errors.New("kafka access is not configured")
)
