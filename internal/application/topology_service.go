package application

import (
	"strconv"

	"github.com/OliveiraNt/kviz/internal/domain"
)

// SnapshotSource is a versioned view of one tracked entity kind.
type SnapshotSource[V any] interface {
	GetSnapshot(since uint64) (domain.Snapshot[V], bool)
	Changed() <-chan struct{}
	Running() bool
}

// TopologyService answers broker and topic long-poll queries.
type TopologyService struct {
	brokers SnapshotSource[domain.Broker]
	topics  SnapshotSource[domain.Topic]
}

// NewTopologyService creates a new topology service.
func NewTopologyService(brokers SnapshotSource[domain.Broker], topics SnapshotSource[domain.Topic]) *TopologyService {
	return &TopologyService{brokers: brokers, topics: topics}
}

// Brokers returns the broker snapshot, or false when since is already current.
func (s *TopologyService) Brokers(since uint64) (domain.BrokerSnapshot, bool) {
	return s.brokers.GetSnapshot(since)
}

// Topics returns the topic snapshot, or false when since is already current.
func (s *TopologyService) Topics(since uint64) (domain.TopicSnapshot, bool) {
	return s.topics.GetSnapshot(since)
}

func (s *TopologyService) BrokersChanged() <-chan struct{} {
	return s.brokers.Changed()
}

func (s *TopologyService) TopicsChanged() <-chan struct{} {
	return s.topics.Changed()
}

// Ready reports whether both trackers are running.
func (s *TopologyService) Ready() bool {
	return s.brokers.Running() && s.topics.Running()
}

// HasTopic reports whether name is in the current topic snapshot.
func (s *TopologyService) HasTopic(name string) bool {
	snap, _ := s.topics.GetSnapshot(0)
	for _, t := range snap.Values {
		if t.Name == name {
			return true
		}
	}
	return false
}

// ParseVersion parses a version query value. An empty value means 0.
func ParseVersion(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidVersion
	}
	return v, nil
}
