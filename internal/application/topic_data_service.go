package application

import (
	"context"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/utils"
)

// TopicDataService serves sampled messages and publishes new ones.
// A nil data tracker or client means Kafka access is not configured.
type TopicDataService struct {
	topology *TopologyService
	data     *TopicDataTracker
	client   domain.KafkaClient
}

// NewTopicDataService creates a new topic data service.
func NewTopicDataService(topology *TopologyService, data *TopicDataTracker, client domain.KafkaClient) *TopicDataService {
	return &TopicDataService{topology: topology, data: data, client: client}
}

// Enabled reports whether Kafka access is configured.
func (s *TopicDataService) Enabled() bool {
	return s.data != nil && s.client != nil
}

// Messages returns the latest messages of topic. changed is false when the
// caller already holds the current window.
func (s *TopicDataService) Messages(topic string, since uint64) (domain.TopicMessages, bool, error) {
	if s.data == nil {
		return domain.TopicMessages{}, false, ErrSamplerDisabled
	}
	window, changed, sampled := s.data.Messages(topic, since)
	if !sampled && !s.topology.HasTopic(topic) {
		return domain.TopicMessages{}, false, ErrTopicNotFound
	}
	return window, changed, nil
}

// Publish writes msg to an existing topic.
func (s *TopicDataService) Publish(ctx context.Context, topic string, msg domain.Message) error {
	if s.client == nil {
		return ErrSamplerDisabled
	}
	if len(msg.Value) == 0 || topic == domain.ReservedTopic {
		return ErrInvalidMessage
	}
	if !s.topology.HasTopic(topic) {
		return ErrTopicNotFound
	}
	if err := s.client.WriteMessage(ctx, topic, msg); err != nil {
		utils.Logger.Error("publish message failed", "topic", topic, "err", err)
		return err
	}
	utils.Logger.Debug("message published", "topic", topic, "bytes", len(msg.Value))
	return nil
}

// Changed returns a channel closed on the next sampled message, or nil when
// sampling is disabled.
func (s *TopicDataService) Changed() <-chan struct{} {
	if s.data == nil {
		return nil
	}
	return s.data.Changed()
}
