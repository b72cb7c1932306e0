package application

import (
	"context"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/utils"
)

type ConsumerGroupsService struct {
	client domain.KafkaClient
}

func NewConsumerGroupsService(client domain.KafkaClient) *ConsumerGroupsService {
	return &ConsumerGroupsService{client: client}
}

// ListConsumerGroups returns every consumer group with its lag.
func (s *ConsumerGroupsService) ListConsumerGroups(ctx context.Context) ([]domain.ConsumerGroupSummary, error) {
	if s.client == nil {
		return nil, ErrSamplerDisabled
	}
	groups, err := s.client.ListConsumerGroups(ctx)
	if err != nil {
		utils.Logger.Error("list consumer groups failed", "err", err)
		return nil, err
	}
	if groups == nil {
		groups = []domain.ConsumerGroupSummary{}
	}
	return groups, nil
}
