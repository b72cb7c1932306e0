package kafka

import (
	"context"
	"sort"
	"time"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/twmb/franz-go/pkg/kadm"
)

type Admin struct {
	client *kadm.Client
}

// NewAdmin creates a new Admin
func NewAdmin(client *kadm.Client) *Admin {
	return &Admin{client: client}
}

// BrokerMetadata returns broker metadata (used for health checks)
func (a *Admin) BrokerMetadata(ctx context.Context) (kadm.Metadata, error) {
	return a.client.BrokerMetadata(ctx)
}

// ListConsumerGroups describes every consumer group and its committed lag.
func (a *Admin) ListConsumerGroups(ctx context.Context) ([]domain.ConsumerGroupSummary, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	groups, err := a.client.DescribeConsumerGroups(cctx)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []domain.ConsumerGroupSummary{}, nil
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	lags, err := a.client.Lag(cctx, names...)
	if err != nil {
		return nil, err
	}
	return summarizeLags(lags), nil
}

func summarizeLags(lags kadm.DescribedGroupLags) []domain.ConsumerGroupSummary {
	result := make([]domain.ConsumerGroupSummary, 0, len(lags))
	for groupID, group := range lags {
		summary := domain.ConsumerGroupSummary{
			GroupID:  groupID,
			State:    group.State,
			Members:  len(group.Members),
			TopicLag: make(map[string]int64),
		}
		for topic, tl := range group.Lag.TotalByTopic() {
			if topic == domain.ReservedTopic {
				continue
			}
			summary.TopicLag[topic] = tl.Lag
			summary.TotalLag += tl.Lag
		}
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GroupID < result[j].GroupID })
	return result
}
