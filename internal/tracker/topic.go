package tracker

import (
	"context"
	"time"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/pkg/errors"
)

// TopicTracker mirrors /brokers/topics, excluding the offsets topic.
type TopicTracker = Tracker[domain.Topic]

// NewTopicTracker creates a tracker over the topic registrations.
func NewTopicTracker(coord domain.Coordinator, paths Paths, opts ...Option) *TopicTracker {
	o := buildOptions(opts)
	return newTracker("topic", coord, paths.Brokers, paths.Topics, o.ParentWait, isReservedTopic, topicFetcher(coord, paths.Topics, o.PartitionWait))
}

func isReservedTopic(name string) bool {
	return name == domain.ReservedTopic
}

// Partition count is read once; later repartitioning is not tracked.
func topicFetcher(coord domain.Coordinator, topicsPath string, wait time.Duration) Fetcher[domain.Topic] {
	return func(ctx context.Context, name string) (domain.Topic, error) {
		partitionsPath := topicsPath + "/" + name + "/partitions"
		if err := coord.WaitUntilExists(ctx, partitionsPath, wait); err != nil {
			return domain.Topic{}, err
		}
		partitions, err := coord.Children(partitionsPath)
		if err != nil {
			return domain.Topic{}, errors.Wrapf(err, "list partitions of %s", name)
		}
		return domain.Topic{Name: name, Partitions: len(partitions)}, nil
	}
}
