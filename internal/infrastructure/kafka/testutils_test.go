package kafka

import (
	"context"
	"testing"

	"github.com/OliveiraNt/kviz/internal/testutil"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/cp-kafka:7.4.0"

// startKafka runs a single-node KRaft broker for the test and returns its
// bootstrap addresses.
func startKafka(t *testing.T) []string {
	t.Helper()
	testutil.SkipIntegration(t)

	ctx := context.Background()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("kviz-it"))
	require.NoError(t, err, "start kafka container")
	testutil.TerminateOnCleanup(t, container)

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "kafka bootstrap brokers")
	return brokers
}
