// Package cmd wires kviz together: it parses flags, loads configuration,
// starts the ZooKeeper trackers and the optional Kafka sampler, and serves
// the HTTP API until the context is cancelled.
package cmd

import (
	"context"
	"strconv"
	"time"

	httpserver "github.com/OliveiraNt/kviz/internal/adapters/http"
	"github.com/OliveiraNt/kviz/internal/application"
	"github.com/OliveiraNt/kviz/internal/config"
	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/infrastructure/kafka"
	"github.com/OliveiraNt/kviz/internal/infrastructure/zookeeper"
	"github.com/OliveiraNt/kviz/internal/tracker"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

// StartWeb connects to ZooKeeper, starts both trackers and serves the API.
// A tracker that cannot start is fatal and returned. When configPath is not
// empty the file is watched for log level and sampler window changes; flags
// keep overriding the file across reloads.
func StartWeb(ctx context.Context, cfg config.Config, configPath string, flags Flags) error {
	zk, err := zookeeper.Connect(cfg.Zookeeper)
	if err != nil {
		return err
	}
	defer zk.Close()

	paths := tracker.NewPaths(cfg.Zookeeper.Chroot)
	opts := []tracker.Option{
		tracker.WithParentWait(cfg.Zookeeper.StartupTimeout),
		tracker.WithPartitionWait(cfg.Zookeeper.PartitionTimeout),
	}
	brokers := tracker.NewBrokerTracker(zk, paths, opts...)
	defer brokers.Close()
	topics := tracker.NewTopicTracker(zk, paths, opts...)
	defer topics.Close()

	if err := brokers.Start(); err != nil {
		return err
	}
	if err := topics.Start(); err != nil {
		return err
	}
	topology := application.NewTopologyService(brokers, topics)

	var (
		client domain.KafkaClient
		data   *application.TopicDataTracker
	)
	if cfg.SamplingEnabled() {
		kc, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			return errors.Wrap(err, "kafka")
		}
		defer kc.Close()
		if !kc.IsHealthy() {
			utils.Logger.Warn("kafka brokers not reachable yet, sampling will retry", "brokers", cfg.Kafka.Brokers)
		}
		client = kc
		data = application.NewTopicDataTracker(client, cfg.Sampler.MaxMessagesPerTopic)
		if err := data.Start(ctx); err != nil {
			return err
		}
		defer data.Close()
		utils.Logger.Info("kafka sampling enabled", "brokers", cfg.Kafka.Brokers, "auth", cfg.Kafka.GetAuthType())
		if info, err := cfg.Kafka.GetCertificateInfo(); err != nil {
			utils.Logger.Warn("read client certificate failed", "err", err)
		} else if info != nil && info.Status != "valid" {
			utils.Logger.Warn("client certificate needs attention", "status", info.Status, "days_to_expiry", info.DaysToExpiry)
		}
	} else {
		utils.Logger.Info("kafka sampling disabled, no brokers configured")
	}

	if configPath != "" {
		w, err := config.Watch(configPath, reloadHandler(flags, data))
		if err != nil {
			utils.Logger.Warn("config hot reload disabled", "path", configPath, "err", err)
		} else {
			defer w.Close()
		}
	}

	var dataService *application.TopicDataService
	if data != nil {
		dataService = application.NewTopicDataService(topology, data, client)
	} else {
		dataService = application.NewTopicDataService(topology, nil, nil)
	}
	server := httpserver.New(topology, dataService, application.NewConsumerGroupsService(client), cfg.Environment)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(":" + strconv.Itoa(cfg.HTTP.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	utils.Logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

// reloadHandler applies a reloaded configuration file. data may be nil when
// sampling is disabled.
func reloadHandler(flags Flags, data *application.TopicDataTracker) func(config.Config) {
	return func(c config.Config) {
		flags.Apply(&c)
		utils.SetLogLevel(c.LogLevel)
		if data != nil {
			data.SetMaxMessages(c.Sampler.MaxMessagesPerTopic)
		}
	}
}
