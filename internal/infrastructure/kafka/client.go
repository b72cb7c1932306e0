package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/OliveiraNt/kviz/internal/config"
	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/aws"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// Client implements domain.KafkaClient using franz-go. One kgo client both
// tails every topic from its end and produces messages.
type Client struct {
	client *kgo.Client
	admin  *Admin
}

// NewClient creates a new Kafka client from configuration. Without a
// configured client id a unique one is generated so several instances can
// sample the same cluster.
func NewClient(cfg config.KafkaConfig) (*Client, error) {
	opts := []kgo.Opt{
		kgo.ClientID(resolveClientID(cfg.ClientID)),
		kgo.ConsumeRegex(),
		kgo.ConsumeTopics(".*"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.MetadataMaxAge(30 * time.Second),
	}

	if len(cfg.Brokers) > 0 {
		opts = append(opts, kgo.SeedBrokers(cfg.Brokers...))
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, errors.Wrap(err, "kafka tls config")
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if cfg.SASL != nil && cfg.SASL.Mechanism != "" {
		mech, err := buildSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		if mech != nil {
			opts = append(opts, kgo.SASL(mech))
		}
	}
	if cfg.AWS != nil && cfg.AWS.IAM {
		awsMech, err := buildAWSMechanism(cfg.AWS)
		if err != nil {
			return nil, err
		}
		if awsMech != nil {
			opts = append(opts, kgo.SASL(awsMech))
		}
	}

	extra, err := tuningOptions(cfg.Options)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "kafka client")
	}

	return &Client{
		client: client,
		admin:  NewAdmin(kadm.NewClient(client)),
	}, nil
}

// IsHealthy checks if the cluster is reachable.
func (c *Client) IsHealthy() bool {
	if c == nil || c.admin == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.admin.BrokerMetadata(ctx)
	return err == nil
}

// ListConsumerGroups returns consumer groups with their lag.
func (c *Client) ListConsumerGroups(ctx context.Context) ([]domain.ConsumerGroupSummary, error) {
	if c == nil || c.admin == nil {
		return nil, nil
	}
	return c.admin.ListConsumerGroups(ctx)
}

// WriteMessage produces msg to topic and waits for the broker ack.
func (c *Client) WriteMessage(ctx context.Context, topic string, msg domain.Message) error {
	if c == nil || c.client == nil {
		return errors.New("kafka client not initialized")
	}
	rec := &kgo.Record{Topic: topic, Key: msg.Key, Value: msg.Value}
	if !msg.Timestamp.IsZero() {
		rec.Timestamp = msg.Timestamp
	}
	if err := c.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return errors.Wrapf(err, "produce to %s", topic)
	}
	return nil
}

// StreamMessages forwards every record consumed from non-reserved topics to
// out until ctx is done or the client is closed.
func (c *Client) StreamMessages(ctx context.Context, out chan<- domain.TopicMessage) {
	if c == nil || c.client == nil {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(t string, p int32, err error) {
			utils.Logger.Error("fetch messages failed", "topic", t, "partition", p, "err", err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			if r.Topic == domain.ReservedTopic {
				return
			}
			select {
			case out <- toTopicMessage(r):
			case <-ctx.Done():
			}
		})
	}
}

// Close releases resources
func (c *Client) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}

func resolveClientID(id string) string {
	if id == "" {
		return "kviz-" + uuid.NewString()
	}
	return id
}

// tuningOptions maps the free-form kafka.options entries onto franz-go
// options. Unknown keys and malformed values are rejected so a typo in the
// file does not go unnoticed.
func tuningOptions(m map[string]string) ([]kgo.Opt, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var opts []kgo.Opt
	for _, k := range keys {
		v := strings.TrimSpace(m[k])
		var (
			opt kgo.Opt
			err error
		)
		switch k {
		case "metadata_max_age":
			opt, err = durationOpt(v, kgo.MetadataMaxAge)
		case "dial_timeout":
			opt, err = durationOpt(v, kgo.DialTimeout)
		case "fetch_max_wait":
			opt, err = durationOpt(v, func(d time.Duration) kgo.Opt { return kgo.FetchMaxWait(d) })
		case "producer_linger":
			opt, err = durationOpt(v, func(d time.Duration) kgo.Opt { return kgo.ProducerLinger(d) })
		case "fetch_max_bytes":
			var n int64
			n, err = strconv.ParseInt(v, 10, 32)
			opt = kgo.FetchMaxBytes(int32(n))
		case "max_buffered_records":
			var n int
			n, err = strconv.Atoi(v)
			opt = kgo.MaxBufferedRecords(n)
		case "compression":
			opt, err = compressionOpt(v)
		case "required_acks":
			var acks []kgo.Opt
			acks, err = acksOpts(v)
			opts = append(opts, acks...)
		default:
			return nil, errors.Errorf("unknown kafka option %q", k)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "kafka option %s", k)
		}
		if opt != nil {
			opts = append(opts, opt)
		}
	}
	return opts, nil
}

func durationOpt(v string, build func(time.Duration) kgo.Opt) (kgo.Opt, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, errors.Errorf("duration must be positive, got %s", v)
	}
	return build(d), nil
}

func compressionOpt(v string) (kgo.Opt, error) {
	switch strings.ToLower(v) {
	case "none":
		return kgo.ProducerBatchCompression(kgo.NoCompression()), nil
	case "gzip":
		return kgo.ProducerBatchCompression(kgo.GzipCompression()), nil
	case "snappy":
		return kgo.ProducerBatchCompression(kgo.SnappyCompression()), nil
	case "lz4":
		return kgo.ProducerBatchCompression(kgo.Lz4Compression()), nil
	case "zstd":
		return kgo.ProducerBatchCompression(kgo.ZstdCompression()), nil
	default:
		return nil, errors.Errorf("unsupported compression %q", v)
	}
}

// acksOpts returns the acks option. Anything weaker than all requires
// idempotent writes to be turned off.
func acksOpts(v string) ([]kgo.Opt, error) {
	switch strings.ToLower(v) {
	case "all", "-1":
		return []kgo.Opt{kgo.RequiredAcks(kgo.AllISRAcks())}, nil
	case "leader", "1":
		return []kgo.Opt{kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite()}, nil
	case "none", "0":
		return []kgo.Opt{kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite()}, nil
	default:
		return nil, errors.Errorf("unsupported acks %q", v)
	}
}

func toTopicMessage(r *kgo.Record) domain.TopicMessage {
	return domain.TopicMessage{
		Topic: r.Topic,
		Message: domain.Message{
			Key:       r.Key,
			Value:     r.Value,
			Timestamp: r.Timestamp,
			Partition: r.Partition,
			Offset:    r.Offset,
		},
	}
}

// buildTLSConfig reads cert files and builds a tls.Config
func buildTLSConfig(t *config.TLSConfig) (*tls.Config, error) {
	rootCAs := x509.NewCertPool()
	if t.CAFile != "" {
		b, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, err
		}
		if !rootCAs.AppendCertsFromPEM(b) {
			return nil, errors.Errorf("no certificates found in %s", t.CAFile)
		}
	}

	cfg := &tls.Config{
		RootCAs:            rootCAs,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}

	if t.CertFile != "" && t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if name != "" {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return fallback
}

// buildSASLMechanism creates a franz-go sasl.Mechanism based on SASLConfig
func buildSASLMechanism(s *config.SASLConfig) (sasl.Mechanism, error) {
	username := envOr(s.UsernameEnv, s.Username)
	password := envOr(s.PasswordEnv, s.Password)

	switch s.Mechanism {
	case "PLAIN", "plain":
		return plain.Auth{User: username, Pass: password}.AsMechanism(), nil
	case "SCRAM-SHA-256", "SCRAM-SHA256", "scram-sha-256":
		return scram.Auth{User: username, Pass: password}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512", "SCRAM-SHA512", "scram-sha-512":
		return scram.Auth{User: username, Pass: password}.AsSha512Mechanism(), nil
	default:
		return nil, errors.Errorf("unsupported sasl mechanism %q", s.Mechanism)
	}
}

// buildAWSMechanism constructs an AWS IAM SASL mechanism. It returns nil when
// no credentials can be found.
func buildAWSMechanism(a *config.AWSConfig) (sasl.Mechanism, error) {
	access := envOr(a.AccessKeyEnv, os.Getenv("AWS_ACCESS_KEY_ID"))
	secret := envOr(a.SecretKeyEnv, os.Getenv("AWS_SECRET_ACCESS_KEY"))
	session := envOr(a.SessionTokenEnv, os.Getenv("AWS_SESSION_TOKEN"))

	if access == "" || secret == "" {
		return nil, nil
	}

	return aws.Auth{
		AccessKey:    access,
		SecretKey:    secret,
		SessionToken: session,
	}.AsManagedStreamingIAMMechanism(), nil
}
