package kafka

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OliveiraNt/kviz/internal/config"
	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func writeTestCA(t *testing.T) string {
	t.Helper()
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test CA"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(caFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caCertDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return caFile
}

func TestNewClient(t *testing.T) {
	t.Run("generated client id", func(t *testing.T) {
		client, err := NewClient(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		defer client.Close()
	})

	t.Run("tuning options", func(t *testing.T) {
		cfg := config.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Options: map[string]string{"compression": "zstd", "fetch_max_wait": "250ms"},
		}
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient() with options error = %v", err)
		}
		defer client.Close()
	})

	t.Run("unknown tuning option", func(t *testing.T) {
		cfg := config.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Options: map[string]string{"linger": "5ms"},
		}
		if _, err := NewClient(cfg); err == nil {
			t.Error("expected error for unknown option, got nil")
		}
	})

	t.Run("TLS with CA only", func(t *testing.T) {
		cfg := config.KafkaConfig{
			Brokers: []string{"localhost:9093"},
			TLS:     &config.TLSConfig{Enabled: true, CAFile: writeTestCA(t)},
		}
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient() with TLS error = %v", err)
		}
		defer client.Close()
	})

	t.Run("TLS with invalid CA file", func(t *testing.T) {
		cfg := config.KafkaConfig{
			Brokers: []string{"localhost:9093"},
			TLS:     &config.TLSConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"},
		}
		if _, err := NewClient(cfg); err == nil {
			t.Error("expected error for invalid CA file, got nil")
		}
	})

	t.Run("TLS with CA file holding no certificates", func(t *testing.T) {
		caFile := filepath.Join(t.TempDir(), "empty.pem")
		if err := os.WriteFile(caFile, []byte("not a certificate"), 0600); err != nil {
			t.Fatal(err)
		}
		cfg := config.KafkaConfig{TLS: &config.TLSConfig{Enabled: true, CAFile: caFile}}
		if _, err := NewClient(cfg); err == nil {
			t.Error("expected error for empty CA file, got nil")
		}
	})

	t.Run("unsupported SASL mechanism", func(t *testing.T) {
		cfg := config.KafkaConfig{SASL: &config.SASLConfig{Mechanism: "GSSAPI"}}
		if _, err := NewClient(cfg); err == nil {
			t.Error("expected error for unsupported mechanism, got nil")
		}
	})
}

func TestClientNilSafety(t *testing.T) {
	var c *Client
	if c.IsHealthy() {
		t.Error("nil client reported healthy")
	}
	groups, err := c.ListConsumerGroups(context.Background())
	if err != nil || groups != nil {
		t.Errorf("expected nil groups and error, got %v, %v", groups, err)
	}
	if err := c.WriteMessage(context.Background(), "t", domain.Message{}); err == nil {
		t.Error("expected error writing through nil client")
	}
	c.StreamMessages(context.Background(), make(chan domain.TopicMessage))
	c.Close()
}

func TestBuildSASLMechanism(t *testing.T) {
	tests := []struct {
		mechanism string
		name      string
	}{
		{mechanism: "PLAIN", name: "PLAIN"},
		{mechanism: "plain", name: "PLAIN"},
		{mechanism: "SCRAM-SHA-256", name: "SCRAM-SHA-256"},
		{mechanism: "scram-sha-512", name: "SCRAM-SHA-512"},
	}
	for _, tt := range tests {
		t.Run(tt.mechanism, func(t *testing.T) {
			mech, err := buildSASLMechanism(&config.SASLConfig{Mechanism: tt.mechanism, Username: "u", Password: "p"})
			if err != nil {
				t.Fatalf("buildSASLMechanism() error = %v", err)
			}
			if mech.Name() != tt.name {
				t.Errorf("Name() = %s, want %s", mech.Name(), tt.name)
			}
		})
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("KVIZ_TEST_SASL_USER", "from-env")
	if got := envOr("KVIZ_TEST_SASL_USER", "inline"); got != "from-env" {
		t.Errorf("envOr() = %s, want from-env", got)
	}
	if got := envOr("KVIZ_TEST_UNSET_VAR", "inline"); got != "inline" {
		t.Errorf("envOr() = %s, want inline", got)
	}
	if got := envOr("", "inline"); got != "inline" {
		t.Errorf("envOr() = %s, want inline", got)
	}
}

func TestBuildAWSMechanism(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_SESSION_TOKEN", "")

	mech, err := buildAWSMechanism(&config.AWSConfig{IAM: true})
	if err != nil || mech != nil {
		t.Fatalf("expected no mechanism without credentials, got %v, %v", mech, err)
	}

	t.Setenv("MSK_KEY", "AKIA")
	t.Setenv("MSK_SECRET", "secret")
	mech, err = buildAWSMechanism(&config.AWSConfig{IAM: true, AccessKeyEnv: "MSK_KEY", SecretKeyEnv: "MSK_SECRET"})
	if err != nil {
		t.Fatalf("buildAWSMechanism() error = %v", err)
	}
	if mech == nil || mech.Name() != "AWS_MSK_IAM" {
		t.Errorf("expected AWS_MSK_IAM mechanism, got %v", mech)
	}
}

func TestToTopicMessage(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	got := toTopicMessage(&kgo.Record{Topic: "orders", Key: []byte("k"), Value: []byte("v"), Timestamp: ts, Partition: 2, Offset: 41})
	want := domain.TopicMessage{
		Topic:   "orders",
		Message: domain.Message{Key: []byte("k"), Value: []byte("v"), Timestamp: ts, Partition: 2, Offset: 41},
	}
	if got.Topic != want.Topic || string(got.Message.Key) != "k" || string(got.Message.Value) != "v" ||
		!got.Message.Timestamp.Equal(ts) || got.Message.Partition != 2 || got.Message.Offset != 41 {
		t.Errorf("toTopicMessage() = %+v, want %+v", got, want)
	}
}

func TestSummarizeLags(t *testing.T) {
	lags := kadm.DescribedGroupLags{
		"billing": kadm.DescribedGroupLag{
			Group:   "billing",
			State:   "Stable",
			Members: []kadm.DescribedGroupMember{{MemberID: "m1"}, {MemberID: "m2"}},
			Lag: kadm.GroupLag{
				"orders": {
					0: kadm.GroupMemberLag{Topic: "orders", Partition: 0, Lag: 3},
					1: kadm.GroupMemberLag{Topic: "orders", Partition: 1, Lag: 4},
				},
				"payments":           {0: kadm.GroupMemberLag{Topic: "payments", Partition: 0, Lag: 1}},
				domain.ReservedTopic: {0: kadm.GroupMemberLag{Topic: domain.ReservedTopic, Partition: 0, Lag: 9}},
			},
		},
		"audit": kadm.DescribedGroupLag{Group: "audit", State: "Empty"},
	}

	got := summarizeLags(lags)
	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(got))
	}
	if got[0].GroupID != "audit" || got[1].GroupID != "billing" {
		t.Errorf("groups not sorted: %s, %s", got[0].GroupID, got[1].GroupID)
	}
	billing := got[1]
	if billing.Members != 2 || billing.State != "Stable" {
		t.Errorf("unexpected billing summary %+v", billing)
	}
	if billing.TotalLag != 8 {
		t.Errorf("TotalLag = %d, want 8", billing.TotalLag)
	}
	if billing.TopicLag["orders"] != 7 || billing.TopicLag["payments"] != 1 {
		t.Errorf("unexpected topic lag %v", billing.TopicLag)
	}
	if _, ok := billing.TopicLag[domain.ReservedTopic]; ok {
		t.Error("reserved topic lag must be hidden")
	}
}

func TestClientIntegration(t *testing.T) {
	brokers := startKafka(t)

	client, err := NewClient(config.KafkaConfig{Brokers: brokers})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if !client.IsHealthy() {
		t.Fatal("expected healthy cluster")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out := make(chan domain.TopicMessage, 16)
	go client.StreamMessages(ctx, out)

	// the sampler starts at the log end, so keep producing until one is seen
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := client.WriteMessage(ctx, "kviz-it", domain.Message{Key: []byte("k"), Value: []byte("hello")}); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		select {
		case m := <-out:
			if m.Topic != "kviz-it" || string(m.Message.Value) != "hello" {
				t.Fatalf("unexpected message %+v", m)
			}
			if _, err := client.ListConsumerGroups(ctx); err != nil {
				t.Errorf("ListConsumerGroups() error = %v", err)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("no message sampled")
		}
	}
}

func TestResolveClientID(t *testing.T) {
	if got := resolveClientID("viz-1"); got != "viz-1" {
		t.Errorf("expected client_id 'viz-1', got '%s'", got)
	}
	a, b := resolveClientID(""), resolveClientID("")
	if !strings.HasPrefix(a, "kviz-") {
		t.Errorf("expected generated client id, got '%s'", a)
	}
	if a == b {
		t.Errorf("expected unique generated ids, both were '%s'", a)
	}
}

func TestTuningOptions(t *testing.T) {
	tests := []struct {
		name    string
		in      map[string]string
		want    int
		wantErr bool
	}{
		{name: "empty", in: nil, want: 0},
		{name: "durations", in: map[string]string{"metadata_max_age": "1m", "dial_timeout": "3s", "fetch_max_wait": "100ms", "producer_linger": "5ms"}, want: 4},
		{name: "sizes", in: map[string]string{"fetch_max_bytes": "1048576", "max_buffered_records": "1000"}, want: 2},
		{name: "compression", in: map[string]string{"compression": "LZ4"}, want: 1},
		{name: "acks all", in: map[string]string{"required_acks": "all"}, want: 1},
		{name: "acks leader disables idempotence", in: map[string]string{"required_acks": "leader"}, want: 2},
		{name: "unknown key", in: map[string]string{"foo": "bar"}, wantErr: true},
		{name: "bad duration", in: map[string]string{"dial_timeout": "soon"}, wantErr: true},
		{name: "negative duration", in: map[string]string{"dial_timeout": "-1s"}, wantErr: true},
		{name: "bad int", in: map[string]string{"fetch_max_bytes": "lots"}, wantErr: true},
		{name: "int32 overflow", in: map[string]string{"fetch_max_bytes": "4294967296"}, wantErr: true},
		{name: "bad compression", in: map[string]string{"compression": "brotli"}, wantErr: true},
		{name: "bad acks", in: map[string]string{"required_acks": "some"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tuningOptions(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %d options", len(opts))
				}
				return
			}
			if err != nil {
				t.Fatalf("tuningOptions() error = %v", err)
			}
			if len(opts) != tt.want {
				t.Errorf("expected %d options, got %d", tt.want, len(opts))
			}
		})
	}
}
