package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPPort            = 8080
	DefaultSessionTimeout      = 10 * time.Second
	DefaultConnectTimeout      = 10 * time.Second
	DefaultStartupTimeout      = 10 * time.Second
	DefaultPartitionTimeout    = 5 * time.Second
	DefaultMaxMessagesPerTopic = 100
)

// ErrNoZookeeper is returned by Validate when no ZooKeeper server is configured.
var ErrNoZookeeper = errors.New("at least one zookeeper server is required")

// Config is the whole kviz configuration file.
type Config struct {
	Environment string          `yaml:"environment,omitempty" json:"environment,omitempty"`
	LogLevel    string          `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	HTTP        HTTPConfig      `yaml:"http,omitempty" json:"http,omitempty"`
	Zookeeper   ZookeeperConfig `yaml:"zookeeper" json:"zookeeper"`
	Kafka       KafkaConfig     `yaml:"kafka,omitempty" json:"kafka,omitempty"`
	Sampler     SamplerConfig   `yaml:"sampler,omitempty" json:"sampler,omitempty"`
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// ZookeeperConfig holds coordination service connectivity and tracker waits.
type ZookeeperConfig struct {
	Servers          []string      `yaml:"servers" json:"servers"`
	Chroot           string        `yaml:"chroot,omitempty" json:"chroot,omitempty"`
	SessionTimeout   time.Duration `yaml:"session_timeout,omitempty" json:"session_timeout,omitempty"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
	StartupTimeout   time.Duration `yaml:"startup_timeout,omitempty" json:"startup_timeout,omitempty"`
	PartitionTimeout time.Duration `yaml:"partition_timeout,omitempty" json:"partition_timeout,omitempty"`
}

// KafkaConfig holds broker connectivity and security configuration.
// Leaving Brokers empty disables message sampling and producing. Options
// tunes the client; kafka.NewClient rejects keys it does not know.
type KafkaConfig struct {
	Brokers  []string          `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	ClientID string            `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	TLS      *TLSConfig        `yaml:"tls,omitempty" json:"tls,omitempty"`
	SASL     *SASLConfig       `yaml:"sasl,omitempty" json:"sasl,omitempty"`
	AWS      *AWSConfig        `yaml:"aws,omitempty" json:"aws,omitempty"`
	Options  map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// TLSConfig holds TLS related fields.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	CAFile             string `yaml:"ca_file,omitempty" json:"ca_file,omitempty"`
	CertFile           string `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile            string `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"`
}

// SASLConfig holds SASL configuration. Credentials may be provided inline or via env var names.
type SASLConfig struct {
	Mechanism   string `yaml:"mechanism,omitempty" json:"mechanism,omitempty"` // e.g. PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username    string `yaml:"username,omitempty" json:"username,omitempty"`
	Password    string `yaml:"password,omitempty" json:"-"`
	UsernameEnv string `yaml:"username_env,omitempty" json:"username_env,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty" json:"password_env,omitempty"`
}

// AWSConfig holds AWS IAM SASL config. Prefer the standard AWS credential provider (env, shared creds, role).
type AWSConfig struct {
	IAM             bool   `yaml:"iam,omitempty" json:"iam,omitempty"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	AccessKeyEnv    string `yaml:"access_key_env,omitempty" json:"access_key_env,omitempty"`
	SecretKeyEnv    string `yaml:"secret_key_env,omitempty" json:"secret_key_env,omitempty"`
	SessionTokenEnv string `yaml:"session_token_env,omitempty" json:"session_token_env,omitempty"`
}

// SamplerConfig bounds the per-topic message window.
type SamplerConfig struct {
	MaxMessagesPerTopic int `yaml:"max_messages_per_topic,omitempty" json:"max_messages_per_topic,omitempty"`
}

func ReadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "local"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.Zookeeper.SessionTimeout <= 0 {
		c.Zookeeper.SessionTimeout = DefaultSessionTimeout
	}
	if c.Zookeeper.ConnectTimeout <= 0 {
		c.Zookeeper.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Zookeeper.StartupTimeout <= 0 {
		c.Zookeeper.StartupTimeout = DefaultStartupTimeout
	}
	if c.Zookeeper.PartitionTimeout <= 0 {
		c.Zookeeper.PartitionTimeout = DefaultPartitionTimeout
	}
	if c.Sampler.MaxMessagesPerTopic <= 0 {
		c.Sampler.MaxMessagesPerTopic = DefaultMaxMessagesPerTopic
	}
}

// Validate reports configuration the process cannot start with.
func (c *Config) Validate() error {
	if len(c.Zookeeper.Servers) == 0 {
		return ErrNoZookeeper
	}
	return nil
}

// SamplingEnabled reports whether Kafka brokers are configured.
func (c *Config) SamplingEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// GetAuthType returns a human-readable authentication type based on the Kafka config
func (c *KafkaConfig) GetAuthType() string {
	if c.AWS != nil && c.AWS.IAM {
		return "AWS IAM"
	}

	if c.SASL != nil && c.SASL.Mechanism != "" {
		mechanism := c.SASL.Mechanism
		if c.TLS != nil && c.TLS.Enabled {
			return "SASL/" + mechanism + " + TLS"
		}
		return "SASL/" + mechanism
	}

	// mTLS when client certificates are present
	if c.TLS != nil && c.TLS.Enabled {
		if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
			return "mTLS"
		}
		return "TLS"
	}

	return "PLAINTEXT"
}

// CertificateInfo holds certificate validity information
type CertificateInfo struct {
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	DaysToExpiry int       `json:"days_to_expiry"`
	Status       string    `json:"status"` // "valid", "warning", "critical", "expired"
}

// GetCertificateInfo reads the client certificate and reports its validity window.
// It returns nil when no client certificate is configured.
func (c *KafkaConfig) GetCertificateInfo() (*CertificateInfo, error) {
	if !c.HasCertificate() {
		return nil, nil
	}

	certPEM, err := os.ReadFile(c.TLS.CertFile)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, nil // Not a valid PEM format
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	daysToExpiry := int(time.Until(cert.NotAfter).Hours() / 24)

	status := "valid"
	if now.After(cert.NotAfter) {
		status = "expired"
	} else if daysToExpiry <= 7 {
		status = "critical"
	} else if daysToExpiry <= 30 {
		status = "warning"
	}

	return &CertificateInfo{
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		DaysToExpiry: daysToExpiry,
		Status:       status,
	}, nil
}

// HasCertificate returns true if the Kafka connection uses certificate-based authentication
func (c *KafkaConfig) HasCertificate() bool {
	return c.TLS != nil && c.TLS.Enabled && c.TLS.CertFile != ""
}
