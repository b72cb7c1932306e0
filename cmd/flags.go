package cmd

import (
	"strings"

	"github.com/OliveiraNt/kviz/internal/config"
	"github.com/spf13/pflag"
)

// Flags holds command line overrides. Only flags explicitly set on the
// command line override the configuration file.
type Flags struct {
	ConfigPath   string
	Zookeeper    string
	Kafka        string
	Port         int
	Environment  string
	MaxMessages  int
	changedFlags map[string]bool
}

// ParseFlags parses args (without the program name). It returns
// pflag.ErrHelp when help was requested.
func ParseFlags(args []string) (Flags, *pflag.FlagSet, error) {
	var f Flags
	fs := pflag.NewFlagSet("kviz", pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to the YAML configuration file")
	fs.StringVar(&f.Zookeeper, "zookeeper", "", "comma separated ZooKeeper servers (host:port)")
	fs.StringVar(&f.Kafka, "kafka", "", "comma separated Kafka bootstrap brokers; enables message sampling")
	fs.IntVarP(&f.Port, "port", "p", config.DefaultHTTPPort, "HTTP listen port")
	fs.StringVar(&f.Environment, "environment", "", "environment name reported by /api/environment")
	fs.IntVar(&f.MaxMessages, "max-topic-messages", config.DefaultMaxMessagesPerTopic, "messages kept per sampled topic")

	if err := fs.Parse(args); err != nil {
		return f, fs, err
	}
	f.changedFlags = map[string]bool{}
	fs.Visit(func(fl *pflag.Flag) { f.changedFlags[fl.Name] = true })
	return f, fs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Apply overrides cfg with every flag that was set.
func (f Flags) Apply(cfg *config.Config) {
	if f.changedFlags["zookeeper"] {
		cfg.Zookeeper.Servers = splitList(f.Zookeeper)
	}
	if f.changedFlags["kafka"] {
		cfg.Kafka.Brokers = splitList(f.Kafka)
	}
	if f.changedFlags["port"] {
		cfg.HTTP.Port = f.Port
	}
	if f.changedFlags["environment"] {
		cfg.Environment = f.Environment
	}
	if f.changedFlags["max-topic-messages"] {
		cfg.Sampler.MaxMessagesPerTopic = f.MaxMessages
	}
}

// LoadConfig reads path (when not empty), applies flag overrides and
// defaults, and validates the result.
func LoadConfig(path string, f Flags) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		var err error
		cfg, err = config.ReadConfig(path)
		if err != nil {
			return cfg, err
		}
	}
	f.Apply(&cfg)
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}
