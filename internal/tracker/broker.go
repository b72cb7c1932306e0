package tracker

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/pkg/errors"
)

// BrokerTracker mirrors /brokers/ids.
type BrokerTracker = Tracker[domain.Broker]

// NewBrokerTracker creates a tracker over the broker registrations.
func NewBrokerTracker(coord domain.Coordinator, paths Paths, opts ...Option) *BrokerTracker {
	o := buildOptions(opts)
	return newTracker("broker", coord, paths.Brokers, paths.BrokerIDs, o.ParentWait, nil, brokerFetcher(coord, paths.BrokerIDs))
}

// brokerRegistration is the JSON Kafka writes to /brokers/ids/<id>.
type brokerRegistration struct {
	Host      *string  `json:"host"`
	Port      *int     `json:"port"`
	Endpoints []string `json:"endpoints"`
}

func brokerFetcher(coord domain.Coordinator, idsPath string) Fetcher[domain.Broker] {
	return func(_ context.Context, id string) (domain.Broker, error) {
		data, err := coord.Data(idsPath + "/" + id)
		if err != nil {
			return domain.Broker{}, err
		}
		return parseBroker(id, data)
	}
}

// parseBroker reads host and port, falling back to the first listener endpoint
// when host is null.
func parseBroker(id string, data []byte) (domain.Broker, error) {
	var reg brokerRegistration
	if err := json.Unmarshal(data, &reg); err != nil {
		return domain.Broker{}, errors.Wrapf(err, "decode broker %s", id)
	}
	if reg.Host != nil && *reg.Host != "" {
		if reg.Port == nil {
			return domain.Broker{}, errors.Errorf("broker %s: missing port", id)
		}
		return domain.Broker{ID: id, Host: *reg.Host, Port: *reg.Port}, nil
	}
	for _, ep := range reg.Endpoints {
		host, port, err := parseEndpoint(ep)
		if err != nil {
			continue
		}
		return domain.Broker{ID: id, Host: host, Port: port}, nil
	}
	return domain.Broker{}, errors.Errorf("broker %s: missing host", id)
}

// parseEndpoint splits "PLAINTEXT://host:9092".
func parseEndpoint(ep string) (string, int, error) {
	if i := strings.Index(ep, "://"); i >= 0 {
		ep = ep[i+3:]
	}
	host, portStr, err := net.SplitHostPort(ep)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		return "", 0, errors.Errorf("endpoint %q has no host", ep)
	}
	return host, port, nil
}
