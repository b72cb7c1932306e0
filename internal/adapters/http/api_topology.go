package httpserver

import (
	"net/http"

	"github.com/OliveiraNt/kviz/internal/domain"
)

type brokersResponse struct {
	Version uint64          `json:"version"`
	Brokers []domain.Broker `json:"brokers"`
}

type topicsResponse struct {
	Version uint64         `json:"version"`
	Topics  []domain.Topic `json:"topics"`
}

func (s *Server) apiBrokers(w http.ResponseWriter, r *http.Request) {
	since, wait, err := pollParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, ok := longPoll(r, wait, s.topology.BrokersChanged, func() (domain.BrokerSnapshot, bool) {
		return s.topology.Brokers(since)
	})
	if !ok {
		notModified(w)
		return
	}
	writeJSON(w, http.StatusOK, brokersResponse{Version: snap.Version, Brokers: snap.Values})
}

func (s *Server) apiTopics(w http.ResponseWriter, r *http.Request) {
	since, wait, err := pollParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, ok := longPoll(r, wait, s.topology.TopicsChanged, func() (domain.TopicSnapshot, bool) {
		return s.topology.Topics(since)
	})
	if !ok {
		notModified(w)
		return
	}
	writeJSON(w, http.StatusOK, topicsResponse{Version: snap.Version, Topics: snap.Values})
}

func (s *Server) apiEnvironment(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"environment": s.environment})
}

func (s *Server) apiHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	state := "ok"
	if !s.topology.Ready() {
		status = http.StatusServiceUnavailable
		state = "starting"
	}
	writeJSON(w, status, map[string]any{
		"status":  state,
		"sampler": s.topicData.Enabled(),
	})
}
