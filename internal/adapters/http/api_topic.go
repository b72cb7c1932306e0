package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/OliveiraNt/kviz/internal/application"
	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/utils"

	"github.com/go-chi/chi/v5"
)

type messageView struct {
	Key       string    `json:"key,omitempty"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
}

type topicMessagesResponse struct {
	Topic    string        `json:"topic"`
	Version  uint64        `json:"version"`
	Messages []messageView `json:"messages"`
}

type writeMessageRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func toMessagesResponse(tm domain.TopicMessages) topicMessagesResponse {
	out := topicMessagesResponse{Topic: tm.Topic, Version: tm.Version, Messages: make([]messageView, 0, len(tm.Messages))}
	for _, m := range tm.Messages {
		out.Messages = append(out.Messages, messageView{
			Key:       string(m.Key),
			Value:     string(m.Value),
			Timestamp: m.Timestamp,
			Partition: m.Partition,
			Offset:    m.Offset,
		})
	}
	return out
}

func (s *Server) apiTopicMessages(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topicName")
	since, wait, err := pollParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var readErr error
	window, ok := longPoll(r, wait, s.topicData.Changed, func() (domain.TopicMessages, bool) {
		tm, changed, err := s.topicData.Messages(topicName, since)
		if err != nil {
			readErr = err
			return tm, true
		}
		return tm, changed
	})
	if readErr != nil {
		if mapErrorToHTTPStatus(readErr) == http.StatusInternalServerError {
			utils.Logger.Error("api read topic messages failed", "topic", topicName, "err", readErr)
		}
		writeError(w, readErr)
		return
	}
	if !ok {
		notModified(w)
		return
	}
	writeJSON(w, http.StatusOK, toMessagesResponse(window))
}

func (s *Server) apiWriteMessage(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topicName")

	var req writeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Logger.Warn("api write message bad request", "topic", topicName, "err", err)
		writeError(w, application.ErrInvalidMessage)
		return
	}

	msg := domain.Message{Value: []byte(req.Value), Timestamp: time.Now()}
	if req.Key != "" {
		msg.Key = []byte(req.Key)
	}
	if err := s.topicData.Publish(r.Context(), topicName, msg); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
