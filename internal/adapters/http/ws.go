package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	// The API is read-mostly and served to dashboards on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Kind    string `json:"kind"`
	Version uint64 `json:"version"`
	Values  any    `json:"values"`
}

// wsTopology upgrades to WebSocket and pushes the broker and topic snapshots
// whenever either changes. The first frames carry the current state.
func (s *Server) wsTopology(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		utils.Logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				utils.Logger.Debug("websocket client disconnected", "err", err)
				return
			}
		}
	}()

	send := func(ev wsEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			utils.Logger.Info("websocket write failed, stopping push", "kind", ev.Kind, "err", err)
			return false
		}
		return true
	}

	var brokersSeen, topicsSeen uint64
	pushBrokers := func() bool {
		snap, ok := s.topology.Brokers(brokersSeen)
		if !ok {
			return true
		}
		brokersSeen = snap.Version
		return send(wsEvent{Kind: "brokers", Version: snap.Version, Values: snap.Values})
	}
	pushTopics := func() bool {
		snap, ok := s.topology.Topics(topicsSeen)
		if !ok {
			return true
		}
		topicsSeen = snap.Version
		return send(wsEvent{Kind: "topics", Version: snap.Version, Values: snap.Values})
	}

	brokersChanged := s.topology.BrokersChanged()
	topicsChanged := s.topology.TopicsChanged()
	if !pushBrokers() || !pushTopics() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-brokersChanged:
			brokersChanged = s.topology.BrokersChanged()
			if !pushBrokers() {
				return
			}
		case <-topicsChanged:
			topicsChanged = s.topology.TopicsChanged()
			if !pushTopics() {
				return
			}
		}
	}
}
