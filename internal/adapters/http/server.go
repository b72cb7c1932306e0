// Package httpserver exposes the tracked topology, sampled messages and
// consumer groups as a JSON API with websocket push.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/OliveiraNt/kviz/internal/application"
	"github.com/OliveiraNt/kviz/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server provides the HTTP API endpoints for kviz.
type Server struct {
	topology    *application.TopologyService
	topicData   *application.TopicDataService
	groups      *application.ConsumerGroupsService
	environment string

	srv *http.Server
}

// New creates a new HTTP server instance. The listener is bound by Run.
func New(topology *application.TopologyService, topicData *application.TopicDataService, groups *application.ConsumerGroupsService, environment string) *Server {
	s := &Server{
		topology:    topology,
		topicData:   topicData,
		groups:      groups,
		environment: environment,
	}
	s.srv = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		utils.Logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/brokers", s.apiBrokers)
		r.Get("/topics", s.apiTopics)
		r.Get("/topics/{topicName}/messages", s.apiTopicMessages)
		r.Post("/topics/{topicName}/messages", s.apiWriteMessage)
		r.Get("/consumer-groups", s.apiListConsumerGroups)
		r.Get("/environment", s.apiEnvironment)
		r.Get("/health", s.apiHealth)
		r.Get("/ws", s.wsTopology)
	})
	return r
}

// Run listens on addr and serves until Shutdown. It returns nil when the
// server was shut down, including a Shutdown that happened before Run.
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	utils.Logger.Info("HTTP server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. A later Run returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
