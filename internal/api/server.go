// Package api exposes the query service and the reconciler over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dyluth/discgraph/internal/query"
	"github.com/dyluth/discgraph/internal/reconciler"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// UserIDHeader names the contributor of an uploaded discriminator.
const UserIDHeader = "user_id"

// Pinger reports backing store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the HTTP API.
type Server struct {
	svc        *query.Service
	reconciler *reconciler.Reconciler
	store      Pinger
	logger     *zap.Logger

	// pollCtx parents pollers started from requests, so they outlive the request.
	pollCtx context.Context

	router *mux.Router
	server *http.Server
}

// NewServer builds the router. reconciler may be nil, in which case uploads do not
// start pollers and the poller routes answer 503.
func NewServer(svc *query.Service, rec *reconciler.Reconciler, store Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		svc:        svc,
		reconciler: rec,
		store:      store,
		logger:     logger.Named("api"),
		pollCtx:    context.Background(),
	}

	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/query_discriminators/{program_id}", s.handleQueryDiscriminators).Methods(http.MethodGet)
	r.HandleFunc("/upload_discriminator/{program_id}", s.handleUploadDiscriminator).Methods(http.MethodPost)
	r.HandleFunc("/query_instructions/{discriminator_id}", s.handleQueryInstructions).Methods(http.MethodGet)
	r.HandleFunc("/programs", s.handleListPrograms).Methods(http.MethodGet)
	r.HandleFunc("/programs/{program_id}/poller", s.handleStopPoller).Methods(http.MethodDelete)
	r.HandleFunc("/pollers", s.handleListPollers).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr in the background. Pollers started by uploads are
// parented to ctx.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.pollCtx = ctx
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed",
				zap.String("event", "http_server_failed"),
				zap.String("addr", addr),
				zap.Error(err))
		}
	}()

	s.logger.Info("http server listening",
		zap.String("event", "http_listening"),
		zap.String("addr", addr))
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			zap.String("event", "http_request"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", w.Header().Get(RequestIDHeader)),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()))
	})
}
