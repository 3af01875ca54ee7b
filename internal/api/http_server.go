package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/domain"
	"tablebook/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer is a thin data-record surface over the scheduling engine.
type HTTPServer struct {
	cfg       config.APIConfig
	scheduler domain.SchedulerService
	finder    domain.FinderService
	checkin   domain.CheckinService
	waitlist  domain.WaitlistService
	store     domain.Store
	server    *http.Server
	auth      *HTTPAuth
	logger    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, scheduler domain.SchedulerService, finder domain.FinderService, checkin domain.CheckinService, waitlist domain.WaitlistService, store domain.Store, logger *zerolog.Logger) *HTTPServer {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:       cfg,
		scheduler: scheduler,
		finder:    finder,
		checkin:   checkin,
		waitlist:  waitlist,
		store:     store,
		auth:      NewHTTPAuth(cfg),
		logger:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/reservations", srv.handleCreateReservation)
	mux.HandleFunc("POST /api/v1/reservations/{code}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/v1/reservations/{code}/finish", srv.handleFinish)
	mux.HandleFunc("POST /api/v1/reservations/{code}/checkin", srv.handleCheckin)
	mux.HandleFunc("GET /api/v1/reservations/{code}", srv.handleGetReservation)
	mux.HandleFunc("GET /api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("POST /api/v1/waitlist", srv.handleJoinWaitlist)
	mux.HandleFunc("POST /api/v1/waitlist/{code}/confirm", srv.handleConfirmArrival)
	mux.HandleFunc("POST /api/v1/waitlist/{code}/leave", srv.handleLeaveWaitlist)
	mux.HandleFunc("GET /api/v1/tables", srv.handleTables)
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler exposes the composed handler chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("x-request-id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("x-request-id", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
