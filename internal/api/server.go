// Package api exposes the REST and WebSocket surface of the ordering
// service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tableserve/internal/logging"
	"tableserve/internal/notifier"
)

var logger = logging.With("api")

// Pinger is the health-check view of the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	orders   OrderService
	hub      *notifier.Hub
	auth     Authenticator
	pinger   Pinger
	upgrader websocket.Upgrader

	srv *http.Server
}

func NewServer(addr string, orders OrderService, hub *notifier.Hub, auth Authenticator, pinger Pinger) *Server {
	s := &Server{
		orders: orders,
		hub:    hub,
		auth:   auth,
		pinger: pinger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The ordering page and the API are same-origin in production;
			// the QR flow serves both from this process.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders/{orderID}", s.handleGetOrder)
		r.Get("/restaurants/{restaurantID}/tables/{table}/orders", s.handleListByTable)

		r.Group(func(r chi.Router) {
			r.Use(s.requireStaff)
			r.Patch("/orders/{orderID}/status", s.handleTransition)
			r.Get("/restaurants/{restaurantID}/orders", s.handleListByRestaurant)
		})
	})

	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is done or the listener fails, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	logger.Info().Msg("http server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
