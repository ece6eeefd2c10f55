// Package server implements the accept loop (C12): one HTTP listener, an
// admission-control gate in front of the websocket-heavy route, and a
// graceful shutdown that drains outstanding requests before the listener
// closes (spec.md §4.12), following the teacher's Server.Start/Shutdown
// lifecycle split.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/anarthal/servertech-chat-sub000/internal/dbpool"
	"github.com/anarthal/servertech-chat-sub000/internal/metrics"
	"github.com/anarthal/servertech-chat-sub000/internal/ratelimit"
	"github.com/anarthal/servertech-chat-sub000/internal/resourceguard"
)

// Config names the accept-loop's own tunables, separate from the
// application handler it wraps.
type Config struct {
	Address       string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	ShutdownGrace time.Duration
}

// DefaultConfig mirrors the teacher's http.Server timeouts.
func DefaultConfig(address string) Config {
	return Config{
		Address:       address,
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		IdleTimeout:   120 * time.Second,
		ShutdownGrace: 30 * time.Second,
	}
}

// Server wraps an http.Server with admission control and a /metrics route,
// and flips a shutdown flag new requests check before reaching the handler.
type Server struct {
	cfg     Config
	guard   *resourceguard.Guard
	limiter *ratelimit.Limiter
	pool    *dbpool.Pool
	logger  zerolog.Logger
	http    *http.Server

	shuttingDown int32
}

// New wraps handler with the admission-control gate and builds the
// underlying http.Server. pool and limiter may be nil if the deployment has
// no relational store or rate limiting wired up yet (e.g. in tests).
func New(cfg Config, handler http.Handler, guard *resourceguard.Guard, limiter *ratelimit.Limiter, pool *dbpool.Pool, logger zerolog.Logger) *Server {
	s := &Server{cfg: cfg, guard: guard, limiter: limiter, pool: pool, logger: logger.With().Str("component", "server").Logger()}

	mux := http.NewServeMux()
	mux.Handle("/", s.wrapAdmission(handler))
	mux.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// wrapAdmission rejects requests with 503 while shutting down or while the
// resource guard says the server is overloaded, rejects websocket upgrades
// over the rate limit with 429, and otherwise counts each upgraded
// connection in the guard (and the connection metrics) for as long as its
// handler runs. Draining on shutdown is left to http.Server.Shutdown.
func (s *Server) wrapAdmission(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&s.shuttingDown) == 1 {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		if s.guard != nil {
			if accept, reason := s.guard.ShouldAccept(); !accept {
				metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
				http.Error(w, "server overloaded", http.StatusServiceUnavailable)
				return
			}
		}

		isUpgrade := isWebsocketUpgrade(r)
		if isUpgrade && s.limiter != nil && !s.limiter.Allow(clientIP(r)) {
			metrics.ConnectionsRejected.WithLabelValues("rate_limited").Inc()
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}

		if isUpgrade && s.guard != nil {
			s.guard.IncConnections()
			defer s.guard.DecConnections()
			metrics.ConnectionsTotal.Inc()
			metrics.ConnectionsActive.Inc()
			defer metrics.ConnectionsActive.Dec()
		}

		next.ServeHTTP(w, r)
	})
}

func isWebsocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != "" && r.Header.Get("Connection") != ""
}

// clientIP extracts the request's remote IP, preferring X-Forwarded-For's
// first hop when present (deployments behind a load balancer), falling back
// to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Run starts the listener and blocks until ctx is cancelled, then drains
// and shuts down gracefully. It returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	s.logger.Info().Str("address", s.cfg.Address).Msg("server listening")

	if s.pool != nil {
		go s.sampleDBPoolMetrics(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) sampleDBPoolMetrics(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.pool.Stats()
			metrics.DBPoolNodes.Set(float64(stats.NumNodes))
			metrics.DBPoolIdle.Set(float64(stats.Idle))
		}
	}
}

// shutdown rejects new work, waits up to ShutdownGrace for in-flight
// requests to drain, then force-closes the listener via http.Server.Close.
func (s *Server) shutdown() error {
	s.logger.Info().Msg("initiating graceful shutdown")
	atomic.StoreInt32(&s.shuttingDown, 1)
	if s.limiter != nil {
		s.limiter.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("grace period expired, forcing remaining connections closed")
		return s.http.Close()
	}
	s.logger.Info().Msg("graceful shutdown completed")
	return nil
}
