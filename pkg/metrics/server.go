package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckFunc reports whether a dependency of the engine is usable. It is
// called on every readiness probe.
type CheckFunc func(ctx context.Context) error

// Server is the HTTP endpoint of a running engine.
//
// Routes:
//   - GET /metrics: Prometheus metrics (503 when collection is disabled)
//   - GET /healthz: liveness, always 200 while the process serves requests
//   - GET /readyz: runs every registered check; 200 when all pass, 503
//     with one line per failing check otherwise
type Server struct {
	server       *http.Server
	port         int
	checkTimeout time.Duration
	stopTimeout  time.Duration
	shutdownOnce sync.Once

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on (default: 9090)
	Port int

	// CheckTimeout bounds a whole readiness probe (default: 2s)
	CheckTimeout time.Duration

	// ShutdownTimeout bounds the graceful stop once Start's context is
	// cancelled (default: 5s)
	ShutdownTimeout time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 9090
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 2 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// NewServer creates a stopped server. Register readiness checks with
// AddCheck, then call Start.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	s := &Server{
		port:         config.Port,
		checkTimeout: config.CheckTimeout,
		stopTimeout:  config.ShutdownTimeout,
		checks:       make(map[string]CheckFunc),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// AddCheck registers a readiness check under name, replacing any check
// with the same name.
func (s *Server) AddCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// Handler returns the request router. It is what Start serves.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if registry := GetRegistry(); IsEnabled() && registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", s.handleReady)
	return mux
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(s.checks))
	for name, fn := range s.checks {
		checks[name] = fn
	}
	s.mu.RUnlock()
	sort.Strings(names)

	var failures []string
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	if len(failures) > 0 {
		logger.Warn("Readiness check failed: %v", failures)
		w.WriteHeader(http.StatusServiceUnavailable)
		for _, f := range failures {
			_, _ = fmt.Fprintln(w, f)
		}
		return
	}
	_, _ = fmt.Fprintln(w, "ready")
}

// Start serves until ctx is cancelled, then stops gracefully.
//
// Returns:
//   - nil after a graceful stop
//   - error if the listener fails or the stop times out
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// ctx is already cancelled: shut down on a fresh deadline
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
