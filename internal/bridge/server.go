// Package bridge exposes the desk over a small local HTTP API so scripts and
// line systems can read orders and the activity log or trigger a release run.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

// ProtocolVersion is reported by /health.
const ProtocolVersion = 1

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrDisabled is returned by Start when the bridge is switched off.
var ErrDisabled = errors.New("bridge: server disabled")

// Logger is the minimal sink the server writes lifecycle lines to.
type Logger interface {
	Printf(format string, args ...any)
}

// Releaser starts runs and reports on them.
type Releaser interface {
	Start(ctx context.Context, req release.Request) (release.Handle, error)
	LastRun() (release.Summary, bool)
	State() string
}

// Verifier checks basic-auth credentials.
type Verifier interface {
	Verify(username, password string) bool
}

// Deps are the collaborators the handlers read from.
type Deps struct {
	Store     *order.Store
	Selection *order.Selection
	Log       *activity.Log
	Releaser  Releaser
	Auth      Verifier
	// Mode returns the configured release mode used when a request omits one.
	Mode    func() release.Mode
	Metrics http.Handler
}

// Server wraps the HTTP listener and handlers backing the bridge.
type Server struct {
	settings Settings
	deps     Deps
	logger   Logger
	clock    func() time.Time
	limiter  *clientLimiter

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
	runCtx    context.Context
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bridge server using the provided settings.
func NewServer(settings Settings, deps Deps, opts ...Option) (*Server, error) {
	if deps.Store == nil || deps.Selection == nil || deps.Log == nil {
		return nil, fmt.Errorf("bridge: store, selection and log are required")
	}
	if deps.Releaser == nil {
		return nil, fmt.Errorf("bridge: releaser is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("bridge: verifier is required")
	}
	if deps.Mode == nil {
		deps.Mode = func() release.Mode { return release.ModeIdenticalBatches }
	}
	settings.normalize()
	s := &Server{
		settings: settings,
		deps:     deps,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.limiter = newClientLimiter(settings.RequestsPerSecond, settings.Burst, s.clock)
	return s, nil
}

// Handler returns the routed, rate limited handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/orders", s.handleOrders)
	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/runs/last", s.handleLastRun)
	mux.HandleFunc("/release", s.handleRelease)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics)
	}
	return s.limiter.middleware(mux)
}

// Start binds the TCP listener and begins serving HTTP traffic. Runs
// triggered over HTTP inherit ctx, so cancelling it stops them between orders.
func (s *Server) Start(ctx context.Context) error {
	if !s.settings.Enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("bridge: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge: listen %s: %w", addr, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.listener = listener
	s.startTime = s.clock()
	s.runCtx = ctx
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("bridge: serve error: %v", err)
		}
	}()
	s.logger.Printf("bridge: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	s.logger.Printf("bridge: stopped")
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runCtx
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
