package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/knxip-core/internal/gatewaystore"
	"github.com/nerrad567/knxip-core/internal/infrastructure/config"
	"github.com/nerrad567/knxip-core/internal/mqttbridge"
)

// Logger is the structured logging interface this package accepts,
// the same shape every knx/* package and internal/mqttbridge use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// CoreStats is the subset of a knx/routing.Connection or
// knx/tunnel.Connection's Stats accessor this server exposes. main
// adapts whichever connection mode is active to this common shape,
// since routing.Stats and tunnel.Stats are distinct concrete types.
type CoreStats struct {
	TelegramsTx  uint64    `json:"telegrams_tx"`
	TelegramsRx  uint64    `json:"telegrams_rx"`
	ErrorsTotal  uint64    `json:"errors_total"`
	LastActivity time.Time `json:"last_activity"`
	Connected    bool      `json:"connected"`
}

// Core is the live KNXnet/IP connection this server reports on.
type Core interface {
	Stats() CoreStats
}

// GatewayLister is the subset of internal/gatewaystore.Store the
// /discovery endpoint depends on.
type GatewayLister interface {
	ListGateways(ctx context.Context) ([]gatewaystore.Record, error)
}

// SessionAuditor is the subset of internal/gatewaystore.Store the
// /admin/sessions endpoint depends on.
type SessionAuditor interface {
	RecentSessions(ctx context.Context, gatewayIP string, gatewayPort, limit int) ([]gatewaystore.SessionAudit, error)
}

// BridgeStats is the subset of internal/mqttbridge.Bridge the
// /metrics endpoint depends on.
type BridgeStats interface {
	Stats() mqttbridge.Stats
}

// Deps wires the server's optional collaborators. Core, Bridge, and
// Store may be nil — the corresponding endpoint reports an empty or
// degraded result rather than failing the whole server, since a
// gateway process may run any subset of these (e.g. routing mode with
// no sqlite store configured).
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   Logger
	Version  string

	Core   Core
	Bridge BridgeStats
	Store  GatewayLister
	Audit  SessionAuditor

	// Reload is invoked by the JWT-protected /admin/reload endpoint.
	// A nil Reload makes that endpoint always report 501.
	Reload func(ctx context.Context) error
}

// Server is the gateway's admin/status HTTP surface: health, discovery
// results, metrics, a JWT-protected reload trigger, and a websocket
// streaming decoded telegrams, per SPEC_FULL.md §2.
type Server struct {
	cfg     config.APIConfig
	ws      config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  Logger
	version string

	core   Core
	bridge BridgeStats
	store  GatewayLister
	audit  SessionAuditor
	reload func(ctx context.Context) error

	rateLimiter *rateLimiter
	hub         *telegramHub

	httpServer *http.Server
}

// New builds a Server from its dependencies. It does not start
// listening — call Start for that.
func New(deps Deps) (*Server, error) {
	if deps.Config.Port == 0 {
		return nil, errors.New("httpapi: config.Port must be set")
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}

	s := &Server{
		cfg:     deps.Config,
		ws:      deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		version: deps.Version,
		core:    deps.Core,
		bridge:  deps.Bridge,
		store:   deps.Store,
		audit:   deps.Audit,
		reload:  deps.Reload,
		hub:     newTelegramHub(),
	}

	if deps.Security.RateLimit.Enabled {
		s.rateLimiter = newRateLimiter()
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port),
		Handler:      s.routes(),
		ReadTimeout:  durationOrDefault(deps.Config.Timeouts.Read, 30*time.Second),
		WriteTimeout: durationOrDefault(deps.Config.Timeouts.Write, 30*time.Second),
		IdleTimeout:  durationOrDefault(deps.Config.Timeouts.Idle, 60*time.Second),
	}

	return s, nil
}

// Start begins listening in the background and begins watching ctx
// for cancellation. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	if s.rateLimiter != nil {
		go s.rateLimiter.cleanupLoop(ctx, rateLimitWindow)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			//nolint:errcheck // best-effort graceful shutdown on context cancellation
			s.httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			s.logger.Error("httpapi: listener failed", "error", err)
		}
	}()

	s.logger.Info("httpapi: listening", "addr", s.httpServer.Addr)
	return nil
}

// Close shuts the server down, closing any open websocket connections.
func (s *Server) Close() error {
	s.hub.closeAll()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx) //nolint:wrapcheck // thin pass-through
}

// BroadcastTelegram pushes a decoded telegram to every connected
// websocket client. Wire this as the core connection's observer hook.
func (s *Server) BroadcastTelegram(v any) {
	s.hub.broadcast(v)
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
