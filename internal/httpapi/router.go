package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/knxip-core/internal/infrastructure/config"
)

// routes assembles the chi router and middleware stack, mirroring the
// teacher's requestID -> logging -> recovery -> security-headers ->
// CORS -> body-limit chain, with rate limiting and JWT auth applied
// only to the routes that need them.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/discovery", s.handleDiscovery)
	r.Get("/metrics", s.handleMetrics)
	r.Get(wsPathOrDefault(s.ws.Path), s.handleWebsocket)

	r.Group(func(protected chi.Router) {
		if s.secCfg.RateLimit.Enabled {
			protected.Use(s.rateLimitMiddleware(s.secCfg.RateLimit.RequestsPerMinute, time.Minute))
		}
		protected.Use(s.authMiddleware)
		protected.Post("/admin/reload", s.handleAdminReload)
		protected.Get("/admin/sessions", s.handleAdminSessions)
	})

	return r
}

func wsPathOrDefault(path string) string {
	if path == "" {
		return "/ws"
	}
	return path
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime,omitempty"`
	Connected bool   `json:"core_connected"`
}

var startedAt = time.Now()

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := false
	if s.core != nil {
		connected = s.core.Stats().Connected
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    time.Since(startedAt).Round(time.Second).String(),
		Connected: connected,
	})
}

// gatewayView is the JSON-friendly projection of a gatewaystore.Record
// — address.Individual and net.IP marshal as empty objects otherwise,
// since their fields are unexported.
type gatewayView struct {
	IP                   string    `json:"ip"`
	Port                 uint16    `json:"port"`
	Name                 string    `json:"name"`
	IndividualAddress    string    `json:"individual_address"`
	SupportsTunneling    bool      `json:"supports_tunneling"`
	SupportsRouting      bool      `json:"supports_routing"`
	SupportsSecureWrap   bool      `json:"supports_secure_wrap"`
	SupportsSecureTunnel bool      `json:"supports_secure_tunnel"`
	FirstSeenAt          time.Time `json:"first_seen_at"`
	LastSeenAt           time.Time `json:"last_seen_at"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []gatewayView{})
		return
	}

	records, err := s.store.ListGateways(r.Context())
	if err != nil {
		s.logger.Error("httpapi: listing gateways failed", "error", err)
		writeInternalError(w, "listing gateways failed")
		return
	}

	views := make([]gatewayView, 0, len(records))
	for _, rec := range records {
		views = append(views, gatewayView{
			IP:                   rec.IP.String(),
			Port:                 rec.Port,
			Name:                 rec.Name,
			IndividualAddress:    rec.IndividualAddress.String(),
			SupportsTunneling:    rec.SupportsTunneling,
			SupportsRouting:      rec.SupportsRouting,
			SupportsSecureWrap:   rec.SupportsSecureWrap,
			SupportsSecureTunnel: rec.SupportsSecureTunnel,
			FirstSeenAt:          rec.FirstSeenAt,
			LastSeenAt:           rec.LastSeenAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type metricsResponse struct {
	Core   *CoreStats       `json:"core,omitempty"`
	Bridge *mqttBridgeStats `json:"mqtt,omitempty"`
}

type mqttBridgeStats struct {
	Connected     bool   `json:"connected"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	TelegramsRx   uint64 `json:"telegrams_rx"`
	TelegramsTx   uint64 `json:"telegrams_tx"`
	ErrorsTotal   uint64 `json:"errors_total"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var resp metricsResponse
	if s.core != nil {
		st := s.core.Stats()
		resp.Core = &st
	}
	if s.bridge != nil {
		bs := s.bridge.Stats()
		resp.Bridge = &mqttBridgeStats{
			Connected:     bs.Connected,
			UptimeSeconds: bs.UptimeSeconds,
			TelegramsRx:   bs.TelegramsRx,
			TelegramsTx:   bs.TelegramsTx,
			ErrorsTotal:   bs.ErrorsTotal,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// sessionAuditView is the JSON-friendly projection of a
// gatewaystore.SessionAudit record.
type sessionAuditView struct {
	ID          int64      `json:"id"`
	GatewayIP   string     `json:"gateway_ip"`
	GatewayPort int        `json:"gateway_port"`
	SessionID   uint16     `json:"session_id"`
	UserID      uint8      `json:"user_id"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

// handleAdminSessions lists recent Secure session audit records for
// one gateway, identified by the gateway_ip and gateway_port query
// parameters.
func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []sessionAuditView{})
		return
	}

	gatewayIP := r.URL.Query().Get("gateway_ip")
	if gatewayIP == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "gateway_ip query parameter is required")
		return
	}
	gatewayPort, err := strconv.Atoi(r.URL.Query().Get("gateway_port"))
	if err != nil || gatewayPort <= 0 || gatewayPort > 65535 {
		writeError(w, http.StatusBadRequest, "bad_request", "gateway_port query parameter must be a valid port")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.audit.RecentSessions(r.Context(), gatewayIP, gatewayPort, limit)
	if err != nil {
		s.logger.Error("httpapi: listing session audit failed", "error", err)
		writeInternalError(w, "listing sessions failed")
		return
	}

	views := make([]sessionAuditView, 0, len(records))
	for _, rec := range records {
		views = append(views, sessionAuditView{
			ID:          rec.ID,
			GatewayIP:   rec.GatewayIP,
			GatewayPort: rec.GatewayPort,
			SessionID:   rec.SessionID,
			UserID:      rec.UserID,
			OpenedAt:    rec.OpenedAt,
			ClosedAt:    rec.ClosedAt,
			CloseReason: rec.CloseReason,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAdminReload(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "reload is not configured")
		return
	}
	if err := s.reload(r.Context()); err != nil {
		s.logger.Error("httpapi: reload failed", "error", err)
		writeInternalError(w, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and registers it with the
// telegram hub until the client disconnects. There is no inbound
// message handling — this is a server-push stream of decoded
// telegrams, not a command channel (commands go through
// internal/mqttbridge or the reload endpoint).
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("httpapi: websocket upgrade failed", "error", err)
		return
	}
	s.hub.serve(conn, s.ws)
}

// telegramHub fans out broadcast() calls to every connected websocket
// client via a per-client buffered channel, so one slow reader never
// blocks another or the telegram-delivery path that calls broadcast.
type telegramHub struct {
	register   chan *hubClient
	unregister chan *hubClient
	broadcastC chan []byte
	done       chan struct{}
	doneOnce   chan struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

const hubClientBuffer = 32

func newTelegramHub() *telegramHub {
	h := &telegramHub{
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcastC: make(chan []byte, 256),
		done:       make(chan struct{}),
		doneOnce:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *telegramHub) run() {
	clients := make(map[*hubClient]struct{})
	defer close(h.doneOnce)
	for {
		select {
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case msg := <-h.broadcastC:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// slow client; drop rather than block the hub
				}
			}
		case <-h.done:
			for c := range clients {
				close(c.send)
				//nolint:errcheck // best-effort close on shutdown
				c.conn.Close()
			}
			return
		}
	}
}

func (h *telegramHub) broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcastC <- payload:
	default:
		// hub itself is backed up; drop rather than block the caller
	}
}

func (h *telegramHub) serve(conn *websocket.Conn, cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := time.Duration(cfg.PongTimeout) * time.Second
	if pongTimeout <= 0 {
		pongTimeout = 10 * time.Second
	}
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}

	//nolint:errcheck // best-effort deadline reset on pong
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))
	})

	c := &hubClient{conn: conn, send: make(chan []byte, hubClientBuffer)}
	h.register <- c

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-c.send:
				if !ok {
					//nolint:errcheck // connection is going away regardless
					conn.Close()
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					//nolint:errcheck // connection is going away regardless
					conn.Close()
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					//nolint:errcheck // connection is going away regardless
					conn.Close()
					return
				}
			}
		}
	}()

	// Drain and discard inbound messages so pings/pongs are serviced
	// and the read loop notices a closed connection, then unregister.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister <- c
}

func (h *telegramHub) closeAll() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	<-h.doneOnce
}
