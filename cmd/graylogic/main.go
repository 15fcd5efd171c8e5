// Gray Logic Core - Building Intelligence Platform
//
// This is the main entry point for the Gray Logic Core application.
// Gray Logic is a complete building automation system designed for:
//   - 10-year deployment stability
//   - Offline-first operation (99%+ functionality without internet)
//   - Open standards (KNX, DALI, Modbus)
//   - Zero vendor lock-in
//
// For architecture details, see: docs/architecture/system-overview.md
// For coding standards, see: docs/development/CODING-STANDARDS.md
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/knxip-core/internal/gatewaystore"
	"github.com/nerrad567/knxip-core/internal/httpapi"
	"github.com/nerrad567/knxip-core/internal/infrastructure/config"
	"github.com/nerrad567/knxip-core/internal/infrastructure/database"
	"github.com/nerrad567/knxip-core/internal/infrastructure/logging"
	"github.com/nerrad567/knxip-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/knxip-core/internal/metrics"
	"github.com/nerrad567/knxip-core/internal/mqttbridge"
	_ "github.com/nerrad567/knxip-core/migrations"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/discovery"
	"github.com/nerrad567/knxip-core/knx/routing"
	"github.com/nerrad567/knxip-core/knx/session"
	"github.com/nerrad567/knxip-core/knx/telegram"
	"github.com/nerrad567/knxip-core/knx/tunnel"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// defaultConfigPath is used when GRAYLOGIC_CONFIG is unset.
const defaultConfigPath = "/etc/graylogic/config.yaml"

func main() {
	// Print startup banner
	fmt.Printf("Gray Logic Core %s (%s) built %s\n", version, commit, date)
	fmt.Println("Building Intelligence Platform")
	fmt.Println("---")

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path: the
// GRAYLOGIC_CONFIG environment variable if set, otherwise
// defaultConfigPath.
func getConfigPath() string {
	if v := os.Getenv("GRAYLOGIC_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

// coreConn is the subset of knx/routing.Connection and
// knx/tunnel.Connection's surface the gateway process depends on; both
// satisfy it without adaptation. Connect and Stop have different
// signatures on the two concrete types (routing.Connection.Connect
// takes no context, tunnel.Connection.Disconnect takes one), so those
// are dispatched by type switch in connectCore/stopCore rather than
// folded into this interface.
type coreConn interface {
	Send(ctx context.Context, t telegram.Telegram) error
	SetObserver(f func(telegram.Telegram))
}

// run is the actual application logic, separated from main for
// testability: load configuration, connect every backing service,
// start the KNXnet/IP core, and block until ctx is cancelled, then
// tear everything down in reverse order.
func run(ctx context.Context) error {
	fmt.Println("Starting Gray Logic Core...")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting gateway", "site", cfg.Site.ID, "mode", cfg.KNX.ConnectionMode)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // best-effort close on shutdown

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store, err := gatewaystore.Open(db)
	if err != nil {
		return fmt.Errorf("opening gateway store: %w", err)
	}
	defer store.Close() //nolint:errcheck // best-effort close on shutdown

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	mqttClient.SetLogger(logger)
	defer mqttClient.Close() //nolint:errcheck // best-effort close on shutdown

	var recorder *metrics.Recorder
	if cfg.InfluxDB.Enabled {
		recorder, err = metrics.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		defer recorder.Close() //nolint:errcheck // best-effort close on shutdown
	}

	core, coreStats, err := buildCore(cfg.KNX, logger, store, recorder)
	if err != nil {
		return fmt.Errorf("building knx core: %w", err)
	}

	bridge := mqttbridge.New(mqttClient, core, logger)

	apiServer, err := httpapi.New(httpapi.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   logger,
		Version:  version,
		Core:     coreStatsAdapter{fn: coreStats},
		Bridge:   bridge,
		Store:    store,
		Audit:    store,
		Reload: func(reloadCtx context.Context) error {
			return scanGateways(reloadCtx, store)
		},
	})
	if err != nil {
		return fmt.Errorf("building http api: %w", err)
	}

	core.SetObserver(func(t telegram.Telegram) {
		bridge.HandleTelegram(t)
		if recorder != nil {
			recorder.RecordTelegram(t)
		}
		apiServer.BroadcastTelegram(telegramView{
			Direction:   t.Direction.String(),
			Source:      t.Source.String(),
			Destination: t.Destination.String(),
			APCI:        t.APCI.String(),
		})
	})

	if err := connectCore(ctx, cfg.KNX, core); err != nil {
		return fmt.Errorf("connecting knx core: %w", err)
	}
	defer stopCore(core) //nolint:errcheck // best-effort close on shutdown

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting mqtt bridge: %w", err)
	}

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting http api: %w", err)
	}
	defer apiServer.Close() //nolint:errcheck // best-effort close on shutdown

	fmt.Println("Initialisation complete. Waiting for shutdown signal...")
	<-ctx.Done()
	fmt.Println("\nShutdown signal received. Cleaning up...")

	logger.Info("gateway stopped")
	return nil
}

// telegramView is the JSON-friendly projection of a telegram.Telegram
// streamed to /ws subscribers.
type telegramView struct {
	Direction   string `json:"direction"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	APCI        string `json:"apci"`
}

// coreStatsAdapter lets main supply httpapi.Core without either knx
// connection type importing the httpapi package.
type coreStatsAdapter struct {
	fn func() httpapi.CoreStats
}

func (a coreStatsAdapter) Stats() httpapi.CoreStats { return a.fn() }

// buildCore constructs (but does not connect) the KNXnet/IP core named
// by cfg.ConnectionMode, along with a stats accessor adapted to
// httpapi.CoreStats. store and recorder feed the Secure session audit
// trail and the RoutingBusy metric; both may be nil.
func buildCore(cfg config.KNXConfig, logger *logging.Logger, store *gatewaystore.Store, recorder *metrics.Recorder) (coreConn, func() httpapi.CoreStats, error) {
	switch cfg.ConnectionMode {
	case "", "routing":
		conn, err := buildRouting(cfg, logger, nil, recorder)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() httpapi.CoreStats { return adaptRoutingStats(conn.Stats()) }, nil

	case "secure_routing":
		secure, err := buildRoutingSecure(cfg)
		if err != nil {
			return nil, nil, err
		}
		conn, err := buildRouting(cfg, logger, secure, recorder)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() httpapi.CoreStats { return adaptRoutingStats(conn.Stats()) }, nil

	case "tunnel_udp", "tunnel_tcp":
		conn, err := buildTunnel(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() httpapi.CoreStats { return adaptTunnelStats(conn.Stats()) }, nil

	case "secure_tunnel":
		conn, err := buildSecureTunnel(cfg, logger, store, recorder)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() httpapi.CoreStats { return adaptTunnelStats(conn.Stats()) }, nil

	default:
		return nil, nil, fmt.Errorf("knx.connection_mode %q is not recognised", cfg.ConnectionMode)
	}
}

func buildRouting(cfg config.KNXConfig, logger *logging.Logger, secure *routing.SecureConfig, recorder *metrics.Recorder) (*routing.Connection, error) {
	rc := routing.Config{
		Port:         routing.DefaultMulticastPort,
		Secure:       secure,
		Logger:       logger,
		BusyObserver: recorder.RecordRoutingBusy,
	}
	if cfg.Multicast.Group != "" {
		rc.Group = net.ParseIP(cfg.Multicast.Group)
	}
	if cfg.Multicast.Port != 0 {
		rc.Port = cfg.Multicast.Port
	}
	if cfg.Multicast.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Multicast.Interface)
		if err != nil {
			return nil, fmt.Errorf("resolving knx.multicast.interface %q: %w", cfg.Multicast.Interface, err)
		}
		rc.Interface = iface
	}
	if cfg.IndividualAddress != "" {
		addr, err := address.ParseIndividual(cfg.IndividualAddress)
		if err != nil {
			return nil, fmt.Errorf("parsing knx.individual_address: %w", err)
		}
		rc.LocalAddress = addr
	}
	return routing.New(rc), nil
}

func buildRoutingSecure(cfg config.KNXConfig) (*routing.SecureConfig, error) {
	if cfg.Secure.BackboneKeyHex == "" {
		return nil, fmt.Errorf("knx.secure.backbone_key_hex is required for secure_routing")
	}
	raw, err := hex.DecodeString(cfg.Secure.BackboneKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding knx.secure.backbone_key_hex: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("knx.secure.backbone_key_hex must decode to 16 bytes, got %d", len(raw))
	}
	var key [16]byte
	copy(key[:], raw)

	latency := time.Duration(cfg.LatencyToleranceMS) * time.Millisecond
	return &routing.SecureConfig{BackboneKey: key, Latency: latency}, nil
}

func buildTunnel(cfg config.KNXConfig, logger *logging.Logger) (*tunnel.Connection, error) {
	if cfg.Gateway.Host == "" {
		return nil, fmt.Errorf("knx.gateway.host is required for tunnelling modes")
	}
	gatewayIP, err := resolveIP(cfg.Gateway.Host)
	if err != nil {
		return nil, fmt.Errorf("resolving knx.gateway.host: %w", err)
	}
	port := cfg.Gateway.Port
	if port == 0 {
		port = routing.DefaultMulticastPort
	}

	tc := tunnel.Config{
		Gateway:       net.UDPAddr{IP: gatewayIP, Port: port},
		RouteBack:     cfg.RouteBack,
		AutoReconnect: cfg.AutoReconnect,
		Logger:        logger,
	}
	if cfg.AutoReconnectWaitSeconds > 0 {
		tc.ReconnectWait = time.Duration(cfg.AutoReconnectWaitSeconds) * time.Second
	}
	if cfg.ConnectionMode == "tunnel_tcp" {
		tc.Transport = tunnel.TCP
	}
	if cfg.LocalIP != "" {
		localIP, err := resolveIP(cfg.LocalIP)
		if err != nil {
			return nil, fmt.Errorf("resolving knx.local_ip: %w", err)
		}
		tc.Local = net.UDPAddr{IP: localIP}
	}
	return tunnel.New(tc), nil
}

// auditedSecureChannel wraps a Secure session so each handshake and
// close is recorded to the gateway store's session audit trail and the
// metrics recorder.
type auditedSecureChannel struct {
	*session.Session
	store       *gatewaystore.Store
	recorder    *metrics.Recorder
	log         *logging.Logger
	gatewayIP   string
	gatewayPort int
	userID      uint8
	auditID     int64
}

func (a *auditedSecureChannel) Connect(ctx context.Context) error {
	if err := a.Session.Connect(ctx); err != nil {
		a.recorder.RecordSecureSession(a.gatewayIP, metrics.SecureSessionFailed)
		return err
	}
	a.recorder.RecordSecureSession(a.gatewayIP, metrics.SecureSessionOpened)
	if a.store != nil {
		id, err := a.store.OpenSession(ctx, a.gatewayIP, a.gatewayPort, a.Session.Stats().SessionID, a.userID)
		if err != nil {
			a.log.Warn("secure session audit record failed", "error", err)
		} else {
			a.auditID = id
		}
	}
	return nil
}

func (a *auditedSecureChannel) Close() error {
	err := a.Session.Close()
	a.recorder.RecordSecureSession(a.gatewayIP, metrics.SecureSessionClosed)
	if a.store != nil && a.auditID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := a.store.CloseSession(ctx, a.auditID, "closed"); cerr != nil {
			a.log.Warn("secure session audit close failed", "error", cerr)
		}
	}
	return err
}

// buildSecureTunnel composes knx/tunnel's state machine with
// knx/session's Secure TCP channel: each (re)connect dials a fresh
// session via tunnel.Config.SecureDial, and all tunnelling frames
// travel inside SecureWrappers.
func buildSecureTunnel(cfg config.KNXConfig, logger *logging.Logger, store *gatewaystore.Store, recorder *metrics.Recorder) (*tunnel.Connection, error) {
	if cfg.Gateway.Host == "" {
		return nil, fmt.Errorf("knx.gateway.host is required for tunnelling modes")
	}
	if cfg.Secure.UserPassword == "" {
		return nil, fmt.Errorf("knx.secure.user_password is required for secure_tunnel")
	}
	userID := cfg.Secure.UserID
	if userID == 0 {
		userID = 2 // first configurable tunnelling user
	}
	gatewayIP, err := resolveIP(cfg.Gateway.Host)
	if err != nil {
		return nil, fmt.Errorf("resolving knx.gateway.host: %w", err)
	}
	port := cfg.Gateway.Port
	if port == 0 {
		port = routing.DefaultMulticastPort
	}

	sc := session.Config{
		Gateway:                      net.TCPAddr{IP: gatewayIP, Port: port},
		DeviceAuthenticationPassword: cfg.Secure.DeviceAuthenticationPassword,
		UserID:                       userID,
		UserPassword:                 cfg.Secure.UserPassword,
		Logger:                       logger,
	}

	tc := tunnel.Config{
		Gateway:       net.UDPAddr{IP: gatewayIP, Port: port},
		Transport:     tunnel.TCP,
		AutoReconnect: cfg.AutoReconnect,
		Logger:        logger,
		SecureDial: func() tunnel.SecureChannel {
			return &auditedSecureChannel{
				Session:     session.New(sc),
				store:       store,
				recorder:    recorder,
				log:         logger,
				gatewayIP:   gatewayIP.String(),
				gatewayPort: port,
				userID:      userID,
			}
		},
	}
	if cfg.AutoReconnectWaitSeconds > 0 {
		tc.ReconnectWait = time.Duration(cfg.AutoReconnectWaitSeconds) * time.Second
	}
	return tunnel.New(tc), nil
}

func resolveIP(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses found for %q", host)
	}
	return ips[0], nil
}

// connectCore dispatches to the right Connect signature for the
// concrete core type behind coreConn.
func connectCore(ctx context.Context, cfg config.KNXConfig, core coreConn) error {
	switch c := core.(type) {
	case *routing.Connection:
		return c.Connect() //nolint:wrapcheck // caller adds context
	case *tunnel.Connection:
		return c.Connect(ctx) //nolint:wrapcheck // caller adds context
	default:
		return fmt.Errorf("knx.connection_mode %q: unrecognised core type %T", cfg.ConnectionMode, core)
	}
}

// stopCore dispatches to the right teardown method for the concrete
// core type behind coreConn.
func stopCore(core coreConn) error {
	switch c := core.(type) {
	case *routing.Connection:
		return c.Stop() //nolint:wrapcheck // caller is a deferred best-effort close
	case *tunnel.Connection:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.Disconnect(ctx) //nolint:wrapcheck // caller is a deferred best-effort close
	default:
		return fmt.Errorf("unrecognised core type %T", core)
	}
}

func adaptRoutingStats(s routing.Stats) httpapi.CoreStats {
	return httpapi.CoreStats{
		TelegramsTx:  s.TelegramsTx,
		TelegramsRx:  s.TelegramsRx,
		ErrorsTotal:  s.ErrorsTotal,
		LastActivity: s.LastActivity,
		Connected:    s.Connected,
	}
}

func adaptTunnelStats(s tunnel.Stats) httpapi.CoreStats {
	return httpapi.CoreStats{
		TelegramsTx:  s.TelegramsTx,
		TelegramsRx:  s.TelegramsRx,
		ErrorsTotal:  s.ErrorsTotal,
		LastActivity: s.LastActivity,
		Connected:    s.State == tunnel.StateConnected,
	}
}

// scanGateways runs a discovery.Scan and persists every sighting to
// store; wired to the admin-triggered rescan via httpapi.Deps.Reload.
func scanGateways(ctx context.Context, store *gatewaystore.Store) error {
	results, err := discovery.Scan(ctx, discovery.Config{})
	if err != nil {
		return fmt.Errorf("scanning for gateways: %w", err)
	}
	for _, g := range results {
		if err := store.UpsertGateway(ctx, g); err != nil {
			return fmt.Errorf("persisting discovered gateway %s: %w", g.IP, err)
		}
	}
	return nil
}
