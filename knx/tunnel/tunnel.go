package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/cemi"
	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/queue"
	"github.com/nerrad567/knxip-core/knx/reqresp"
	"github.com/nerrad567/knxip-core/knx/telegram"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// Timing constants named by spec §4.7/§6.
const (
	ConnectionAliveTime    = 120 * time.Second
	ConnectionStateTimeout = 10 * time.Second
	HeartbeatInterval      = ConnectionAliveTime - 5*ConnectionStateTimeout // 70s
	HeartbeatRetries       = 3

	AckTimeout          = 1 * time.Second
	ConfirmationTimeout = 3 * time.Second
	DefaultReconnectWait = 3 * time.Second

	inboxCapacity = queue.DefaultCapacity
)

// TransportKind selects the socket type a Connection dials.
type TransportKind int

const (
	UDP TransportKind = iota
	TCP
)

// SecureChannel is an established-on-Connect encrypted frame channel,
// satisfied by knx/session's Session: Connect performs the Secure
// handshake, Send wraps one inner KNXnet/IP frame in a SecureWrapper
// and writes it, OnFrame delivers each decrypted inner frame, Close
// ends the session.
type SecureChannel interface {
	Connect(ctx context.Context) error
	Send(raw []byte) error
	OnFrame(f func(raw []byte, from net.Addr))
	Close() error
}

// Logger is the structured logging interface this package accepts.
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

// Config configures a Tunnelling connection.
type Config struct {
	Gateway       net.UDPAddr
	Local         net.UDPAddr
	Transport     TransportKind
	Layer         knxip.TunnelLayer
	RouteBack     bool
	AutoReconnect bool
	ReconnectWait time.Duration
	Logger        Logger

	// SecureDial, when set, replaces the plain transport: every
	// (re)connect obtains a fresh Secure channel from it and all
	// tunnelling frames travel wrapped through that channel. The
	// channel is TCP-backed, so TunnellingAck is skipped the same way
	// it is for plain TCP.
	SecureDial func() SecureChannel
}

func (c *Config) applyDefaults() {
	if c.Layer == 0 {
		c.Layer = knxip.TunnelLinkLayer
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = DefaultReconnectWait
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// State is the Connection's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Stats reports current connection counters.
type Stats struct {
	TelegramsTx  uint64
	TelegramsRx  uint64
	ErrorsTotal  uint64
	LastActivity time.Time
	State        State
}

// Connection is a Tunnelling connection, over UDP or TCP, optionally
// wrapped in a Secure session by the caller (see knx/session, which
// composes with this package by handing it an already-established
// Secure transport).
type Connection struct {
	cfg Config

	registry *transport.Registry
	engine   *reqresp.Engine
	udp      *transport.UDP
	tcp      *transport.TCP
	secure   SecureChannel

	inbox *queue.Queue[telegram.Telegram]

	observerMu sync.RWMutex
	observer   func(telegram.Telegram)

	mu                sync.Mutex
	state             State
	channelID         uint8
	gatewayIndividual address.Individual
	dataAddr          *net.UDPAddr
	seq               uint8

	sendMu         sync.Mutex
	confirmMu      sync.Mutex
	confirmWaiting bool
	confirmCh      chan cemi.Frame

	hbCancel    context.CancelFunc
	done        chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
	lostHandled atomic.Bool

	telegramsTx  atomic.Uint64
	telegramsRx  atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64
}

// New builds a Connection. Call Connect to establish the tunnel.
func New(cfg Config) *Connection {
	cfg.applyDefaults()
	return &Connection{
		cfg:   cfg,
		inbox: queue.New[telegram.Telegram](inboxCapacity),
		done:  make(chan struct{}),
	}
}

// SetObserver registers a hook invoked for every telegram sent or
// received on this tunnel.
func (c *Connection) SetObserver(f func(telegram.Telegram)) {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	c.observer = f
}

func (c *Connection) notifyObserver(t telegram.Telegram) {
	c.observerMu.RLock()
	f := c.observer
	c.observerMu.RUnlock()
	if f != nil {
		f(t)
	}
}

// Inbox returns the queue of decoded incoming telegrams.
func (c *Connection) Inbox() *queue.Queue[telegram.Telegram] { return c.inbox }

// Stats reports current connection counters.
func (c *Connection) Stats() Stats {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	return Stats{
		TelegramsTx:  c.telegramsTx.Load(),
		TelegramsRx:  c.telegramsRx.Load(),
		ErrorsTotal:  c.errorsTotal.Load(),
		LastActivity: time.Unix(0, c.lastActivity.Load()),
		State:        st,
	}
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) getState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) sendRaw(frame []byte) error {
	if c.secure != nil {
		return c.secure.Send(frame)
	}
	switch c.cfg.Transport {
	case TCP:
		if c.tcp == nil {
			return transport.ErrNotConnected
		}
		return c.tcp.Send(frame, nil)
	default:
		if c.udp == nil {
			return transport.ErrNotConnected
		}
		return c.udp.Send(frame, nil)
	}
}

// sendData writes a tunnelling data frame (TunnellingRequest or
// TunnellingAck) to the gateway's data endpoint, which may differ from
// the control endpoint the handshake used. A route-back data HPAI
// resolves to the originating flow, which is the transport's default
// peer.
func (c *Connection) sendData(frame []byte) error {
	if c.secure != nil || c.cfg.Transport == TCP {
		return c.sendRaw(frame)
	}
	if c.udp == nil {
		return transport.ErrNotConnected
	}
	c.mu.Lock()
	dest := c.dataAddr
	c.mu.Unlock()
	return c.udp.Send(frame, dest)
}

// reliable reports whether the underlying byte channel already
// guarantees ordered delivery, in which case the per-request
// TunnellingAck exchange is skipped.
func (c *Connection) reliable() bool {
	return c.cfg.Transport == TCP || c.cfg.SecureDial != nil
}

func (c *Connection) localHPAI() knxip.HPAI {
	if c.cfg.SecureDial != nil {
		return knxip.RouteBackHPAI(knxip.ProtocolTCP)
	}
	proto := knxip.ProtocolUDP
	if c.cfg.Transport == TCP {
		proto = knxip.ProtocolTCP
	}
	if c.cfg.RouteBack {
		return knxip.RouteBackHPAI(proto)
	}
	var local *net.UDPAddr
	if c.cfg.Transport != TCP && c.udp != nil {
		local = c.udp.LocalAddr()
	}
	if local == nil {
		return knxip.RouteBackHPAI(proto)
	}
	return knxip.HPAI{Protocol: proto, IP: local.IP, Port: uint16(local.Port)}
}

func errUnexpectedBody(st knxip.ServiceType, body knxip.Body) error {
	return fmt.Errorf("tunnel: unexpected body %T for service 0x%04X", body, uint16(st))
}
