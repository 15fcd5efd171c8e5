package routing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/cemi"
	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/queue"
	"github.com/nerrad567/knxip-core/knx/secure"
	"github.com/nerrad567/knxip-core/knx/telegram"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// Default Routing parameters, per spec §6.
const (
	DefaultMulticastGroup = "224.0.23.12"
	DefaultMulticastPort  = 3671
	DefaultLocalAddress   = "15.15.250"

	// interFrameDelay is the minimum spacing between two
	// RoutingIndication sends, per spec §4.6.
	interFrameDelay = 20 * time.Millisecond

	inboxCapacity = queue.DefaultCapacity
)

// ErrStopped is returned by Send when the connection is stopped while a
// caller is waiting for flow control to clear.
var ErrStopped = errors.New("routing: connection stopped")

// Logger is the structured logging interface this package accepts,
// matching the shape of the teacher's bridge Logger.
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

// SecureConfig enables Secure routing: a SecureGroup timer and
// SecureWrapper envelope around every RoutingIndication, using the
// shared backbone key (spec §4.9).
type SecureConfig struct {
	BackboneKey [16]byte
	// Latency is the configurable latency tolerance, default 1s.
	Latency time.Duration
}

// Config configures a Routing connection.
type Config struct {
	Group        net.IP
	Port         int
	Interface    *net.Interface
	LocalAddress address.Individual
	Secure       *SecureConfig
	Logger       Logger

	// BusyObserver, if set, is invoked with the slowdown window in
	// effect whenever a RoutingBusy frame changes flow-control state.
	BusyObserver func(window int)
}

func (c *Config) applyDefaults() {
	if c.Group == nil {
		c.Group = net.ParseIP(DefaultMulticastGroup)
	}
	if c.Port == 0 {
		c.Port = DefaultMulticastPort
	}
	if c.LocalAddress.ToUint16() == 0 {
		addr, _ := address.ParseIndividual(DefaultLocalAddress)
		c.LocalAddress = addr
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.Secure != nil && c.Secure.Latency == 0 {
		c.Secure.Latency = 1 * time.Second
	}
}

// Stats mirrors the teacher's KNXDStats, generalized from a single
// knxd socket to a Routing connection.
type Stats struct {
	TelegramsTx  uint64
	TelegramsRx  uint64
	ErrorsTotal  uint64
	LastActivity time.Time
	Connected    bool
}

// Connection is a Routing (multicast) KNXnet/IP connection.
type Connection struct {
	cfg      Config
	mc       *transport.Multicast
	registry *transport.Registry

	inbox *queue.Queue[telegram.Telegram]

	observerMu sync.RWMutex
	observer   func(telegram.Telegram)

	sendMu   sync.Mutex
	lastSend time.Time

	busy *busyState

	// Secure routing state; nil unless cfg.Secure is set.
	secureStart      time.Time
	timer            *secure.TimerState
	timerMu          sync.Mutex
	bootstrapTag     uint16
	bootstrapMatched chan struct{}
	periodicTimer    *time.Timer

	done chan struct{}
	wg   sync.WaitGroup

	telegramsTx  atomic.Uint64
	telegramsRx  atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64
	connected    atomic.Bool
}

// New builds a Connection. Call Connect to join the multicast group.
func New(cfg Config) *Connection {
	cfg.applyDefaults()
	c := &Connection{
		cfg:   cfg,
		inbox: queue.New[telegram.Telegram](inboxCapacity),
		busy:  newBusyState(),
		done:  make(chan struct{}),
	}
	if cfg.Secure != nil {
		c.timer = secure.NewTimerState(cfg.Secure.Latency)
	}
	return c
}

// SetObserver registers a hook invoked for every telegram the
// connection sends or receives, independent of the Inbox queue (spec
// §3 "bus monitor / passive discovery mirror" supplement).
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

// Connect joins the multicast group and starts dispatching received
// frames.
func (c *Connection) Connect() error {
	c.registry = transport.NewRegistry(func(err error) {
		c.errorsTotal.Add(1)
		c.cfg.Logger.Warn("routing: dropped frame", "error", err)
	})
	c.mc = transport.NewMulticast(c.cfg.Group, c.cfg.Port, c.cfg.Interface, c.registry)

	if c.cfg.Secure != nil {
		c.registry.On(knxip.SecureWrapperService, c.handleSecureWrapper)
		c.registry.On(knxip.TimerNotifyService, c.handleTimerNotify)
	} else {
		c.registry.On(knxip.RoutingIndicationService, c.handleRoutingIndicationFrame)
	}
	c.registry.On(knxip.RoutingBusyService, c.handleRoutingBusyFrame)
	c.registry.On(knxip.RoutingLostMessage, c.handleRoutingLostFrame)

	if err := c.mc.Connect(); err != nil {
		return fmt.Errorf("routing: connect: %w", err)
	}
	c.connected.Store(true)
	c.secureStart = time.Now()

	if c.cfg.Secure != nil {
		c.wg.Add(1)
		go c.runSecureTimer()
	}
	return nil
}

// Stop leaves the multicast group and stops all background work.
func (c *Connection) Stop() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	c.connected.Store(false)
	var err error
	if c.mc != nil {
		err = c.mc.Stop()
	}
	if c.registry != nil {
		c.registry.Stop()
	}
	c.busy.stopAll()
	c.wg.Wait()
	return err
}

// Stats reports current connection counters.
func (c *Connection) Stats() Stats {
	return Stats{
		TelegramsTx:  c.telegramsTx.Load(),
		TelegramsRx:  c.telegramsRx.Load(),
		ErrorsTotal:  c.errorsTotal.Load(),
		LastActivity: time.Unix(0, c.lastActivity.Load()),
		Connected:    c.connected.Load(),
	}
}

// Send transmits an outgoing telegram as a RoutingIndication. It
// blocks until RoutingBusy flow control allows sending and the
// minimum inter-frame spacing has elapsed, then returns once the
// frame is on the wire. Routing has no on-wire confirmation (spec
// §4.6), so the L_Data.con the standard requires is synthesized
// locally: a successful return from Send is that confirmation.
func (c *Connection) Send(ctx context.Context, t telegram.Telegram) error {
	if err := c.busy.waitReady(ctx, c.done); err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if wait := interFrameDelay - time.Since(c.lastSend); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrStopped
		}
	}

	t.Source = c.cfg.LocalAddress
	frame := cemi.FromTelegram(t)
	frame.MessageCode = cemi.LDataInd
	raw, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("routing: encode cemi: %w", err)
	}
	body := knxip.RoutingIndicationBody{CEMI: raw}

	var wire []byte
	if c.cfg.Secure != nil {
		wire, err = c.wrapSecure(knxip.RoutingIndicationService, body)
		if err != nil {
			return fmt.Errorf("routing: secure wrap: %w", err)
		}
	} else {
		wire = knxip.Encode(knxip.RoutingIndicationService, body)
	}

	if err := c.mc.Send(wire, nil); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("routing: send: %w", err)
	}

	c.lastSend = time.Now()
	c.telegramsTx.Add(1)
	c.lastActivity.Store(c.lastSend.UnixNano())
	c.notifyObserver(t)
	c.cfg.Logger.Debug("routing: sent RoutingIndication, synthesizing local L_Data.con")
	return nil
}

func (c *Connection) handleRoutingIndicationFrame(_ knxip.ServiceType, b knxip.Body, _ net.Addr) {
	body, ok := b.(knxip.RoutingIndicationBody)
	if !ok {
		return
	}
	c.deliverCEMI(body)
}

func (c *Connection) deliverCEMI(body knxip.RoutingIndicationBody) {
	frame, err := cemi.Decode(body.CEMI)
	if err != nil {
		c.errorsTotal.Add(1)
		c.cfg.Logger.Warn("routing: malformed CEMI frame", "error", err)
		return
	}

	if frame.MessageCode != cemi.LDataInd {
		c.cfg.Logger.Debug("routing: discarding non-L_Data.ind CEMI", "message_code", frame.MessageCode.String())
		return
	}
	if frame.Source == c.cfg.LocalAddress {
		return
	}

	tel, err := frame.ToTelegram()
	if err != nil || tel == nil {
		if err != nil {
			c.cfg.Logger.Debug("routing: unrepresentable CEMI frame", "error", err)
		}
		return
	}

	c.telegramsRx.Add(1)
	c.lastActivity.Store(time.Now().UnixNano())
	c.notifyObserver(*tel)

	if !c.inbox.Push(*tel) {
		c.cfg.Logger.Warn("routing: inbox full, dropping telegram")
	}
}

func (c *Connection) handleRoutingBusyFrame(_ knxip.ServiceType, b knxip.Body, _ net.Addr) {
	body, ok := b.(knxip.RoutingBusyBody)
	if !ok {
		return
	}
	window, applied := c.busy.onBusy(time.Duration(body.WaitTime)*time.Millisecond, c.done)
	if applied && c.cfg.BusyObserver != nil {
		c.cfg.BusyObserver(window)
	}
}

func (c *Connection) handleRoutingLostFrame(_ knxip.ServiceType, b knxip.Body, _ net.Addr) {
	body, ok := b.(knxip.RoutingLostMessageBody)
	if !ok {
		return
	}
	c.cfg.Logger.Warn("routing: RoutingLostMessage received", "lost_count", body.LostCount)
}
