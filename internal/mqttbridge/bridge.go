package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/knxip-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

// protocol is the fixed bridge identity used in every graylogic/{category}/knx/...
// topic this package builds, matching the teacher's per-protocol bridge split.
const protocol = "knx"

// HealthInterval is how often the bridge publishes a retained HealthMessage.
const HealthInterval = 30 * time.Second

// Core is the subset of knx/routing.Connection and knx/tunnel.Connection
// this bridge depends on, so it can run against either connection mode
// without caring which one the application wired up.
type Core interface {
	Send(ctx context.Context, t telegram.Telegram) error
	SetObserver(f func(telegram.Telegram))
}

// Logger matches the structured logger used throughout the knx packages,
// reusing the teacher's slog-compatible interface rather than inventing
// a bridge-local one.
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

// Bridge relays Telegrams between a KNX Core connection and the MQTT
// broker, following the command/ack/state/health topic contract the
// teacher's knx bus bridge established.
type Bridge struct {
	mq    *mqtt.Client
	core  Core
	log   Logger
	start time.Time

	rx, tx, errs atomic.Uint64
}

// New wires a Bridge around an already-connected MQTT client and Core
// connection. The caller owns both lifetimes; Start/Stop only manage
// the bridge's own subscriptions and health ticker.
func New(mq *mqtt.Client, core Core, log Logger) *Bridge {
	if log == nil {
		log = nopLogger{}
	}
	return &Bridge{mq: mq, core: core, log: log, start: time.Now()}
}

// Start subscribes to the command topic and begins publishing periodic
// health messages. It does not register itself as the Core's telegram
// observer: a gateway process typically also feeds telegrams to
// metrics recording and a websocket stream, and Core.SetObserver only
// holds a single hook, so the caller composes HandleTelegram into
// whichever combined observer it installs. Start returns once the
// command subscription is established.
func (b *Bridge) Start(ctx context.Context) error {
	topics := mqtt.Topics{}
	if err := b.mq.Subscribe(topics.BridgeCommand(protocol, "+"), 1, b.handleCommand); err != nil {
		return fmt.Errorf("mqttbridge: subscribe to commands: %w", err)
	}

	go b.healthLoop(ctx)
	return nil
}

// HandleTelegram publishes a retained state message for t. Call this
// from the Core's telegram observer; it is exported so the observer
// can be composed with other sinks (metrics, websocket broadcast)
// rather than owned exclusively by the bridge.
func (b *Bridge) HandleTelegram(t telegram.Telegram) {
	b.rx.Add(1)

	topics := mqtt.Topics{}
	msg := StateMessage{
		GroupAddress: t.Destination.URLEncode(),
		Timestamp:    time.Now().UTC(),
		Source:       t.Source.String(),
		Value:        encodeValue(t.Value),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.errs.Add(1)
		b.log.Error("mqttbridge: marshal state message failed", "error", err)
		return
	}
	topic := topics.BridgeState(protocol, t.Destination.URLEncode())
	if err := b.mq.PublishRetained(topic, payload); err != nil {
		b.errs.Add(1)
		b.log.Error("mqttbridge: publish state failed", "topic", topic, "error", err)
	}
}

func (b *Bridge) handleCommand(mqttTopic string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.errs.Add(1)
		b.log.Warn("mqttbridge: bad command payload", "topic", mqttTopic, "error", err)
		return nil
	}

	ack := b.dispatch(cmd)
	return b.publishAck(ack)
}

func (b *Bridge) dispatch(cmd CommandMessage) AckMessage {
	ack := AckMessage{
		CommandID:    cmd.ID,
		Timestamp:    time.Now().UTC(),
		GroupAddress: cmd.GroupAddress,
	}

	group, err := decodeGroupAddress(cmd.GroupAddress)
	if err != nil {
		ack.Status = AckFailed
		ack.Error = err.Error()
		return ack
	}

	t, err := decodeCommand(cmd, group)
	if err != nil {
		ack.Status = AckFailed
		ack.Error = err.Error()
		return ack
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.core.Send(ctx, t); err != nil {
		b.errs.Add(1)
		ack.Status = AckFailed
		ack.Error = err.Error()
		if ctx.Err() != nil {
			ack.Status = AckTimeout
		}
		return ack
	}

	b.tx.Add(1)
	ack.Status = AckAccepted
	return ack
}

func (b *Bridge) publishAck(ack AckMessage) error {
	topics := mqtt.Topics{}
	payload, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("mqttbridge: marshal ack: %w", err)
	}
	return b.mq.Publish(topics.BridgeAck(protocol, ack.GroupAddress), payload, 1, false)
}

func (b *Bridge) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	b.publishHealth()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publishHealth()
		}
	}
}

func (b *Bridge) publishHealth() {
	topics := mqtt.Topics{}
	status := HealthHealthy
	if b.errs.Load() > 0 && b.tx.Load() == 0 && b.rx.Load() == 0 {
		status = HealthDegraded
	}
	msg := HealthMessage{
		Bridge:        protocol,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Connected:     b.mq.IsConnected(),
		UptimeSeconds: int64(time.Since(b.start).Seconds()),
		TelegramsRx:   b.rx.Load(),
		TelegramsTx:   b.tx.Load(),
		ErrorsTotal:   b.errs.Load(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("mqttbridge: marshal health message failed", "error", err)
		return
	}
	if err := b.mq.PublishRetained(topics.BridgeHealth(protocol), payload); err != nil {
		b.log.Error("mqttbridge: publish health failed", "error", err)
	}
}

// Stats is a snapshot of the bridge's telegram counters, used by
// internal/httpapi's /metrics endpoint.
type Stats struct {
	Connected     bool
	UptimeSeconds int64
	TelegramsRx   uint64
	TelegramsTx   uint64
	ErrorsTotal   uint64
}

// Stats returns a snapshot of the bridge's current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Connected:     b.mq.IsConnected(),
		UptimeSeconds: int64(time.Since(b.start).Seconds()),
		TelegramsRx:   b.rx.Load(),
		TelegramsTx:   b.tx.Load(),
		ErrorsTotal:   b.errs.Load(),
	}
}

func decodeGroupAddress(raw string) (address.Group, error) {
	return address.ParseGroup(raw)
}

func decodeCommand(cmd CommandMessage, group address.Group) (telegram.Telegram, error) {
	switch cmd.Command {
	case "read":
		return telegram.NewRead(group), nil
	case "write":
		v, err := decodeValue(cmd.Value)
		if err != nil {
			return telegram.Telegram{}, err
		}
		return telegram.NewWrite(group, v), nil
	case "response":
		v, err := decodeValue(cmd.Value)
		if err != nil {
			return telegram.Telegram{}, err
		}
		return telegram.NewResponse(group, v), nil
	default:
		return telegram.Telegram{}, fmt.Errorf("mqttbridge: unknown command %q", cmd.Command)
	}
}

func decodeValue(raw map[string]any) (telegram.Value, error) {
	if raw == nil {
		return telegram.Value{}, fmt.Errorf("mqttbridge: command missing value")
	}
	if small, ok := raw["value6"]; ok {
		f, ok := small.(float64)
		if !ok {
			return telegram.Value{}, fmt.Errorf("mqttbridge: value6 must be a number")
		}
		return telegram.SmallValue(uint8(f)), nil
	}
	if bytesVal, ok := raw["bytes"]; ok {
		arr, ok := bytesVal.([]any)
		if !ok {
			return telegram.Value{}, fmt.Errorf("mqttbridge: bytes must be an array")
		}
		out := make([]byte, len(arr))
		for i, e := range arr {
			f, ok := e.(float64)
			if !ok {
				return telegram.Value{}, fmt.Errorf("mqttbridge: bytes[%d] must be a number", i)
			}
			out[i] = byte(f)
		}
		return telegram.BytesValue(out), nil
	}
	return telegram.Value{}, fmt.Errorf("mqttbridge: value must set value6 or bytes")
}

func encodeValue(v telegram.Value) map[string]any {
	if v.Small {
		return map[string]any{"value6": v.Value6}
	}
	if v.Bytes == nil {
		return nil
	}
	return map[string]any{"bytes": v.Bytes}
}

// NewCommandID returns a fresh correlation ID for an outgoing
// CommandMessage, used by API/automation callers that publish commands
// through this bridge rather than receive them.
func NewCommandID() string {
	return uuid.NewString()
}
