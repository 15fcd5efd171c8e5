// Package mqttbridge translates between the KNX core's Telegram
// inbox/outbox and the MQTT command/ack/state/health topic scheme,
// following the wire message shapes and topic layout the teacher's
// knx bridge (internal/bridges/knx/messages.go) established for this
// MQTT broker.
package mqttbridge

import "time"

// CommandMessage is published to graylogic/command/knx/{group_address}
// to ask the core to perform a GroupValueWrite/Read/Response.
type CommandMessage struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	GroupAddress string         `json:"group_address"`
	Command      string         `json:"command"` // "read", "write", "response"
	Value        map[string]any `json:"value,omitempty"`
	Source       string         `json:"source"` // "api", "automation", "scene"
}

// AckStatus reports the outcome of a CommandMessage.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// AckMessage is published to graylogic/ack/knx/{group_address} after a
// CommandMessage is processed.
type AckMessage struct {
	CommandID    string    `json:"command_id"`
	Timestamp    time.Time `json:"timestamp"`
	GroupAddress string    `json:"group_address"`
	Status       AckStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// StateMessage is published to graylogic/state/knx/{group_address}
// (retained) whenever a telegram arrives from the bus.
type StateMessage struct {
	GroupAddress string         `json:"group_address"`
	Timestamp    time.Time      `json:"timestamp"`
	Source       string         `json:"source"`
	Value        map[string]any `json:"value"`
}

// HealthStatus reports the bridge's operational state.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
)

// HealthMessage is published to graylogic/health/knx (retained) every
// HealthInterval, per spec's domain-stack gateway application.
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Connected     bool         `json:"connected"`
	TelegramsRx   uint64       `json:"telegrams_rx"`
	TelegramsTx   uint64       `json:"telegrams_tx"`
	ErrorsTotal   uint64       `json:"errors_total"`
}

// NewLWTHealthMessage builds the Last Will and Testament payload the
// broker publishes if this bridge disconnects unexpectedly.
func NewLWTHealthMessage() HealthMessage {
	return HealthMessage{Bridge: "knx", Timestamp: time.Now().UTC(), Status: HealthOffline}
}
