package metrics

import (
	"context"

	"github.com/nerrad567/knxip-core/internal/infrastructure/config"
	"github.com/nerrad567/knxip-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

// Recorder writes gateway telemetry points to InfluxDB. A nil Recorder
// is valid and silently drops every record, so callers never need a
// feature flag to use one.
type Recorder struct {
	client *influxdb.Client
}

// Connect establishes the underlying InfluxDB client. Returns
// influxdb.ErrDisabled if cfg.Enabled is false — callers should treat
// that as "run without metrics" rather than a fatal error.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Recorder, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Recorder{client: client}, nil
}

// Close flushes and closes the underlying InfluxDB client.
func (r *Recorder) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// RecordTelegram writes one point per transmitted or received telegram,
// tagged by direction, APCI kind, and destination group address.
func (r *Recorder) RecordTelegram(t telegram.Telegram) {
	if r == nil || r.client == nil {
		return
	}
	r.client.WritePoint("telegrams",
		map[string]string{
			"direction": t.Direction.String(),
			"apci":      t.APCI.String(),
			"group":     t.Destination.String(),
		},
		map[string]interface{}{"count": 1},
	)
}

// RecordRoutingBusy writes a point each time a RoutingBusy frame is
// received, with the slowdown window (in units of 100ms) it signalled.
func (r *Recorder) RecordRoutingBusy(windowUnits int) {
	if r == nil || r.client == nil {
		return
	}
	r.client.WritePoint("routing_busy",
		nil,
		map[string]interface{}{"window_units": windowUnits},
	)
}

// SecureSessionEvent identifies a point in a Secure session's lifecycle.
type SecureSessionEvent string

const (
	SecureSessionOpened SecureSessionEvent = "opened"
	SecureSessionClosed SecureSessionEvent = "closed"
	SecureSessionFailed SecureSessionEvent = "failed"
)

// RecordSecureSession writes a point marking a Secure session lifecycle
// transition for a given gateway.
func (r *Recorder) RecordSecureSession(gatewayIP string, event SecureSessionEvent) {
	if r == nil || r.client == nil {
		return
	}
	r.client.WritePoint("secure_sessions",
		map[string]string{"gateway": gatewayIP, "event": string(event)},
		map[string]interface{}{"count": 1},
	)
}
