package tunnel

import (
	"context"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/reqresp"
)

// heartbeatLoop sends a ConnectionStateRequest every HeartbeatInterval
// (70s). A failed heartbeat is retried up to HeartbeatRetries more
// times (each with a 10s timeout); if all of them fail the tunnel is
// declared lost and, if configured, reconnected.
func (c *Connection) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if !c.sendHeartbeatWithRetries(ctx) {
				c.cfg.Logger.Error("tunnel: heartbeat exhausted, tunnel lost")
				c.onTunnelLost(ctx)
			}
		}
	}
}

func (c *Connection) sendHeartbeatWithRetries(ctx context.Context) bool {
	for attempt := 0; attempt <= HeartbeatRetries; attempt++ {
		if c.sendHeartbeat(ctx) {
			return true
		}
		c.cfg.Logger.Warn("tunnel: heartbeat failed", "attempt", attempt+1)
	}
	return false
}

func (c *Connection) sendHeartbeat(ctx context.Context) bool {
	c.mu.Lock()
	channelID := c.channelID
	local := c.localHPAI()
	c.mu.Unlock()

	req := knxip.ConnectionStateRequestBody{ChannelID: channelID, ControlHPAI: local}
	body, _, err := c.engine.Do(ctx, knxip.ConnectionStateResp, reqresp.ConnectionStateTimeout,
		func() error { return c.sendRaw(knxip.Encode(knxip.ConnectionStateRequest, req)) },
		func(b knxip.Body, _ net.Addr) bool {
			resp, ok := b.(knxip.ConnectionStateResponseBody)
			return ok && resp.ChannelID == channelID
		},
	)
	if err != nil {
		return false
	}
	resp, ok := body.(knxip.ConnectionStateResponseBody)
	return ok && resp.Status.Ok()
}

// onTunnelLost runs on any tunnel-lost event (heartbeat exhaustion,
// server-initiated disconnect): it marks the connection disconnected
// and, if auto-reconnect is configured, keeps retrying Connect at
// ReconnectWait intervals. Only one invocation runs at a time; a
// second caller while a reconnect loop is active returns immediately.
func (c *Connection) onTunnelLost(ctx context.Context) {
	if !c.lostHandled.CompareAndSwap(false, true) {
		return
	}
	defer c.lostHandled.Store(false)

	c.setState(StateDisconnected)

	if !c.cfg.AutoReconnect {
		return
	}

	for {
		select {
		case <-c.done:
			return
		case <-time.After(c.cfg.ReconnectWait):
		}

		c.setState(StateReconnecting)
		c.teardownTransport()
		if err := c.dial(ctx); err != nil {
			c.cfg.Logger.Warn("tunnel: reconnect dial failed", "error", err)
			continue
		}
		if err := c.handshake(ctx); err != nil {
			c.cfg.Logger.Warn("tunnel: reconnect handshake failed", "error", err)
			continue
		}
		c.setState(StateConnected)
		c.cfg.Logger.Info("tunnel: reconnected after tunnel-lost event")
		return
	}
}
