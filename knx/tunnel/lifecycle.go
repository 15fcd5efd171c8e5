package tunnel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/reqresp"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// Connect establishes the transport, performs the ConnectRequest
// handshake, and starts the heartbeat task.
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	if c.registry == nil {
		c.registry = transport.NewRegistry(func(err error) {
			c.errorsTotal.Add(1)
			c.cfg.Logger.Warn("tunnel: dropped frame", "error", err)
		})
		c.engine = reqresp.New(c.registry)
		c.registry.On(knxip.TunnellingRequestService, c.handleIncomingRequest)
		c.registry.On(knxip.DisconnectRequest, c.handleServerDisconnect)
	}

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	if err := c.handshake(ctx); err != nil {
		c.teardownTransport()
		c.setState(StateDisconnected)
		return err
	}

	c.setState(StateConnected)

	hbCtx, cancel := context.WithCancel(context.Background())
	c.hbCancel = cancel
	c.wg.Add(1)
	go c.heartbeatLoop(hbCtx)

	return nil
}

func (c *Connection) dial(ctx context.Context) error {
	if c.cfg.SecureDial != nil {
		ch := c.cfg.SecureDial()
		ch.OnFrame(func(raw []byte, from net.Addr) { c.registry.Feed(raw, from) })
		if err := ch.Connect(ctx); err != nil {
			return fmt.Errorf("tunnel: secure connect: %w", err)
		}
		c.secure = ch
		return nil
	}
	switch c.cfg.Transport {
	case TCP:
		c.tcp = transport.NewTCP(net.TCPAddr{IP: c.cfg.Gateway.IP, Port: c.cfg.Gateway.Port, Zone: c.cfg.Gateway.Zone}, c.registry)
		if err := c.tcp.Connect(); err != nil {
			return fmt.Errorf("tunnel: tcp connect: %w", err)
		}
	default:
		c.udp = transport.NewUDP(c.cfg.Local, &c.cfg.Gateway, c.registry)
		if err := c.udp.Connect(); err != nil {
			return fmt.Errorf("tunnel: udp connect: %w", err)
		}
	}
	return nil
}

func (c *Connection) teardownTransport() {
	if c.secure != nil {
		if err := c.secure.Close(); err != nil {
			c.cfg.Logger.Debug("tunnel: secure channel close", "error", err)
		}
		c.secure = nil
	}
	if c.udp != nil {
		c.udp.Stop()
		c.udp = nil
	}
	if c.tcp != nil {
		c.tcp.Stop()
		c.tcp = nil
	}
}

func (c *Connection) handshake(ctx context.Context) error {
	local := c.localHPAI()
	req := knxip.ConnectRequestBody{
		ControlHPAI: local,
		DataHPAI:    local,
		CRI:         knxip.CRI{ConnectionType: knxip.TunnelConnection, TunnelLayer: c.cfg.Layer},
	}

	body, from, err := c.engine.Do(ctx, knxip.ConnectResponseService, reqresp.DefaultTimeout,
		func() error { return c.sendRaw(knxip.Encode(knxip.ConnectRequestService, req)) }, nil)
	if err != nil {
		return fmt.Errorf("tunnel: connect request: %w", err)
	}
	resp, ok := body.(knxip.ConnectResponseBody)
	if !ok {
		return errUnexpectedBody(knxip.ConnectResponseService, body)
	}
	if !resp.Status.Ok() {
		return fmt.Errorf("tunnel: gateway refused connection: %s", resp.Status)
	}

	c.mu.Lock()
	c.channelID = resp.ChannelID
	c.gatewayIndividual = address.IndividualFromUint16(resp.CRD.IndividualAddress)
	c.seq = 0
	if resp.DataHPAI.IsRouteBack() {
		c.dataAddr = addrFromNet(from)
	} else {
		c.dataAddr = &net.UDPAddr{IP: resp.DataHPAI.IP, Port: int(resp.DataHPAI.Port)}
	}
	c.mu.Unlock()

	c.cfg.Logger.Info("tunnel: connected", "channel_id", resp.ChannelID, "individual_address", c.gatewayIndividual.String())
	return nil
}

func addrFromNet(a net.Addr) *net.UDPAddr {
	if u, ok := a.(*net.UDPAddr); ok {
		return u
	}
	return nil
}

// Disconnect tears down the tunnel gracefully: DisconnectRequest, stop
// heartbeat, close transport.
func (c *Connection) Disconnect(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		if c.hbCancel != nil {
			c.hbCancel()
		}

		c.mu.Lock()
		channelID := c.channelID
		local := c.localHPAI()
		c.mu.Unlock()

		if c.getState() == StateConnected {
			req := knxip.DisconnectRequestBody{ChannelID: channelID, ControlHPAI: local}
			_, _, derr := c.engine.Do(ctx, knxip.DisconnectResponse, reqresp.DisconnectTimeout,
				func() error { return c.sendRaw(knxip.Encode(knxip.DisconnectRequest, req)) }, nil)
			if derr != nil {
				c.cfg.Logger.Warn("tunnel: disconnect request did not complete cleanly", "error", derr)
			}
		}

		c.setState(StateDisconnected)
		c.teardownTransport()
		if c.registry != nil {
			c.registry.Stop()
		}
		c.wg.Wait()
	})
	return err
}

// reconnect tears down the transport and repeats Connect, honoring
// ReconnectWait. It is used both by the heartbeat task and by Send's
// exhausted-retries path.
func (c *Connection) reconnect(ctx context.Context) error {
	c.setState(StateReconnecting)
	c.teardownTransport()

	select {
	case <-time.After(c.cfg.ReconnectWait):
	case <-c.done:
		return fmt.Errorf("tunnel: stopped during reconnect")
	}

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	if err := c.handshake(ctx); err != nil {
		c.teardownTransport()
		c.setState(StateDisconnected)
		return err
	}
	c.setState(StateConnected)
	return nil
}

// handleServerDisconnect processes a server-initiated DisconnectRequest
// on our channel: reply with DisconnectResponse, clear the channel id,
// and treat the tunnel as lost.
func (c *Connection) handleServerDisconnect(_ knxip.ServiceType, b knxip.Body, _ net.Addr) {
	body, ok := b.(knxip.DisconnectRequestBody)
	if !ok {
		return
	}
	c.mu.Lock()
	channelID := c.channelID
	c.mu.Unlock()
	if channelID == 0 || body.ChannelID != channelID {
		return
	}

	resp := knxip.DisconnectResponseBody{ChannelID: channelID, Status: knxip.StatusNoError}
	if err := c.sendRaw(knxip.Encode(knxip.DisconnectResponse, resp)); err != nil {
		c.cfg.Logger.Warn("tunnel: failed to send DisconnectResponse", "error", err)
	}

	c.mu.Lock()
	c.channelID = 0
	c.mu.Unlock()
	c.cfg.Logger.Warn("tunnel: server closed the connection", "channel_id", channelID)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.onTunnelLost(context.Background())
	}()
}
