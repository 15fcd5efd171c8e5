package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/knx/cemi"
	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/reqresp"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

// ErrConfirmationTimeout is returned by Send when a TunnellingRequest
// was accepted (acknowledged, or written over TCP) but no L_Data.con
// arrived within ConfirmationTimeout.
var ErrConfirmationTimeout = errors.New("tunnel: timed out waiting for L_Data.con")

// Send transmits an outgoing telegram. It blocks until the frame is
// acknowledged (UDP) or written (TCP) and the server's L_Data.con
// confirmation is received, per spec §4.7: outgoing telegrams on one
// tunnel are strictly serialized, one at a time.
func (c *Connection) Send(ctx context.Context, t telegram.Telegram) error {
	if err := c.waitConnected(ctx); err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	t.Source = c.gatewayIndividual
	c.mu.Unlock()

	frame := cemi.FromTelegram(t)
	raw, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("tunnel: encode cemi: %w", err)
	}

	if err := c.sendWithRetry(ctx, raw); err != nil {
		return err
	}

	if err := c.waitConfirmation(ctx); err != nil {
		c.errorsTotal.Add(1)
		return err
	}

	c.telegramsTx.Add(1)
	c.lastActivity.Store(time.Now().UnixNano())
	c.notifyObserver(t)
	return nil
}

// waitConnected blocks while the tunnel is reconnecting, per spec
// §4.7 ("during reconnection all send attempts block until CONNECTED
// is re-reached or another reconnect fails fatally"). It returns
// immediately once connected, or an error if the connection is
// permanently disconnected (no auto-reconnect) or stopped.
func (c *Connection) waitConnected(ctx context.Context) error {
	const pollInterval = 50 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		switch c.getState() {
		case StateConnected:
			return nil
		case StateDisconnected:
			return fmt.Errorf("tunnel: not connected")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("tunnel: connection stopped")
		}
	}
}

// sendWithRetry implements the UDP ack retry ladder: send, await ack;
// on timeout retry once with the same sequence counter; if that also
// times out, reconnect the tunnel and retry once more. TCP and Secure
// channels have no ack step and return as soon as the write succeeds.
func (c *Connection) sendWithRetry(ctx context.Context, cemiFrame []byte) error {
	if c.reliable() {
		c.mu.Lock()
		seq := c.seq
		c.seq++
		channelID := c.channelID
		c.mu.Unlock()
		body := knxip.TunnellingRequestBody{ChannelID: channelID, SeqCount: seq, CEMI: cemiFrame}
		return c.sendRaw(knxip.Encode(knxip.TunnellingRequestService, body))
	}

	if err := c.sendAndAwaitAck(ctx, cemiFrame); err == nil {
		return nil
	} else if err != nil && ctx.Err() != nil {
		return err
	}

	// Retry once with the same sequence counter.
	if err := c.sendAndAwaitAck(ctx, cemiFrame); err == nil {
		return nil
	}

	c.cfg.Logger.Warn("tunnel: ack retry exhausted, reconnecting")
	if err := c.reconnect(ctx); err != nil {
		return fmt.Errorf("tunnel: reconnect after ack failure: %w", err)
	}

	if err := c.sendAndAwaitAck(ctx, cemiFrame); err != nil {
		return fmt.Errorf("tunnel: send failed after reconnect: %w", err)
	}
	return nil
}

func (c *Connection) sendAndAwaitAck(ctx context.Context, cemiFrame []byte) error {
	c.mu.Lock()
	seq := c.seq
	channelID := c.channelID
	c.mu.Unlock()

	body := knxip.TunnellingRequestBody{ChannelID: channelID, SeqCount: seq, CEMI: cemiFrame}
	wire := knxip.Encode(knxip.TunnellingRequestService, body)

	_, _, err := c.engine.Do(ctx, knxip.TunnellingAckService, reqresp.TunnellingAckTimeout,
		func() error { return c.sendData(wire) },
		func(b knxip.Body, _ net.Addr) bool {
			ack, ok := b.(knxip.TunnellingAckBody)
			return ok && ack.ChannelID == channelID && ack.SeqCount == seq
		},
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.seq++
	c.mu.Unlock()
	return nil
}

func (c *Connection) waitConfirmation(ctx context.Context) error {
	c.confirmMu.Lock()
	ch := make(chan cemi.Frame, 1)
	c.confirmCh = ch
	c.confirmWaiting = true
	c.confirmMu.Unlock()

	defer func() {
		c.confirmMu.Lock()
		if c.confirmCh == ch {
			c.confirmWaiting = false
			c.confirmCh = nil
		}
		c.confirmMu.Unlock()
	}()

	timer := time.NewTimer(ConfirmationTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return ErrConfirmationTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("tunnel: connection stopped")
	}
}

// handleIncomingRequest processes a TunnellingRequest arriving from
// the gateway: ack it immediately (UDP only), then decode the inner
// CEMI frame and route it either to the confirmation waiter
// (L_Data.con) or to the inbox (L_Data.ind).
func (c *Connection) handleIncomingRequest(_ knxip.ServiceType, b knxip.Body, from net.Addr) {
	body, ok := b.(knxip.TunnellingRequestBody)
	if !ok {
		return
	}

	if !c.reliable() {
		ack := knxip.TunnellingAckBody{ChannelID: body.ChannelID, SeqCount: body.SeqCount, Status: knxip.StatusNoError}
		if err := c.sendData(knxip.Encode(knxip.TunnellingAckService, ack)); err != nil {
			c.cfg.Logger.Warn("tunnel: failed to send TunnellingAck", "error", err)
		}
	}

	frame, err := cemi.Decode(body.CEMI)
	if err != nil {
		c.errorsTotal.Add(1)
		c.cfg.Logger.Warn("tunnel: malformed CEMI frame", "error", err)
		return
	}

	switch frame.MessageCode {
	case cemi.LDataCon:
		c.confirmMu.Lock()
		if c.confirmWaiting && c.confirmCh != nil {
			select {
			case c.confirmCh <- frame:
			default:
			}
		}
		c.confirmMu.Unlock()
	case cemi.LDataInd:
		tel, err := frame.ToTelegram()
		if err != nil || tel == nil {
			if err != nil {
				c.cfg.Logger.Debug("tunnel: unrepresentable CEMI frame", "error", err)
			}
			return
		}
		c.telegramsRx.Add(1)
		c.lastActivity.Store(time.Now().UnixNano())
		c.notifyObserver(*tel)
		if !c.inbox.Push(*tel) {
			c.cfg.Logger.Warn("tunnel: inbox full, dropping telegram")
		}
	default:
		c.cfg.Logger.Debug("tunnel: discarding unsupported CEMI message code", "message_code", frame.MessageCode.String())
	}
}
