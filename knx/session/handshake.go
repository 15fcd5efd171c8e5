package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/reqresp"
	"github.com/nerrad567/knxip-core/knx/secure"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// handshakeTimeout bounds each of the two request/response exchanges
// that make up Connect.
const handshakeTimeout = reqresp.AuthenticationTimeout

// Connect dials the gateway's Secure TCP port and performs the full
// handshake of spec §4.8: SessionRequest/SessionResponse (ECDH key
// agreement authenticated by the device password), then
// SessionAuthenticate/SessionStatus (user authentication), arriving at
// a session_key under which every subsequent frame is wrapped. On
// success the session starts its keepalive loop and begins accepting
// SecureWrapper traffic for OnFrame.
func (s *Session) Connect(ctx context.Context) error {
	s.registry = transport.NewRegistry(nil)
	s.tcp = transport.NewTCP(s.cfg.Gateway, s.registry)
	if err := s.tcp.Connect(); err != nil {
		s.registry.Stop()
		return fmt.Errorf("session: dial %s: %w", s.cfg.Gateway.String(), err)
	}

	engine := reqresp.New(s.registry)

	keyPair, err := secure.GenerateKeyPair()
	if err != nil {
		s.teardown()
		return fmt.Errorf("session: generate ephemeral keypair: %w", err)
	}

	serverPub, sessionID, err := s.requestSession(ctx, engine, keyPair)
	if err != nil {
		s.teardown()
		return err
	}

	sessionKey, err := keyPair.SharedSecret(serverPub)
	if err != nil {
		s.teardown()
		return fmt.Errorf("session: derive session key: %w", err)
	}

	if err := s.authenticate(ctx, engine, keyPair.PublicKey, serverPub, sessionID, sessionKey); err != nil {
		s.teardown()
		return err
	}

	s.sessionID = sessionID
	s.sessionKey = sessionKey
	s.registry.On(knxip.SecureWrapperService, s.handleWrapper)

	s.wg.Add(1)
	go s.keepaliveLoop()

	s.cfg.Logger.Info("session: Secure channel established", "session_id", sessionID)
	return nil
}

// requestSession sends SessionRequest and verifies SessionResponse's
// MAC with the device-authentication key, per spec §4.8:
//
//	mac_input = session_response_header || session_id || (pub_c XOR pub_s)
func (s *Session) requestSession(ctx context.Context, engine *reqresp.Engine, kp secure.KeyPair) ([32]byte, uint16, error) {
	reqBody := knxip.SessionRequestBody{
		ControlHPAI:     knxip.RouteBackHPAI(knxip.ProtocolTCP),
		ClientPublicKey: kp.PublicKey,
	}

	body, _, err := engine.Do(ctx, knxip.SessionResponseService, handshakeTimeout,
		func() error {
			return s.tcp.Send(knxip.Encode(knxip.SessionRequestService, reqBody), nil)
		},
		func(knxip.Body, net.Addr) bool { return true },
	)
	if err != nil {
		return [32]byte{}, 0, fmt.Errorf("session: SessionRequest: %w", err)
	}
	resp, ok := body.(knxip.SessionResponseBody)
	if !ok {
		return [32]byte{}, 0, fmt.Errorf("session: unexpected response body %T", body)
	}

	header := knxip.EncodeHeader(knxip.SessionResponseService, 2+32+16)
	xor := secure.XOR32(kp.PublicKey, resp.ServerPublicKey)
	message := append(append(append([]byte(nil), header...), uint16Bytes(resp.SessionID)...), xor[:]...)

	deviceKey := secure.DeriveDeviceKey(s.cfg.DeviceAuthenticationPassword)
	ok, err = secure.VerifySessionMAC(deviceKey, message, resp.MAC)
	if err != nil {
		return [32]byte{}, 0, fmt.Errorf("session: verify SessionResponse MAC: %w", err)
	}
	if !ok {
		return [32]byte{}, 0, fmt.Errorf("session: SessionResponse MAC invalid (wrong device authentication password?)")
	}

	return resp.ServerPublicKey, resp.SessionID, nil
}

// authenticate sends SessionAuthenticate (wrapped in a SecureWrapper
// under sessionKey) and waits for a successful SessionStatus, per spec
// §4.8:
//
//	mac_input = authenticate_header || 0x00 || user_id || (pub_c XOR pub_s)
func (s *Session) authenticate(ctx context.Context, engine *reqresp.Engine, clientPub, serverPub [32]byte, sessionID uint16, sessionKey [16]byte) error {
	header := knxip.EncodeHeader(knxip.SessionAuthenticate, 2+16)
	xor := secure.XOR32(clientPub, serverPub)
	message := append(append([]byte(nil), header...), 0x00, s.cfg.UserID)
	message = append(message, xor[:]...)

	userKey := secure.DeriveUserKey(s.cfg.UserPassword)
	mac, err := secure.ComputeSessionMAC(userKey, message)
	if err != nil {
		return fmt.Errorf("session: compute SessionAuthenticate MAC: %w", err)
	}

	authBody := knxip.SessionAuthenticateBody{UserID: s.cfg.UserID, MAC: mac}
	authFrame := knxip.Encode(knxip.SessionAuthenticate, authBody)

	// The handshake has not set s.sessionID/s.sessionKey yet, so build
	// the wrapper directly instead of through Send/wrapOutgoing.
	s.sessionID = sessionID
	s.sessionKey = sessionKey
	wrapped, err := s.wrapOutgoing(authFrame)
	if err != nil {
		return fmt.Errorf("session: wrap SessionAuthenticate: %w", err)
	}

	body, _, err := engine.Do(ctx, knxip.SecureWrapperService, handshakeTimeout,
		func() error { return s.tcp.Send(wrapped, nil) },
		func(b knxip.Body, _ net.Addr) bool {
			sw, ok := b.(knxip.SecureWrapperBody)
			return ok && sw.SessionID == sessionID
		},
	)
	if err != nil {
		return fmt.Errorf("session: SessionAuthenticate: %w", err)
	}

	sw, ok := body.(knxip.SecureWrapperBody)
	if !ok {
		return fmt.Errorf("session: unexpected authenticate response body %T", body)
	}
	plain, ok := s.unwrapIncoming(sw)
	if !ok {
		return fmt.Errorf("session: SessionStatus SecureWrapper failed to decrypt")
	}
	_, respBody, err := knxip.Decode(plain)
	if err != nil {
		return fmt.Errorf("session: decode SessionStatus: %w", err)
	}
	status, ok := respBody.(knxip.SessionStatusBody)
	if !ok {
		return fmt.Errorf("session: expected SessionStatus, got %T", respBody)
	}
	if status.Status != knxip.StatusAuthenticationSuccess {
		return fmt.Errorf("session: authentication failed, status=0x%02x", byte(status.Status))
	}
	return nil
}

// keepaliveLoop sends SessionStatus(STATUS_KEEPALIVE) whenever the
// channel has been idle for cfg.KeepaliveInterval, per spec §4.8.
func (s *Session) keepaliveLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.KeepaliveInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.activityMu.Lock()
			idle := time.Since(s.lastSend)
			s.activityMu.Unlock()
			if idle < s.cfg.KeepaliveInterval {
				continue
			}
			frame := knxip.Encode(knxip.SessionStatusService, knxip.SessionStatusBody{Status: knxip.StatusKeepalive})
			if err := s.Send(frame); err != nil {
				s.cfg.Logger.Warn("session: keepalive send failed", "error", err)
			}
		}
	}
}

// Close sends SessionStatus(STATUS_CLOSE) and tears down the TCP
// connection, per spec §4.8.
func (s *Session) Close() error {
	var closeErr error
	s.stopOnce.Do(func() {
		frame := knxip.Encode(knxip.SessionStatusService, knxip.SessionStatusBody{Status: knxip.StatusClose})
		closeErr = s.Send(frame)
		close(s.done)
		s.teardown()
	})
	s.wg.Wait()
	return closeErr
}

func (s *Session) teardown() {
	if s.tcp != nil {
		s.tcp.Stop()
	}
	if s.registry != nil {
		s.registry.Stop()
	}
}

func randomTag() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}
