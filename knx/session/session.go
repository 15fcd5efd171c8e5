package session

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/secure"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// KeepaliveInterval is SESSION_TIMEOUT (60s) minus 10s of margin, per
// spec §4.8.
const KeepaliveInterval = 50 * time.Second

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

// Config configures a Secure session handshake and the channel it
// establishes.
type Config struct {
	Gateway                     net.TCPAddr
	DeviceAuthenticationPassword string
	UserID                      uint8
	UserPassword                string
	KeepaliveInterval           time.Duration
	Logger                      Logger
}

func (c *Config) applyDefaults() {
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = KeepaliveInterval
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// Stats reports session channel counters.
type Stats struct {
	FramesTx     uint64
	FramesRx     uint64
	ErrorsTotal  uint64
	LastActivity time.Time
	SessionID    uint16
}

// Session is an established Secure TCP channel: the handshake is
// complete, session_key is derived, and every frame sent or received
// through it is SecureWrapper-enveloped. Callers hand it the already
// wire-encoded inner KNXnet/IP frame bytes to send (typically produced
// by knx/tunnel's request encoding) and receive decrypted inner frame
// bytes back through the OnFrame callback.
type Session struct {
	cfg Config

	tcp      *transport.TCP
	registry *transport.Registry

	onFrameMu sync.RWMutex
	onFrame   func(raw []byte, from net.Addr)

	sessionID  uint16
	sessionKey [16]byte

	seqMu           sync.Mutex
	outSeq          uint64
	lastAcceptedSeq uint64
	haveAccepted    bool

	activityMu sync.Mutex
	lastSend   time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	framesTx     atomic.Uint64
	framesRx     atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64
}

// New builds a Session. Call Connect to dial and perform the
// handshake.
func New(cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{cfg: cfg, done: make(chan struct{})}
}

// OnFrame registers the callback invoked with every decrypted inner
// frame this session receives, once the handshake has completed.
func (s *Session) OnFrame(f func(raw []byte, from net.Addr)) {
	s.onFrameMu.Lock()
	defer s.onFrameMu.Unlock()
	s.onFrame = f
}

func (s *Session) deliverFrame(raw []byte, from net.Addr) {
	s.onFrameMu.RLock()
	f := s.onFrame
	s.onFrameMu.RUnlock()
	if f != nil {
		f(raw, from)
	}
}

// Stats reports current session counters.
func (s *Session) Stats() Stats {
	return Stats{
		FramesTx:     s.framesTx.Load(),
		FramesRx:     s.framesRx.Load(),
		ErrorsTotal:  s.errorsTotal.Load(),
		LastActivity: time.Unix(0, s.lastActivity.Load()),
		SessionID:    s.sessionID,
	}
}

// Send wraps raw (a complete, already-encoded inner KNXnet/IP frame)
// in a SecureWrapper using the session key and the next monotonic
// sequence value, and writes it to the TCP connection.
func (s *Session) Send(raw []byte) error {
	wrapped, err := s.wrapOutgoing(raw)
	if err != nil {
		return fmt.Errorf("session: wrap outgoing frame: %w", err)
	}
	if err := s.tcp.Send(wrapped, nil); err != nil {
		return fmt.Errorf("session: send: %w", err)
	}
	s.framesTx.Add(1)
	s.activityMu.Lock()
	s.lastSend = time.Now()
	s.activityMu.Unlock()
	s.lastActivity.Store(time.Now().UnixNano())
	return nil
}

// wrapOutgoing builds the SecureWrapper envelope for the next outgoing
// frame, consuming the next value of the strictly-monotonic 48-bit
// sequence counter even if the write that follows fails (spec §4.8:
// "a failed send still consumes its sequence value").
func (s *Session) wrapOutgoing(plain []byte) ([]byte, error) {
	s.seqMu.Lock()
	seq := s.outSeq
	s.outSeq++
	s.seqMu.Unlock()

	var seqBytes [6]byte
	putUint48(seqBytes[:], seq)
	tag := randomTag()
	nonce := secure.Nonce{Sequence: seqBytes, Serial: secure.XKNXSerial, MsgTag: tag}

	wrapperBodyLen := 16 + len(plain) + 16
	header := knxip.EncodeHeader(knxip.SecureWrapperService, wrapperBodyLen)
	aad := append(append([]byte(nil), header...), uint16Bytes(s.sessionID)...)

	ciphertext, mac, err := secure.EncryptWrapper(s.sessionKey, nonce, aad, plain)
	if err != nil {
		return nil, err
	}

	body := knxip.SecureWrapperBody{
		SessionID:     s.sessionID,
		SequenceInfo:  seqBytes,
		SerialNumber:  secure.XKNXSerial,
		MessageTag:    tag,
		EncryptedData: ciphertext,
		MAC:           mac,
	}
	return knxip.Encode(knxip.SecureWrapperService, body), nil
}

// unwrapIncoming verifies replay ordering and the MAC, then decrypts
// body's payload. Per spec §4.8, a sequence that is not strictly
// greater than the last accepted one, or a MAC mismatch, is a silent
// discard — never a fatal error.
func (s *Session) unwrapIncoming(body knxip.SecureWrapperBody) ([]byte, bool) {
	seq := uint48(body.SequenceInfo[:])

	s.seqMu.Lock()
	if s.haveAccepted && seq <= s.lastAcceptedSeq {
		s.seqMu.Unlock()
		return nil, false
	}
	s.seqMu.Unlock()

	wrapperBodyLen := 16 + len(body.EncryptedData) + 16
	header := knxip.EncodeHeader(knxip.SecureWrapperService, wrapperBodyLen)
	aad := append(append([]byte(nil), header...), uint16Bytes(body.SessionID)...)
	nonce := secure.Nonce{Sequence: body.SequenceInfo, Serial: body.SerialNumber, MsgTag: body.MessageTag}

	plain, err := secure.DecryptWrapper(s.sessionKey, nonce, aad, body.EncryptedData, body.MAC)
	if err != nil {
		return nil, false
	}

	s.seqMu.Lock()
	s.lastAcceptedSeq = seq
	s.haveAccepted = true
	s.seqMu.Unlock()
	return plain, true
}

func (s *Session) handleWrapper(_ knxip.ServiceType, b knxip.Body, from net.Addr) {
	body, ok := b.(knxip.SecureWrapperBody)
	if !ok || body.SessionID != s.sessionID {
		return
	}
	plain, ok := s.unwrapIncoming(body)
	if !ok {
		s.errorsTotal.Add(1)
		s.cfg.Logger.Debug("session: discarding SecureWrapper (bad sequence or MAC)")
		return
	}
	s.framesRx.Add(1)
	s.lastActivity.Store(time.Now().UnixNano())

	// SessionStatus frames address this channel itself; everything
	// else belongs to the consumer.
	if st, inner, err := knxip.Decode(plain); err == nil && st == knxip.SessionStatusService {
		if status, ok := inner.(knxip.SessionStatusBody); ok {
			s.handleStatus(status.Status)
			return
		}
	}
	s.deliverFrame(plain, from)
}

// handleStatus reacts to a SessionStatus received from the peer. A
// close, timeout, or unauthenticated status ends the session locally
// without sending a close of our own.
func (s *Session) handleStatus(status knxip.StatusCode) {
	switch status {
	case knxip.StatusClose, knxip.StatusTimeout, knxip.StatusUnauthenticated:
		s.cfg.Logger.Info("session: peer ended the Secure channel", "status", fmt.Sprintf("0x%02x", byte(status)))
		s.closeLocal()
	case knxip.StatusKeepalive:
		// Peer keepalive; activity was already recorded.
	default:
		s.cfg.Logger.Debug("session: ignoring SessionStatus", "status", fmt.Sprintf("0x%02x", byte(status)))
	}
}

// closeLocal tears the channel down without emitting a close status,
// used when the peer already ended the session.
func (s *Session) closeLocal() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.teardown()
	})
}

func putUint48(b []byte, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	copy(b, buf[2:8])
}

func uint48(b []byte) uint64 {
	var buf [8]byte
	copy(buf[2:8], b)
	return binary.BigEndian.Uint64(buf[:])
}

func uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
