package session

import (
	"net"
	"testing"

	"github.com/nerrad567/knxip-core/knx/knxip"
)

func newTestSession() *Session {
	s := New(Config{})
	s.sessionID = 7
	s.sessionKey = [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	return s
}

func TestSession_WrapUnwrapRoundTrip(t *testing.T) {
	s := newTestSession()

	plain := []byte("a tunnelling request frame")
	wireFrame, err := s.wrapOutgoing(plain)
	if err != nil {
		t.Fatalf("wrapOutgoing() error = %v", err)
	}

	_, body, err := knxip.Decode(wireFrame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	wrapperBody, ok := body.(knxip.SecureWrapperBody)
	if !ok {
		t.Fatalf("Decode() body = %T, want SecureWrapperBody", body)
	}

	got, ok := s.unwrapIncoming(wrapperBody)
	if !ok {
		t.Fatal("unwrapIncoming() = false, want true for a freshly wrapped frame")
	}
	if string(got) != string(plain) {
		t.Fatalf("unwrapIncoming() = %q, want %q", got, plain)
	}
}

func TestSession_UnwrapIncoming_RejectsReplayedSequence(t *testing.T) {
	s := newTestSession()

	wireFrame, err := s.wrapOutgoing([]byte("first"))
	if err != nil {
		t.Fatalf("wrapOutgoing() error = %v", err)
	}
	_, body, err := knxip.Decode(wireFrame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	first := body.(knxip.SecureWrapperBody)

	if _, ok := s.unwrapIncoming(first); !ok {
		t.Fatal("first frame should be accepted")
	}
	if _, ok := s.unwrapIncoming(first); ok {
		t.Fatal("replayed frame should be rejected")
	}
}

func TestSession_UnwrapIncoming_RejectsBadMAC(t *testing.T) {
	s := newTestSession()

	wireFrame, err := s.wrapOutgoing([]byte("payload"))
	if err != nil {
		t.Fatalf("wrapOutgoing() error = %v", err)
	}
	_, body, err := knxip.Decode(wireFrame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	wrapperBody := body.(knxip.SecureWrapperBody)
	wrapperBody.MAC[0] ^= 0xFF

	if _, ok := s.unwrapIncoming(wrapperBody); ok {
		t.Fatal("tampered MAC should be rejected")
	}
}

func TestSession_OutgoingSequenceIsMonotonic(t *testing.T) {
	s := newTestSession()

	var last uint64
	for i := 0; i < 5; i++ {
		frame, err := s.wrapOutgoing([]byte{byte(i)})
		if err != nil {
			t.Fatalf("wrapOutgoing() error = %v", err)
		}
		_, body, err := knxip.Decode(frame)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		wrapper := body.(knxip.SecureWrapperBody)
		seq := uint48(wrapper.SequenceInfo[:])
		if i > 0 && seq <= last {
			t.Fatalf("sequence did not increase: %d after %d", seq, last)
		}
		last = seq
	}
}

func TestSession_HandleWrapper_IgnoresOtherSessionIDs(t *testing.T) {
	s := newTestSession()

	var delivered bool
	s.OnFrame(func([]byte, net.Addr) { delivered = true })
	_ = delivered

	foreign := knxip.SecureWrapperBody{SessionID: s.sessionID + 1}
	s.handleWrapper(knxip.SecureWrapperService, foreign, nil)

	if s.framesRx.Load() != 0 {
		t.Fatal("a frame for a foreign session ID must not be counted as received")
	}
}

func TestSession_HandleWrapper_PeerCloseEndsSession(t *testing.T) {
	s := newTestSession()

	var delivered bool
	s.OnFrame(func([]byte, net.Addr) { delivered = true })

	status := knxip.Encode(knxip.SessionStatusService, knxip.SessionStatusBody{Status: knxip.StatusClose})
	wireFrame, err := s.wrapOutgoing(status)
	if err != nil {
		t.Fatalf("wrapOutgoing() error = %v", err)
	}
	_, body, err := knxip.Decode(wireFrame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	s.handleWrapper(knxip.SecureWrapperService, body, nil)

	if delivered {
		t.Fatal("a SessionStatus must not reach the consumer")
	}
	select {
	case <-s.done:
	default:
		t.Fatal("a peer STATUS_CLOSE must end the session")
	}
}

func TestSession_HandleWrapper_KeepaliveDoesNotEndSession(t *testing.T) {
	s := newTestSession()

	var delivered bool
	s.OnFrame(func([]byte, net.Addr) { delivered = true })

	status := knxip.Encode(knxip.SessionStatusService, knxip.SessionStatusBody{Status: knxip.StatusKeepalive})
	wireFrame, err := s.wrapOutgoing(status)
	if err != nil {
		t.Fatalf("wrapOutgoing() error = %v", err)
	}
	_, body, err := knxip.Decode(wireFrame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	s.handleWrapper(knxip.SecureWrapperService, body, nil)

	if delivered {
		t.Fatal("a keepalive SessionStatus must not reach the consumer")
	}
	select {
	case <-s.done:
		t.Fatal("a keepalive must not end the session")
	default:
	}
}

func TestSession_HandleWrapper_DeliversInnerFrame(t *testing.T) {
	s := newTestSession()

	var got []byte
	s.OnFrame(func(raw []byte, _ net.Addr) { got = raw })

	inner := knxip.Encode(knxip.TunnellingAckService, knxip.TunnellingAckBody{ChannelID: 3, SeqCount: 9})
	wireFrame, err := s.wrapOutgoing(inner)
	if err != nil {
		t.Fatalf("wrapOutgoing() error = %v", err)
	}
	_, body, err := knxip.Decode(wireFrame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	s.handleWrapper(knxip.SecureWrapperService, body, nil)

	if string(got) != string(inner) {
		t.Fatalf("delivered frame = % X, want % X", got, inner)
	}
}
