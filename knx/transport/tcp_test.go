package transport

import (
	"net"
	"testing"
	"time"

	"github.com/nerrad567/knxip-core/knx/knxip"
)

// startEchoServer accepts one connection and writes back whatever
// bytes it reads, so TestTCP_ReassemblesHeaderAndBody can exercise the
// client's receive-side reassembly without a second TCP transport.
func startEchoServer(t *testing.T, frame []byte, splits []int) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		start := 0
		for _, end := range splits {
			conn.Write(frame[start:end])
			time.Sleep(20 * time.Millisecond)
			start = end
		}
		conn.Write(frame[start:])
	}()

	t.Cleanup(func() { ln.Close() })
	return ln.Addr()
}

func TestTCP_ReassemblesHeaderAndBody(t *testing.T) {
	frame := knxip.Encode(knxip.DisconnectResponse, knxip.DisconnectResponseBody{ChannelID: 3, Status: knxip.StatusNoError})

	// Split the frame mid-header and mid-body to exercise reassembly
	// across multiple TCP segments.
	addr := startEchoServer(t, frame, []int{3, len(frame) - 1})

	received := make(chan knxip.Body, 1)
	registry := NewRegistry(nil)
	registry.On(knxip.DisconnectResponse, func(st knxip.ServiceType, body knxip.Body, from net.Addr) {
		received <- body
	})
	defer registry.Stop()

	tcpAddr := addr.(*net.TCPAddr)
	client := NewTCP(*tcpAddr, registry)
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	defer client.Stop()

	select {
	case body := <-received:
		resp, ok := body.(knxip.DisconnectResponseBody)
		if !ok || resp.ChannelID != 3 {
			t.Fatalf("received = %#v, want DisconnectResponseBody{ChannelID:3}", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never reassembled the frame")
	}
}

func TestTCP_SendBeforeConnectFails(t *testing.T) {
	c := NewTCP(net.TCPAddr{}, NewRegistry(nil))
	if err := c.Send([]byte{1}, nil); err != ErrNotConnected {
		t.Errorf("Send() before Connect = %v, want ErrNotConnected", err)
	}
}
