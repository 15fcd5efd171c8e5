package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// tcpHeaderLen is the fixed KNXnet/IP header size: header_len,
// protocol_version, service_type (2 bytes), total_length (2 bytes).
const tcpHeaderLen = 6

// TCP is a single persistent stream connection. Because TCP delivers a
// byte stream rather than datagrams, the receive path reassembles a
// complete frame before dispatching it: read the 6-byte header, decode
// total_length, then read exactly that many more bytes.
type TCP struct {
	addr     net.TCPAddr
	registry *Registry

	mu   sync.RWMutex
	conn *net.TCPConn
	done chan struct{}
	wg   sync.WaitGroup
}

// NewTCP builds a TCP transport that will dial addr on Connect.
func NewTCP(addr net.TCPAddr, registry *Registry) *TCP {
	return &TCP{addr: addr, registry: registry}
}

// Connect dials the remote address and starts the receive loop.
func (t *TCP) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return ErrAlreadyConnected
	}

	conn, err := net.DialTCP("tcp", nil, &t.addr)
	if err != nil {
		return fmt.Errorf("transport: tcp dial: %w", err)
	}
	t.conn = conn
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.receiveLoop(conn, t.done)
	return nil
}

func (t *TCP) receiveLoop(conn *net.TCPConn, done chan struct{}) {
	defer t.wg.Done()

	header := make([]byte, tcpHeaderLen)
	for {
		select {
		case <-done:
			return
		default:
		}

		if _, err := io.ReadFull(conn, header); err != nil {
			select {
			case <-done:
				return
			default:
			}
			return
		}

		totalLen := binary.BigEndian.Uint16(header[4:6])
		if totalLen < tcpHeaderLen {
			continue
		}

		frame := make([]byte, totalLen)
		copy(frame, header)
		if _, err := io.ReadFull(conn, frame[tcpHeaderLen:]); err != nil {
			select {
			case <-done:
				return
			default:
			}
			return
		}

		t.registry.Feed(frame, conn.RemoteAddr())
	}
}

// Send writes frame on the persistent connection. addr is accepted for
// interface uniformity with the UDP transports but ignored: a TCP
// transport has exactly one peer.
func (t *TCP) Send(frame []byte, _ net.Addr) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("transport: tcp write: %w", err)
	}
	return nil
}

// Stop closes the connection and waits for the receive loop to exit.
func (t *TCP) Stop() error {
	t.mu.Lock()
	conn := t.conn
	done := t.done
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(done)
	conn.Close()
	t.wg.Wait()
	return nil
}
