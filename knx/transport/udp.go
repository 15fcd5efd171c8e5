package transport

import (
	"fmt"
	"net"
	"sync"
)

// udpReadBufferSize is sized for the largest frame this codec ever
// produces: a SecureWrapper around a maximal TunnellingRequest.
const udpReadBufferSize = 2048

// UDP is a unicast UDP transport: bound to a local address, with a
// default peer set at construction and overridable per Send.
type UDP struct {
	localAddr net.UDPAddr
	peer      *net.UDPAddr
	registry  *Registry

	mu   sync.RWMutex
	conn *net.UDPConn
	done chan struct{}
	wg   sync.WaitGroup
}

// NewUDP builds a unicast UDP transport. local may have a zero port to
// let the kernel assign one. peer is the default send destination; it
// may be nil if every Send call supplies its own address.
func NewUDP(local net.UDPAddr, peer *net.UDPAddr, registry *Registry) *UDP {
	return &UDP{localAddr: local, peer: peer, registry: registry}
}

// Connect binds the local socket and starts the receive loop.
func (t *UDP) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return ErrAlreadyConnected
	}

	conn, err := net.ListenUDP("udp", &t.localAddr)
	if err != nil {
		return fmt.Errorf("transport: udp listen: %w", err)
	}
	t.conn = conn
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.receiveLoop(conn, t.done)
	return nil
}

func (t *UDP) receiveLoop(conn *net.UDPConn, done chan struct{}) {
	defer t.wg.Done()
	buf := make([]byte, udpReadBufferSize)

	for {
		select {
		case <-done:
			return
		default:
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			continue
		}
		if n == 0 {
			continue
		}
		t.registry.Feed(buf[:n], from)
	}
}

// Send writes frame to addr, or to the default peer if addr is nil.
func (t *UDP) Send(frame []byte, addr *net.UDPAddr) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	dest := addr
	if dest == nil {
		dest = t.peer
	}
	if dest == nil {
		return fmt.Errorf("transport: udp send: %w", ErrNotConnected)
	}

	if _, err := conn.WriteToUDP(frame, dest); err != nil {
		return fmt.Errorf("transport: udp write: %w", err)
	}
	return nil
}

// LocalAddr reports the bound local address, valid after Connect.
func (t *UDP) LocalAddr() *net.UDPAddr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Stop closes the socket and waits for the receive loop to exit.
func (t *UDP) Stop() error {
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
