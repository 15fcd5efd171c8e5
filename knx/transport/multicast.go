package transport

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"

	"golang.org/x/net/ipv4"
)

// multicastTTL matches routing's one-hop-past-the-local-segment
// requirement: KNXnet/IP routers forward within a site, not beyond it.
const multicastTTL = 2

// Multicast is the UDP multicast transport used for Routing: it joins
// a KNXnet/IP multicast group on a chosen interface, disables its own
// loopback, and sends/receives RoutingIndication-class frames on it.
type Multicast struct {
	group net.IP
	port  int
	iface *net.Interface

	registry *Registry

	mu    sync.RWMutex
	pconn *ipv4.PacketConn
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewMulticast builds a Multicast transport for group:port. iface may
// be nil to let the platform route the join through its default
// interface.
func NewMulticast(group net.IP, port int, iface *net.Interface, registry *Registry) *Multicast {
	return &Multicast{group: group, port: port, iface: iface, registry: registry}
}

// Connect opens the socket, applies SO_REUSEADDR (and, on macOS,
// SO_REUSEPORT), sets IP_MULTICAST_IF/TTL/loopback, joins the group via
// IP_ADD_MEMBERSHIP, and starts the receive loop.
func (t *Multicast) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pconn != nil {
		return ErrAlreadyConnected
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", bindAddress(t.group, t.port))
	if err != nil {
		return fmt.Errorf("transport: multicast listen: %w", err)
	}

	pconn := ipv4.NewPacketConn(pc)
	groupAddr := &net.UDPAddr{IP: t.group, Port: t.port}

	if err := pconn.JoinGroup(t.iface, groupAddr); err != nil {
		pc.Close()
		return fmt.Errorf("transport: join multicast group: %w", err)
	}
	if t.iface != nil {
		if err := pconn.SetMulticastInterface(t.iface); err != nil {
			pc.Close()
			return fmt.Errorf("transport: set multicast interface: %w", err)
		}
	}
	if err := pconn.SetMulticastTTL(multicastTTL); err != nil {
		pc.Close()
		return fmt.Errorf("transport: set multicast ttl: %w", err)
	}
	if err := pconn.SetMulticastLoopback(false); err != nil {
		pc.Close()
		return fmt.Errorf("transport: disable multicast loopback: %w", err)
	}

	t.pconn = pconn
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.receiveLoop(pconn, t.done)
	return nil
}

func (t *Multicast) receiveLoop(pconn *ipv4.PacketConn, done chan struct{}) {
	defer t.wg.Done()
	buf := make([]byte, udpReadBufferSize)

	for {
		select {
		case <-done:
			return
		default:
		}

		n, _, from, err := pconn.ReadFrom(buf)
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

// Send writes frame to addr, or to the group address if addr is nil.
func (t *Multicast) Send(frame []byte, addr *net.UDPAddr) error {
	t.mu.RLock()
	pconn := t.pconn
	t.mu.RUnlock()
	if pconn == nil {
		return ErrNotConnected
	}

	dest := addr
	if dest == nil {
		dest = &net.UDPAddr{IP: t.group, Port: t.port}
	}

	if _, err := pconn.WriteTo(frame, nil, dest); err != nil {
		return fmt.Errorf("transport: multicast write: %w", err)
	}
	return nil
}

// Stop leaves the group, closes the socket, and waits for the receive
// loop to exit.
func (t *Multicast) Stop() error {
	t.mu.Lock()
	pconn := t.pconn
	done := t.done
	t.pconn = nil
	t.mu.Unlock()

	if pconn == nil {
		return nil
	}
	close(done)
	_ = pconn.LeaveGroup(t.iface, &net.UDPAddr{IP: t.group, Port: t.port})
	pconn.Close()
	t.wg.Wait()
	return nil
}

// bindAddress picks the local bind address per platform: Windows binds
// the wildcard address, everywhere else binds the group address
// directly (macOS additionally gets SO_REUSEPORT, set in
// reuseAddrControl).
func bindAddress(group net.IP, port int) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("0.0.0.0:%d", port)
	}
	return fmt.Sprintf("%s:%d", group.String(), port)
}
