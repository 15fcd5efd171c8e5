package reqresp

import (
	"context"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// Default timeouts named in spec §4.5 and §4.7/§4.8.
const (
	DefaultTimeout         = 1 * time.Second
	TunnellingAckTimeout    = 1 * time.Second
	ConnectionStateTimeout  = 10 * time.Second
	AuthenticationTimeout   = 10 * time.Second
	DisconnectTimeout       = 10 * time.Second
)

// ErrTimeout is returned by Do when no matching response arrives within
// the timeout.
type ErrTimeout struct{ ServiceType knxip.ServiceType }

func (e *ErrTimeout) Error() string {
	return "reqresp: timed out waiting for " + serviceTypeName(e.ServiceType)
}

func serviceTypeName(st knxip.ServiceType) string {
	return "service type 0x" + hex16(uint16(st))
}

func hex16(v uint16) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{
		digits[(v>>12)&0xF], digits[(v>>8)&0xF], digits[(v>>4)&0xF], digits[v&0xF],
	})
}

// Accept filters candidate responses: a listener on the transport's
// registry fires for every frame of the expected service type, but
// only one (matching channel ID, session ID, ...) actually completes
// this particular request.
type Accept func(body knxip.Body, from net.Addr) bool

// Engine sends a request and waits for a single matching response,
// registering and always unregistering exactly one listener on a
// transport.Registry. It has no other state: a new Engine (or the
// shared one returned by New) may run any number of sequential or
// concurrent Do calls, each with its own subscription.
type Engine struct {
	registry *transport.Registry
}

// New builds an Engine bound to registry.
func New(registry *transport.Registry) *Engine {
	return &Engine{registry: registry}
}

// Do sends a request via send, then waits up to timeout for a response
// of service type st for which accept returns true. It always
// unregisters its listener before returning — on success, on timeout,
// and on ctx cancellation, which is this engine's one invariant.
func (e *Engine) Do(ctx context.Context, st knxip.ServiceType, timeout time.Duration, send func() error, accept Accept) (knxip.Body, net.Addr, error) {
	type result struct {
		body knxip.Body
		from net.Addr
	}
	matched := make(chan result, 1)

	_, id := e.registry.On(st, func(_ knxip.ServiceType, body knxip.Body, from net.Addr) {
		if accept != nil && !accept(body, from) {
			return
		}
		select {
		case matched <- result{body: body, from: from}:
		default:
		}
	})
	defer e.registry.Off(st, id)

	if err := send(); err != nil {
		return nil, nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-matched:
		return r.body, r.from, nil
	case <-timer.C:
		return nil, nil, &ErrTimeout{ServiceType: st}
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
