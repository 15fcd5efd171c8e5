package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/queue"
)

// Listener is invoked once per received frame whose decoded service
// type matches the one it registered for.
type Listener func(st knxip.ServiceType, body knxip.Body, from net.Addr)

// dispatchQueueSize and dispatchWorkerCount bound the worker pool that
// decodes and fans out received frames, mirroring a bridge client's
// bounded callback queue so a slow listener cannot stall the socket
// read loop or spawn unbounded goroutines.
const (
	dispatchQueueSize   = 256
	dispatchWorkerCount = 4
)

type received struct {
	raw  []byte
	from net.Addr
}

type subscription struct {
	id uint64
	l  Listener
}

// Registry decodes received frames and fans them out to listeners
// filtered by service type, off the network read path.
type Registry struct {
	mu        sync.RWMutex
	listeners map[knxip.ServiceType][]subscription
	nextID    uint64

	queue *queue.Queue[received]
	done  chan struct{}
	wg    sync.WaitGroup

	onDrop  func(err error)
	started sync.Once
}

// NewRegistry builds a Registry and starts its worker pool. onDrop, if
// non-nil, is called whenever a raw frame is dropped (queue full) or
// fails to decode.
func NewRegistry(onDrop func(err error)) *Registry {
	r := &Registry{
		listeners: make(map[knxip.ServiceType][]subscription),
		queue:     queue.New[received](dispatchQueueSize),
		done:      make(chan struct{}),
		onDrop:    onDrop,
	}
	r.started.Do(func() {
		for range dispatchWorkerCount {
			r.wg.Add(1)
			go r.worker()
		}
	})
	return r
}

// On registers a listener for a single service type and returns a
// token that Off uses to remove it again. Long-lived callers (the
// transports themselves, Routing, Tunnelling) never call Off; the
// request/response engine always does, even on cancellation, per its
// single invariant.
func (r *Registry) On(st knxip.ServiceType, l Listener) (st2 knxip.ServiceType, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id = r.nextID
	r.listeners[st] = append(r.listeners[st], subscription{id: id, l: l})
	return st, id
}

// Off removes the subscription returned by a prior On call. Removing
// an already-removed or unknown id is a no-op.
func (r *Registry) Off(st knxip.ServiceType, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.listeners[st]
	for i, s := range subs {
		if s.id == id {
			r.listeners[st] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Feed queues a raw frame for decode-and-dispatch. Non-blocking: a full
// queue drops the frame rather than stall the caller's read loop.
func (r *Registry) Feed(raw []byte, from net.Addr) {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	if !r.queue.Push(received{raw: cp, from: from}) {
		r.drop(fmt.Errorf("dispatch queue full, dropped frame from %v", from))
	}
}

// Stop shuts down the worker pool. Feed after Stop is a no-op.
func (r *Registry) Stop() {
	select {
	case <-r.done:
		return
	default:
		close(r.done)
	}
	r.wg.Wait()
}

func (r *Registry) worker() {
	defer r.wg.Done()
	for {
		v, ok := r.queue.Pop(r.done)
		if !ok {
			return
		}
		r.handle(v)
	}
}

func (r *Registry) handle(v received) {
	st, body, err := knxip.Decode(v.raw)
	if err != nil {
		r.drop(err)
		return
	}

	r.mu.RLock()
	snapshot := append([]subscription(nil), r.listeners[st]...)
	r.mu.RUnlock()

	for _, s := range snapshot {
		r.invoke(s.l, st, body, v.from)
	}
}

func (r *Registry) invoke(l Listener, st knxip.ServiceType, body knxip.Body, from net.Addr) {
	defer func() {
		if rec := recover(); rec != nil {
			r.drop(fmt.Errorf("listener panic: %v", rec))
		}
	}()
	l(st, body, from)
}

func (r *Registry) drop(err error) {
	if r.onDrop != nil {
		r.onDrop(err)
	}
}
