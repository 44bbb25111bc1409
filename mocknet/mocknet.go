// Package mocknet is an in-memory message router for running several parties
// in one process. Messages are keyed by phase and sender; a receiver collects
// the messages of one phase from a set of senders and blocks until all of them
// arrived or its context ends.
package mocknet

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrUnknownParty = errors.New("mocknet: unknown party")
	ErrDuplicate    = errors.New("mocknet: duplicate message")
	ErrClosed       = errors.New("mocknet: network closed")
)

// Interceptor sees every message before delivery. It returns the message to
// deliver, or nil to drop it.
type Interceptor func(from, to uint8, phase string, msg []byte) []byte

// Net connects a fixed set of endpoints.
type Net struct {
	mu        sync.RWMutex
	endpoints map[uint8]*Endpoint
	intercept Interceptor
	closed    bool
	log       *zap.Logger
}

// New creates a network with one endpoint per index.
func New(indices ...uint8) *Net {
	n := &Net{
		endpoints: make(map[uint8]*Endpoint, len(indices)),
		log:       zap.L().Named("mocknet"),
	}
	for _, idx := range indices {
		n.endpoints[idx] = &Endpoint{
			net:    n,
			index:  idx,
			inbox:  make(map[string]map[uint8][]byte),
			notify: make(chan struct{}),
		}
	}
	return n
}

// Intercept installs f on the network. A nil f removes the interceptor.
func (n *Net) Intercept(f Interceptor) {
	n.mu.Lock()
	n.intercept = f
	n.mu.Unlock()
}

// Endpoint returns the endpoint of party idx, or nil.
func (n *Net) Endpoint(idx uint8) *Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.endpoints[idx]
}

// Close wakes every blocked Collect; later sends fail.
func (n *Net) Close() {
	n.mu.Lock()
	n.closed = true
	eps := make([]*Endpoint, 0, len(n.endpoints))
	for _, ep := range n.endpoints {
		eps = append(eps, ep)
	}
	n.mu.Unlock()

	for _, ep := range eps {
		ep.mu.Lock()
		ep.wake()
		ep.mu.Unlock()
	}
}

// Endpoint is one party's view of the network.
type Endpoint struct {
	net   *Net
	index uint8

	mu     sync.Mutex
	inbox  map[string]map[uint8][]byte
	notify chan struct{}
}

func (e *Endpoint) Index() uint8 {
	return e.index
}

// Send delivers msg to party to under phase.
func (e *Endpoint) Send(ctx context.Context, to uint8, phase string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.net.mu.RLock()
	closed := e.net.closed
	dst := e.net.endpoints[to]
	intercept := e.net.intercept
	e.net.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if dst == nil || to == e.index {
		return errors.Wrapf(ErrUnknownParty, "send from %d to %d", e.index, to)
	}

	msg = append([]byte(nil), msg...)
	if intercept != nil {
		if msg = intercept(e.index, to, phase, msg); msg == nil {
			e.net.log.Debug("message dropped", zap.Uint8("from", e.index), zap.Uint8("to", to), zap.String("phase", phase))
			return nil
		}
	}

	dst.mu.Lock()
	defer dst.mu.Unlock()

	box, ok := dst.inbox[phase]
	if !ok {
		box = make(map[uint8][]byte)
		dst.inbox[phase] = box
	}
	if _, dup := box[e.index]; dup {
		return errors.Wrapf(ErrDuplicate, "phase %s from %d to %d", phase, e.index, to)
	}
	box[e.index] = msg
	dst.wake()
	return nil
}

// Collect waits for the phase message of every party in from. When ctx ends
// first it returns what has arrived together with the context error.
// Collected messages are removed from the inbox.
func (e *Endpoint) Collect(ctx context.Context, phase string, from []uint8) (map[uint8][]byte, error) {
	for {
		e.mu.Lock()
		box := e.inbox[phase]
		complete := true
		for _, idx := range from {
			if _, ok := box[idx]; !ok {
				complete = false
				break
			}
		}
		if complete {
			out := take(box, from)
			e.mu.Unlock()
			return out, nil
		}
		wait := e.notify
		e.mu.Unlock()

		e.net.mu.RLock()
		closed := e.net.closed
		e.net.mu.RUnlock()
		if closed {
			return e.partial(phase, from), ErrClosed
		}

		select {
		case <-ctx.Done():
			return e.partial(phase, from), ctx.Err()
		case <-wait:
		}
	}
}

func (e *Endpoint) partial(phase string, from []uint8) map[uint8][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return take(e.inbox[phase], from)
}

// wake releases every waiter. e.mu must be held.
func (e *Endpoint) wake() {
	close(e.notify)
	e.notify = make(chan struct{})
}

func take(box map[uint8][]byte, from []uint8) map[uint8][]byte {
	out := make(map[uint8][]byte, len(from))
	for _, idx := range from {
		if msg, ok := box[idx]; ok {
			out[idx] = msg
			delete(box, idx)
		}
	}
	return out
}
