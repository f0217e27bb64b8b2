// internal/protocol/port.go
package protocol

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Adapter is the asynchronous contract a printer talks to. Every call
// returns a channel that receives exactly one result and is then closed.
type Adapter interface {
	Open() <-chan error
	Write(data []byte) <-chan error
	Close() <-chan error
}

type opKind int

const (
	opOpen opKind = iota
	opWrite
	opClose
)

func (k opKind) String() string {
	switch k {
	case opOpen:
		return "open"
	case opWrite:
		return "write"
	case opClose:
		return "close"
	default:
		return "unknown"
	}
}

type request struct {
	kind opKind
	data []byte
	done chan error
}

// Port implements Adapter over a synchronous Transport. A single worker
// goroutine executes requests in submission order, so two writes never
// interleave on the wire. The worker exits after Close completes or when
// the port context is cancelled.
type Port struct {
	ctx       context.Context
	transport Transport
	logger    *zap.Logger

	mutex   sync.Mutex
	queue   []request
	closing bool
	wake    chan struct{}
	done    chan struct{}
}

// NewPort starts the worker for transport. Cancelling ctx aborts queued
// requests and closes the transport.
func NewPort(ctx context.Context, transport Transport, logger *zap.Logger) *Port {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Port{
		ctx:       ctx,
		transport: transport,
		logger: logger.With(
			zap.String("component", "port"),
			zap.String("protocol", string(transport.GetProtocolType())),
		),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

// Open opens the underlying transport.
func (p *Port) Open() <-chan error {
	return p.submit(opOpen, nil)
}

// Write queues data for the transport. The slice is copied.
func (p *Port) Write(data []byte) <-chan error {
	buf := make([]byte, len(data))
	copy(buf, data)
	return p.submit(opWrite, buf)
}

// Close closes the transport once every earlier request has completed.
func (p *Port) Close() <-chan error {
	return p.submit(opClose, nil)
}

// Done is closed when the worker has exited.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Transport returns the wrapped transport.
func (p *Port) Transport() Transport {
	return p.transport
}

func (p *Port) submit(kind opKind, data []byte) <-chan error {
	done := make(chan error, 1)

	p.mutex.Lock()
	if p.closing {
		p.mutex.Unlock()
		done <- wrapTransportError(kind.String(), p.transport.GetProtocolType(), ErrPortClosed)
		close(done)
		return done
	}
	if kind == opClose {
		p.closing = true
	}
	p.queue = append(p.queue, request{kind: kind, data: data, done: done})
	p.mutex.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return done
}

func (p *Port) run() {
	defer close(p.done)

	for {
		p.mutex.Lock()
		if len(p.queue) == 0 {
			p.mutex.Unlock()
			select {
			case <-p.wake:
				continue
			case <-p.ctx.Done():
				p.abort(p.ctx.Err())
				return
			}
		}
		req := p.queue[0]
		p.queue[0] = request{}
		p.queue = p.queue[1:]
		p.mutex.Unlock()

		req.done <- p.execute(req)
		close(req.done)

		if req.kind == opClose {
			return
		}
	}
}

func (p *Port) execute(req request) error {
	var err error
	switch req.kind {
	case opOpen:
		err = p.transport.Open(p.ctx)
	case opWrite:
		if len(req.data) == 0 {
			return nil
		}
		err = p.transport.Write(p.ctx, req.data)
		if err == nil {
			p.logger.Debug("Port write completed", zap.Int("bytes", len(req.data)))
		}
	case opClose:
		err = p.transport.Close()
	}

	if err != nil {
		p.logger.Error("Port request failed",
			zap.String("op", req.kind.String()),
			zap.Error(err),
		)
		return wrapTransportError(req.kind.String(), p.transport.GetProtocolType(), err)
	}
	return nil
}

// abort fails every queued request with cause and releases the transport.
func (p *Port) abort(cause error) {
	p.mutex.Lock()
	p.closing = true
	pending := p.queue
	p.queue = nil
	p.mutex.Unlock()

	for _, req := range pending {
		req.done <- wrapTransportError(req.kind.String(), p.transport.GetProtocolType(), cause)
		close(req.done)
	}

	if p.transport.IsOpen() {
		if err := p.transport.Close(); err != nil {
			p.logger.Warn("Failed to close transport after cancellation", zap.Error(err))
		}
	}
	p.logger.Info("Port aborted", zap.Error(cause), zap.Int("pending", len(pending)))
}
