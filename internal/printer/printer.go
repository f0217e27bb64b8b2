// internal/printer/printer.go
package printer

import (
	"errors"

	"go.uber.org/zap"

	"escpos-service/internal/buffer"
	"escpos-service/internal/charset"
	"escpos-service/internal/command"
	"escpos-service/internal/protocol"
)

var (
	// ErrInvalidArgument is returned for rejected formatting calls.
	ErrInvalidArgument = command.ErrInvalidArgument
	// ErrClosed is returned for any call made after Close.
	ErrClosed = errors.New("printer is closed")
	// ErrNoAdapter is returned when bytes must be sent but no adapter is bound.
	ErrNoAdapter = errors.New("printer has no adapter")
)

// Printer encodes formatting calls into ESC/POS bytes and hands them to an
// adapter on Flush. Formatting methods return the same *Printer so calls
// can be chained. A rejected call appends nothing and its error is kept for
// Err and LastErr; later valid calls still append and flush. Use after Close
// or without an adapter blocks every further call.
//
// A Printer is owned by one goroutine and must not share its adapter with
// another Printer.
type Printer struct {
	adapter  protocol.Adapter
	table    *command.Table
	buf      *buffer.Buffer
	encoding string
	logger   *zap.Logger

	closed    bool
	err       error
	last      error
	misuse    error
	pending   []<-chan error
	asyncErrs []error
}

// Option configures a Printer.
type Option func(*Printer)

// WithModel selects model-specific command overrides.
func WithModel(model command.Model) Option {
	return func(p *Printer) {
		p.table = command.For(model)
	}
}

// WithEncoding sets the initial charset.
func WithEncoding(name string) Option {
	return func(p *Printer) {
		p.encoding = name
	}
}

// WithLogger sets the logger used to report misuse.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Printer) {
		p.logger = logger
	}
}

// New returns a printer that writes to adapter. The adapter is borrowed:
// Close closes it, but opening it is the caller's job.
func New(adapter protocol.Adapter, opts ...Option) *Printer {
	p := &Printer{
		adapter:  adapter,
		table:    command.For(command.ModelGeneric),
		buf:      buffer.New(),
		encoding: charset.Default,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "printer"), zap.String("model", p.table.Model().String()))
	return p
}

// Err returns the first error recorded by any call.
func (p *Printer) Err() error {
	return p.err
}

// LastErr returns the error of the most recent call, nil if it succeeded.
func (p *Printer) LastErr() error {
	return p.last
}

// Model returns the active command model.
func (p *Printer) Model() command.Model {
	return p.table.Model()
}

// Encoding returns the active charset.
func (p *Printer) Encoding() string {
	return p.encoding
}

// Buffered returns the number of bytes waiting for the next flush.
func (p *Printer) Buffered() int {
	return p.buf.Len()
}

// Closed reports whether Close has been called.
func (p *Printer) Closed() bool {
	return p.closed
}

// fail records err as the result of op. Closed and no-adapter errors block
// every later call.
func (p *Printer) fail(op string, err error) {
	switch {
	case errors.Is(err, ErrClosed), errors.Is(err, ErrNoAdapter):
		p.logger.Error("Printer misuse", zap.String("op", op), zap.Error(err))
		if p.misuse == nil {
			p.misuse = err
		}
	default:
		p.logger.Warn("Printer call rejected", zap.String("op", op), zap.Error(err))
	}
	p.last = err
	if p.err == nil {
		p.err = err
	}
}

// ready reports whether a call may append bytes.
func (p *Printer) ready(op string) bool {
	switch {
	case p.closed:
		p.fail(op, ErrClosed)
		return false
	case p.misuse != nil:
		p.last = p.misuse
		return false
	}
	p.last = nil
	return true
}

// commit appends a fully built sequence, or records its error and appends
// nothing.
func (p *Printer) commit(op string, s *seq) *Printer {
	if !p.ready(op) {
		return p
	}
	if s.err != nil {
		p.fail(op, s.err)
		return p
	}
	p.buf.Write(s.buf.Flush())
	return p
}

// Flush submits the buffered bytes, possibly none, to the adapter. It
// returns immediately; the channel receives the write result.
func (p *Printer) Flush() <-chan error {
	if !p.ready("flush") {
		return done(p.last)
	}
	if p.adapter == nil {
		p.fail("flush", ErrNoAdapter)
		return done(ErrNoAdapter)
	}
	return p.adapter.Write(p.buf.Flush())
}

// syncFlush flushes as part of a formatting call. The completion is kept
// and reported by Close.
func (p *Printer) syncFlush() *Printer {
	if p.last != nil {
		return p
	}
	if p.adapter == nil {
		p.fail("flush", ErrNoAdapter)
		return p
	}
	p.track(p.adapter.Write(p.buf.Flush()))
	return p
}

// track keeps ch and collects results from completions already delivered.
func (p *Printer) track(ch <-chan error) {
	kept := p.pending[:0]
	for _, c := range p.pending {
		select {
		case err, ok := <-c:
			if ok && err != nil {
				p.asyncErrs = append(p.asyncErrs, err)
			}
		default:
			kept = append(kept, c)
		}
	}
	p.pending = append(kept, ch)
}

// Close flushes the buffer, waits for every outstanding write and then
// closes the adapter. The printer is unusable afterwards. The channel
// receives the joined errors of the writes and the adapter close; rejected
// calls were already reported by their own call.
func (p *Printer) Close() <-chan error {
	if p.closed {
		p.fail("close", ErrClosed)
		return done(ErrClosed)
	}
	p.closed = true

	if p.adapter == nil {
		p.fail("close", ErrNoAdapter)
		return done(ErrNoAdapter)
	}

	final := p.adapter.Write(p.buf.Flush())

	pending := p.pending
	errs := append([]error(nil), p.asyncErrs...)
	p.pending, p.asyncErrs = nil, nil
	adapter := p.adapter

	result := make(chan error, 1)
	go func() {
		defer close(result)
		for _, c := range pending {
			errs = append(errs, <-c)
		}
		errs = append(errs, <-final)
		errs = append(errs, <-adapter.Close())
		result <- errors.Join(errs...)
	}()
	return result
}

// done returns a completed channel carrying err.
func done(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// seq builds the bytes of one formatting call before they are committed.
type seq struct {
	table *command.Table
	buf   *buffer.Buffer
	err   error
}

func (p *Printer) begin() *seq {
	return &seq{table: p.table, buf: buffer.New()}
}

func (s *seq) cmd(names ...command.Name) *seq {
	for _, name := range names {
		if s.err != nil {
			return s
		}
		b, err := s.table.Lookup(name)
		if err != nil {
			s.err = err
			return s
		}
		s.buf.Write(b)
	}
	return s
}

func (s *seq) gen(name command.Name, args ...int) *seq {
	if s.err != nil {
		return s
	}
	b, err := s.table.Generate(name, args...)
	if err != nil {
		s.err = err
		return s
	}
	s.buf.Write(b)
	return s
}

func (s *seq) bytes(b []byte) *seq {
	if s.err == nil {
		s.buf.Write(b)
	}
	return s
}

func (s *seq) u8(n int) *seq {
	if s.err == nil {
		s.err = s.buf.WriteUint8(n)
	}
	return s
}

func (s *seq) u16(n int) *seq {
	if s.err == nil {
		s.err = s.buf.WriteUint16LE(n)
	}
	return s
}

func (s *seq) invalid(format string, args ...interface{}) *seq {
	if s.err == nil {
		s.err = command.Invalidf(format, args...)
	}
	return s
}
