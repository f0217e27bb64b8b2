// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"escpos-service/internal/model"
)

var (
	// ErrTransport matches every failure reported through an Adapter
	// completion channel.
	ErrTransport = errors.New("transport failure")
	// ErrShortWrite is reported when a transport accepts fewer bytes than
	// it was given.
	ErrShortWrite = errors.New("short write")
	// ErrNotOpen is reported when writing to a transport that is not open.
	ErrNotOpen = errors.New("connection not open")
	// ErrPortClosed is reported for requests submitted after Close.
	ErrPortClosed = errors.New("port closed")
)

// TransportError carries the operation and connection type of a transport
// failure.
type TransportError struct {
	Op   string
	Type model.ConnectionType
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", strings.ToLower(string(e.Type)), e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func wrapTransportError(op string, connType model.ConnectionType, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Type: connType, Err: err}
}

func shortWrite(n, total int) error {
	return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, total)
}
