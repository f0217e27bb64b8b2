// internal/command/errors.go
package command

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for bad enum values, out-of-range numeric
// parameters and malformed payloads.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrUnknownCommand is returned when a name is not present in the table.
var ErrUnknownCommand = fmt.Errorf("%w: unknown command", ErrInvalidArgument)

// Invalidf builds an error that matches ErrInvalidArgument.
func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
