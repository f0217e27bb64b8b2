// internal/buffer/buffer.go
package buffer

import (
	"bytes"
	"encoding/binary"

	"escpos-service/internal/command"
)

// Buffer accumulates encoded command bytes until they are flushed to a
// transport. It is owned by a single printer and is not safe for concurrent
// use.
type Buffer struct {
	buf bytes.Buffer
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Write appends p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	return b.buf.WriteByte(c)
}

// WriteString appends the raw bytes of s.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.buf.WriteString(s)
}

// WriteUint8 appends n as one unsigned byte.
func (b *Buffer) WriteUint8(n int) error {
	if n < 0 || n > 0xFF {
		return command.Invalidf("value %d does not fit in uint8", n)
	}
	return b.buf.WriteByte(byte(n))
}

// WriteUint16LE appends n as two bytes, low byte first.
func (b *Buffer) WriteUint16LE(n int) error {
	if n < 0 || n > 0xFFFF {
		return command.Invalidf("value %d does not fit in uint16", n)
	}
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(n))
	b.buf.Write(tmp[:])
	return nil
}

// Len returns the number of pending bytes.
func (b *Buffer) Len() int {
	return b.buf.Len()
}

// Flush returns the bytes appended since the previous flush and empties the
// buffer. The returned slice is owned by the caller.
func (b *Buffer) Flush() []byte {
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	b.buf.Reset()
	return out
}
