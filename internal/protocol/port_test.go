// internal/protocol/port_test.go
package protocol

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// recordingTransport records every call in order
type recordingTransport struct {
	statsRecorder

	mu       sync.Mutex
	calls    []string
	writes   [][]byte
	open     bool
	writeErr error
	delay    time.Duration
}

func (t *recordingTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "open")
	t.open = true
	return nil
}

func (t *recordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "close")
	t.open = false
	return nil
}

func (t *recordingTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *recordingTransport) Write(ctx context.Context, data []byte) error {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "write")
	if t.writeErr != nil {
		return t.writeErr
	}
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (t *recordingTransport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeConsole
}

func (t *recordingTransport) snapshot() ([]string, [][]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...), append([][]byte(nil), t.writes...)
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err, ok := <-ch:
		require.True(t, ok, "completion channel closed without a value")
		_, open := <-ch
		assert.False(t, open, "completion channel must be closed after one value")
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
		return nil
	}
}

func TestPortPreservesOrder(t *testing.T) {
	tr := &recordingTransport{delay: time.Millisecond}
	port := NewPort(context.Background(), tr, zap.NewNop())

	open := port.Open()
	w1 := port.Write([]byte{0x1B, 0x40})
	w2 := port.Write([]byte("hello"))
	w3 := port.Write([]byte{0x1B, 0x69})
	closed := port.Close()

	require.NoError(t, await(t, open))
	require.NoError(t, await(t, w1))
	require.NoError(t, await(t, w2))
	require.NoError(t, await(t, w3))
	require.NoError(t, await(t, closed))

	calls, writes := tr.snapshot()
	assert.Equal(t, []string{"open", "write", "write", "write", "close"}, calls)
	assert.Equal(t, [][]byte{{0x1B, 0x40}, []byte("hello"), {0x1B, 0x69}}, writes)

	<-port.Done()
}

func TestPortCopiesWriteData(t *testing.T) {
	tr := &recordingTransport{}
	port := NewPort(context.Background(), tr, zap.NewNop())
	require.NoError(t, await(t, port.Open()))

	data := []byte("abc")
	done := port.Write(data)
	data[0] = 'X'
	require.NoError(t, await(t, done))

	_, writes := tr.snapshot()
	assert.Equal(t, []byte("abc"), writes[0])
}

func TestPortSkipsEmptyWrite(t *testing.T) {
	tr := &recordingTransport{}
	port := NewPort(context.Background(), tr, zap.NewNop())

	require.NoError(t, await(t, port.Write(nil)))
	require.NoError(t, await(t, port.Close()))

	calls, _ := tr.snapshot()
	assert.Equal(t, []string{"close"}, calls)
}

func TestPortWrapsTransportErrors(t *testing.T) {
	cause := errors.New("device detached")
	tr := &recordingTransport{writeErr: cause}
	port := NewPort(context.Background(), tr, zap.NewNop())
	require.NoError(t, await(t, port.Open()))

	err := await(t, port.Write([]byte{0x0A}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
	assert.Equal(t, model.ConnectionTypeConsole, te.Type)
}

func TestPortRejectsAfterClose(t *testing.T) {
	tr := &recordingTransport{}
	port := NewPort(context.Background(), tr, zap.NewNop())

	closed := port.Close()
	late := port.Write([]byte{0x0A})

	require.NoError(t, await(t, closed))
	err := await(t, late)
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, err, ErrTransport)

	assert.ErrorIs(t, await(t, port.Close()), ErrPortClosed)
}

func TestPortCancelAbortsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &recordingTransport{}
	port := NewPort(ctx, tr, zap.NewNop())
	require.NoError(t, await(t, port.Open()))

	cancel()
	<-port.Done()

	assert.ErrorIs(t, await(t, port.Write([]byte{0x0A})), ErrPortClosed)
	assert.False(t, tr.IsOpen())
}

func TestConsoleHexDump(t *testing.T) {
	data := []byte{0x1B, 0x40, 0x0A, 0x1D, 0x56, 0x41, 0x00, 0xFF, 0x1B, 0x69}
	assert.Equal(t, "1B 40 0A 1D 56 41 00 FF\n1B 69\n", HexDump(data, 8))
	assert.Equal(t, "", HexDump(nil, 8))
	assert.Equal(t, "0A 0B\n0C\n", HexDump([]byte{0x0A, 0x0B, 0x0C}, 2))
}

func TestConsoleConnectionThroughPort(t *testing.T) {
	var out bytes.Buffer
	conn := NewConsoleConnection(&ConsoleConfig{}, &out, zap.NewNop())
	port := NewPort(context.Background(), conn, zap.NewNop())

	err := await(t, port.Write([]byte{0x0A}))
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, await(t, port.Open()))
	require.NoError(t, await(t, port.Write([]byte{0x1B, 0x40})))
	require.NoError(t, await(t, port.Write([]byte("Hi"))))
	require.NoError(t, await(t, port.Close()))

	assert.Equal(t, "1B 40\n48 69\n", out.String())

	stats := conn.Stats()
	assert.Equal(t, int64(4), stats.BytesWritten)
	assert.Equal(t, int64(2), stats.OperationCount)
	assert.False(t, stats.IsConnected)
}
