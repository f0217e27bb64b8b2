// internal/discovery/serial/scanner_test.go
package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"escpos-service/internal/model"
)

func TestScanFiltersAndClassifies(t *testing.T) {
	s := NewScanner(nil, &Config{BaudRate: 19200, PortPatterns: []string{"/dev/ttyUSB*", "/dev/ttyS*"}})
	s.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", SerialNumber: "A1"},
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyAMA0"},
		}, nil
	}

	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 2)

	usb := printers[0]
	assert.Equal(t, model.ConnectionTypeSerial, usb.ConnectionType)
	assert.Equal(t, "/dev/ttyUSB0", usb.Connection["port"])
	assert.Equal(t, 19200, usb.Connection["baud_rate"])
	assert.Equal(t, "QinHeng CH340", usb.Vendor)
	assert.Equal(t, "A1", usb.SerialNumber)
	assert.Equal(t, 0.5, usb.Confidence)

	assert.Equal(t, 0.2, printers[1].Confidence)
	assert.Empty(t, printers[1].Vendor)
}

func TestScanListError(t *testing.T) {
	s := NewScanner(nil, nil)
	s.listPorts = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("denied")
	}

	_, err := s.Scan(context.Background())
	assert.ErrorContains(t, err, "failed to get serial ports")
}
