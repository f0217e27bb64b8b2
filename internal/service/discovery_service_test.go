// internal/service/discovery_service_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escpos-service/internal/config"
	"escpos-service/internal/discovery"
	"escpos-service/internal/model"
)

type stubScanner struct {
	name     string
	printers []*discovery.DiscoveredPrinter
	err      error
	block    bool
}

func (s *stubScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPrinter, error) {
	if s.block {
		<-ctx.Done()
		return s.printers, ctx.Err()
	}
	return s.printers, s.err
}
func (s *stubScanner) GetScannerType() string { return s.name }
func (s *stubScanner) IsAvailable() bool      { return true }

func discoveryConfig() *config.Config {
	return &config.Config{
		Discovery: config.DiscoveryConfig{Timeout: 100 * time.Millisecond},
		Printers: []config.PrinterConfig{
			{
				ID:             "kitchen",
				ConnectionType: "TCP",
				Connection:     map[string]interface{}{"host": "10.0.0.5", "port": 9100},
			},
			{
				ID:             "bar",
				ConnectionType: "USB",
				Connection:     map[string]interface{}{"vendor_id": "0x28e9", "product_id": "0x0289"},
			},
		},
	}
}

func newDiscovery(scanners ...discovery.PrinterScanner) *DiscoveryService {
	manager := discovery.NewScannerManager(nil)
	for _, s := range scanners {
		manager.RegisterScanner(s)
	}
	return NewDiscoveryServiceWithManager(discoveryConfig(), manager, nil)
}

func TestDiscoveryScanMarksConfiguredPrinters(t *testing.T) {
	ds := newDiscovery(
		&stubScanner{name: "tcp", printers: []*discovery.DiscoveredPrinter{
			{ConnectionType: model.ConnectionTypeTCP, Connection: map[string]interface{}{"host": "10.0.0.5", "port": 9100}},
			{ConnectionType: model.ConnectionTypeTCP, Connection: map[string]interface{}{"host": "10.0.0.6", "port": 9100}},
		}},
		&stubScanner{name: "usb", printers: []*discovery.DiscoveredPrinter{
			{ConnectionType: model.ConnectionTypeUSB, Connection: map[string]interface{}{"vendor_id": "0x28E9", "product_id": "0x0289"}},
		}},
	)

	result, err := ds.Scan(context.Background(), "all")
	require.NoError(t, err)
	require.Equal(t, 3, result.PrintersFound)
	assert.Equal(t, "all", result.ScanType)

	// scanners run in name order
	assert.Equal(t, "kitchen", result.Printers[0].ConfiguredAs)
	assert.Empty(t, result.Printers[1].ConfiguredAs)
	assert.Equal(t, "bar", result.Printers[2].ConfiguredAs)

	result, err = ds.Scan(context.Background(), "USB")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PrintersFound)
}

func TestDiscoveryScanErrors(t *testing.T) {
	ds := newDiscovery(&stubScanner{name: "usb", err: errors.New("libusb: access denied")})

	_, err := ds.Scan(context.Background(), "bluetooth")
	assert.ErrorIs(t, err, ErrUnsupportedScanType)

	_, err = ds.Scan(context.Background(), "usb")
	assert.ErrorContains(t, err, "access denied")

	_, err = ds.Scan(context.Background(), "tcp")
	assert.ErrorContains(t, err, "scanner type not found")
}

func TestDiscoveryScanTimeoutKeepsPartialResults(t *testing.T) {
	ds := newDiscovery(&stubScanner{name: "tcp", block: true, printers: []*discovery.DiscoveredPrinter{
		{ConnectionType: model.ConnectionTypeTCP, Connection: map[string]interface{}{"host": "10.0.0.9", "port": 9100}},
	}})

	result, err := ds.Scan(context.Background(), "tcp")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PrintersFound)
	assert.Equal(t, []string{"tcp"}, ds.AvailableScanners())
}
