// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"escpos-service/internal/discovery"
	"escpos-service/internal/model"
	"escpos-service/internal/protocol"
)

// Scanner implements USB printer scanning
type Scanner struct {
	logger       *zap.Logger
	knownDevices *DeviceDatabase
	config       *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout   time.Duration `json:"scan_timeout"`
	FilterByClass bool          `json:"filter_by_class"`
	WriteTimeout  time.Duration `json:"write_timeout"`
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{
			ScanTimeout:   10 * time.Second,
			FilterByClass: true,
			WriteTimeout:  5 * time.Second,
		}
	}

	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: NewDeviceDatabase(),
		config:       config,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable checks if USB scanning is supported on this system
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return true
	default:
		s.logger.Warn("USB scanning support unknown for OS", zap.String("os", runtime.GOOS))
		return false
	}
}

// Scan enumerates USB devices and reports the receipt printers among them
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPrinter, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB printer scan")

	if s.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ScanTimeout)
		defer cancel()
	}

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return s.Identify(desc) != nil
	})
	defer s.closeAllDevices(devices)
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err != nil {
		// Some devices could not be opened; the rest are still usable
		s.logger.Warn("Partial USB enumeration", zap.Error(err))
	}

	var found []*discovery.DiscoveredPrinter
	for _, device := range devices {
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
		printer := s.Identify(device.Desc)
		if printer == nil {
			continue
		}
		s.describe(device, printer)
		found = append(found, printer)
	}

	found = s.postProcess(found)

	s.logger.Info("USB printer scan completed",
		zap.Int("printers_found", len(found)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return found, nil
}

// Identify returns a discovered printer for a known product, or for a device
// exposing a printer class bulk OUT endpoint, and nil otherwise. Chip
// vendors also ship non-printers, so an unknown product of a known vendor
// needs the endpoint too.
func (s *Scanner) Identify(desc *gousb.DeviceDesc) *discovery.DiscoveredPrinter {
	if desc == nil {
		return nil
	}

	ep, hasEndpoint := protocol.FindPrinterEndpoint(desc, 0)
	vendor, product, known := s.knownDevices.Identify(desc.Vendor, desc.Product)

	switch {
	case known && (hasEndpoint || product.Product != ""):
		printer := s.newPrinter(desc, ep, hasEndpoint)
		printer.Vendor = vendor.Name
		printer.Product = product.Product
		printer.Model = product.Model.String()
		printer.Confidence = product.Confidence
		if !hasEndpoint {
			printer.Confidence /= 2
		}
		return printer
	case hasEndpoint && s.config.FilterByClass:
		printer := s.newPrinter(desc, ep, true)
		printer.Model = "generic"
		printer.Confidence = 0.4
		return printer
	default:
		return nil
	}
}

func (s *Scanner) newPrinter(desc *gousb.DeviceDesc, ep protocol.PrinterEndpoint, hasEndpoint bool) *discovery.DiscoveredPrinter {
	connection := map[string]interface{}{
		"vendor_id":  fmt.Sprintf("0x%04X", uint16(desc.Vendor)),
		"product_id": fmt.Sprintf("0x%04X", uint16(desc.Product)),
		"timeout":    s.config.WriteTimeout.String(),
	}
	if hasEndpoint {
		connection["endpoint"] = ep.Endpoint
	}

	return &discovery.DiscoveredPrinter{
		ConnectionType: model.ConnectionTypeUSB,
		Connection:     connection,
		Location:       fmt.Sprintf("USB-Bus%d-Addr%d", desc.Bus, desc.Address),
	}
}

// describe fills the string descriptors, which need an open device
func (s *Scanner) describe(device *gousb.Device, printer *discovery.DiscoveredPrinter) {
	if serial, err := device.SerialNumber(); err == nil && strings.TrimSpace(serial) != "" {
		printer.SerialNumber = strings.TrimSpace(serial)
		printer.Connection["serial_number"] = printer.SerialNumber
	} else if err != nil {
		s.logger.Debug("Failed to read serial number", zap.Error(err))
	}

	if printer.Vendor == "" {
		if manufacturer, err := device.Manufacturer(); err == nil {
			printer.Vendor = strings.TrimSpace(manufacturer)
		}
	}
	if printer.Product == "" {
		if product, err := device.Product(); err == nil {
			printer.Product = strings.TrimSpace(product)
		}
	}
	if printer.Product == "" {
		printer.Product = fmt.Sprintf("USB-%04X:%04X", uint16(device.Desc.Vendor), uint16(device.Desc.Product))
	}
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			s.logger.Warn("Failed to close USB device",
				zap.Int("device_index", i),
				zap.Error(err),
			)
		}
	}
}

// postProcess removes duplicates and sorts by confidence, highest first
func (s *Scanner) postProcess(printers []*discovery.DiscoveredPrinter) []*discovery.DiscoveredPrinter {
	seen := make(map[string]bool)
	var unique []*discovery.DiscoveredPrinter

	for _, printer := range printers {
		key := fmt.Sprintf("%v:%v:%s:%s",
			printer.Connection["vendor_id"],
			printer.Connection["product_id"],
			printer.SerialNumber,
			printer.Location,
		)
		if seen[key] {
			s.logger.Debug("Removing duplicate printer", zap.String("key", key))
			continue
		}
		seen[key] = true
		unique = append(unique, printer)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})
	return unique
}
