// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"escpos-service/internal/discovery"
	"escpos-service/internal/model"
)

// Scanner implements serial port printer scanning
type Scanner struct {
	logger    *zap.Logger
	config    *Config
	listPorts func() ([]*enumerator.PortDetails, error)
}

// Config for serial scanner
type Config struct {
	BaudRate     int           `json:"baud_rate"`
	PortPatterns []string      `json:"port_patterns"`
	Timeout      time.Duration `json:"timeout"`
}

// usbSerialBridges are adapters commonly built into receipt printers
var usbSerialBridges = map[string]string{
	"0403": "FTDI",
	"067B": "Prolific",
	"10C4": "Silicon Labs",
	"1A86": "QinHeng CH340",
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{}
	}
	if config.BaudRate == 0 {
		config.BaudRate = 9600
	}
	if len(config.PortPatterns) == 0 {
		config.PortPatterns = defaultPortPatterns()
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		config:    config,
		listPorts: listPorts,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists serial ports and reports the ones that can carry a printer.
// Ports are not opened.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPrinter, error) {
	s.logger.Info("Starting serial port scan")

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	var found []*discovery.DiscoveredPrinter
	for _, port := range ports {
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
		if !s.matches(port.Name) {
			continue
		}
		found = append(found, s.classify(port))
	}

	s.logger.Info("Serial scan completed", zap.Int("printers_found", len(found)))
	return found, nil
}

// classify builds a discovered printer from port details
func (s *Scanner) classify(port *enumerator.PortDetails) *discovery.DiscoveredPrinter {
	printer := &discovery.DiscoveredPrinter{
		ConnectionType: model.ConnectionTypeSerial,
		Connection: map[string]interface{}{
			"port":      port.Name,
			"baud_rate": s.config.BaudRate,
			"timeout":   s.config.Timeout.String(),
		},
		Model:      "generic",
		Confidence: 0.2,
		Location:   port.Name,
	}

	if port.IsUSB {
		printer.SerialNumber = port.SerialNumber
		printer.Confidence = 0.3
		if bridge, ok := usbSerialBridges[strings.ToUpper(port.VID)]; ok {
			printer.Vendor = bridge
			printer.Confidence = 0.5
		}
		printer.Product = fmt.Sprintf("USB-Serial %s:%s", strings.ToUpper(port.VID), strings.ToUpper(port.PID))
	}

	return printer
}

func (s *Scanner) matches(name string) bool {
	for _, pattern := range s.config.PortPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// listPorts prefers detailed enumeration and falls back to plain names
func listPorts() ([]*enumerator.PortDetails, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		return details, nil
	}

	names, listErr := serial.GetPortsList()
	if listErr != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", listErr)
	}
	details = make([]*enumerator.PortDetails, 0, len(names))
	for _, name := range names {
		details = append(details, &enumerator.PortDetails{Name: name})
	}
	return details, nil
}

func defaultPortPatterns() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"COM*"}
	case "darwin":
		return []string{"/dev/cu.usbserial*", "/dev/cu.usbmodem*", "/dev/cu.serial*"}
	default:
		return []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*"}
	}
}
