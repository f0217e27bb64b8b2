// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"escpos-service/internal/config"
	"escpos-service/internal/discovery"
	"escpos-service/internal/discovery/serial"
	"escpos-service/internal/discovery/tcp"
	"escpos-service/internal/discovery/usb"
	"escpos-service/internal/model"
	"escpos-service/internal/utils"
)

// ErrUnsupportedScanType is returned for an unknown scan type
var ErrUnsupportedScanType = errors.New("unsupported scan type")

// ScanTypes lists the accepted scan types
var ScanTypes = []string{"all", "usb", "serial", "tcp"}

// DiscoveredPrinter is a scan result annotated with the configured printer
// it matches, if any
type DiscoveredPrinter struct {
	*discovery.DiscoveredPrinter
	ConfiguredAs string `json:"configured_as,omitempty"`
}

// ScanResult is the outcome of one scan
type ScanResult struct {
	ScanType      string               `json:"scan_type"`
	PrintersFound int                  `json:"printers_found"`
	Printers      []*DiscoveredPrinter `json:"printers"`
	DurationMs    int64                `json:"duration_ms"`
}

// DiscoveryService finds printers attached to this host or its network
type DiscoveryService struct {
	scannerManager *discovery.ScannerManager
	config         *config.Config
	logger         *utils.ServiceLogger
}

// NewDiscoveryService creates a discovery service with the usb, serial and
// tcp scanners registered
func NewDiscoveryService(cfg *config.Config, logger *zap.Logger) *DiscoveryService {
	ds := NewDiscoveryServiceWithManager(cfg, discovery.NewScannerManager(logger), logger)
	ds.initializeScanners(logger)
	return ds
}

// NewDiscoveryServiceWithManager creates a discovery service over a
// prepared scanner manager
func NewDiscoveryServiceWithManager(cfg *config.Config, manager *discovery.ScannerManager, logger *zap.Logger) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryService{
		scannerManager: manager,
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}
}

// initializeScanners registers all scanners
func (ds *DiscoveryService) initializeScanners(logger *zap.Logger) {
	timeout := ds.config.Discovery.Timeout

	ds.scannerManager.RegisterScanner(usb.NewScanner(logger, &usb.Config{
		ScanTimeout:   timeout,
		FilterByClass: true,
		WriteTimeout:  5 * time.Second,
	}))
	ds.scannerManager.RegisterScanner(serial.NewScanner(logger, nil))
	ds.scannerManager.RegisterScanner(tcp.NewScanner(logger, &tcp.Config{
		Hosts: ds.config.Discovery.TCPHosts,
		Ports: ds.config.Discovery.TCPPorts,
		Probe: true,
	}))

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
}

// Scan runs the scanners of scanType, bounded by the configured discovery
// timeout
func (ds *DiscoveryService) Scan(ctx context.Context, scanType string) (*ScanResult, error) {
	scanType = strings.ToLower(scanType)
	if scanType == "" {
		scanType = "all"
	}

	if ds.config.Discovery.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ds.config.Discovery.Timeout)
		defer cancel()
	}

	ds.logger.Info("Starting printer scan", zap.String("type", scanType))
	start := time.Now()

	var (
		printers []*discovery.DiscoveredPrinter
		err      error
	)
	switch scanType {
	case "all":
		printers, err = ds.scannerManager.ScanAll(ctx)
	case "usb", "serial", "tcp":
		printers, err = ds.scannerManager.ScanByType(ctx, scanType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScanType, scanType)
	}

	// A timed out scan still reports what it found
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	result := &ScanResult{
		ScanType:   scanType,
		Printers:   make([]*DiscoveredPrinter, 0, len(printers)),
		DurationMs: time.Since(start).Milliseconds(),
	}
	for _, p := range printers {
		result.Printers = append(result.Printers, &DiscoveredPrinter{
			DiscoveredPrinter: p,
			ConfiguredAs:      ds.matchConfigured(p),
		})
	}
	result.PrintersFound = len(result.Printers)

	ds.logger.Info("Printer scan completed",
		zap.String("scan_type", scanType),
		zap.Int("printers_found", result.PrintersFound),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

// AvailableScanners returns the scanner types usable on this host
func (ds *DiscoveryService) AvailableScanners() []string {
	return ds.scannerManager.GetAvailableScanners()
}

// matchConfigured returns the id of the configured printer using the same
// connection, or ""
func (ds *DiscoveryService) matchConfigured(p *discovery.DiscoveredPrinter) string {
	for i := range ds.config.Printers {
		pc := &ds.config.Printers[i]
		if !strings.EqualFold(pc.ConnectionType, string(p.ConnectionType)) {
			continue
		}

		var keys []string
		switch p.ConnectionType {
		case model.ConnectionTypeUSB:
			keys = []string{"vendor_id", "product_id"}
		case model.ConnectionTypeSerial:
			keys = []string{"port"}
		case model.ConnectionTypeTCP:
			keys = []string{"host", "port"}
		default:
			continue
		}

		if sameValues(pc.Connection, p.Connection, keys) {
			return pc.ID
		}
	}
	return ""
}

func sameValues(configured, found map[string]interface{}, keys []string) bool {
	for _, key := range keys {
		want, ok := configured[key]
		if !ok {
			return false
		}
		if !strings.EqualFold(fmt.Sprint(want), fmt.Sprint(found[key])) {
			return false
		}
	}
	return true
}
