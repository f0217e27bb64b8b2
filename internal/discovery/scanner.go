// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// PrinterScanner finds printers reachable over one kind of connection
type PrinterScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredPrinter, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredPrinter represents a printer found by a scanner. Connection
// holds the keys a printer entry's connection section takes.
type DiscoveredPrinter struct {
	ConnectionType model.ConnectionType   `json:"connection_type"`
	Connection     map[string]interface{} `json:"connection"`
	Vendor         string                 `json:"vendor,omitempty"`
	Product        string                 `json:"product,omitempty"`
	Model          string                 `json:"model"` // command table to configure
	Confidence     float64                `json:"confidence"`
	SerialNumber   string                 `json:"serial_number,omitempty"`
	Location       string                 `json:"location,omitempty"`
}

// ScannerManager manages all printer scanners
type ScannerManager struct {
	scanners map[string]PrinterScanner
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScannerManager{
		scanners: make(map[string]PrinterScanner),
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a printer scanner
func (sm *ScannerManager) RegisterScanner(scanner PrinterScanner) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Debug("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. A failing scanner is logged and
// skipped.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredPrinter, error) {
	var all []*DiscoveredPrinter

	for _, scannerType := range sm.types() {
		scanner := sm.get(scannerType)
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		printers, err := scanner.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		all = append(all, printers...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("printers_found", len(printers)),
		)
	}

	return all, nil
}

// ScanByType runs one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredPrinter, error) {
	scanner := sm.get(scannerType)
	if scanner == nil {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns the available scanner types in name order
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for _, scannerType := range sm.types() {
		if sm.get(scannerType).IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}

// HasScanner reports whether a scanner of that type is registered
func (sm *ScannerManager) HasScanner(scannerType string) bool {
	return sm.get(scannerType) != nil
}

func (sm *ScannerManager) get(scannerType string) PrinterScanner {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.scanners[scannerType]
}

func (sm *ScannerManager) types() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	types := make([]string, 0, len(sm.scanners))
	for t := range sm.scanners {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
