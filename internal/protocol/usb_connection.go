// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// ErrNoPrinterFound is returned when no USB printer matches the configuration
var ErrNoPrinterFound = errors.New("USB printer not found")

// USBConnection implements Transport for USB printers
type USBConnection struct {
	statsRecorder

	config   *USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	usbCfg   *gousb.Config
	intf     *gousb.Interface
	outEndpt *gousb.OutEndpoint
	logger   *zap.Logger
	mutex    sync.Mutex
	isOpen   bool
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
	}
}

// PrinterEndpoint locates a printer-class interface and its OUT endpoint
type PrinterEndpoint struct {
	Config    int `json:"config"`
	Interface int `json:"interface"`
	Alternate int `json:"alternate"`
	Endpoint  int `json:"endpoint"`
}

// Open opens the USB connection
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}

	uc.logger.Info("Opening USB connection")

	var vendorID, productID gousb.ID
	if uc.config.VendorID != "" {
		var err error
		if vendorID, err = ParseHexID(uc.config.VendorID); err != nil {
			return fmt.Errorf("invalid vendor ID: %w", err)
		}
		if productID, err = ParseHexID(uc.config.ProductID); err != nil {
			return fmt.Errorf("invalid product ID: %w", err)
		}
	}

	uc.ctx = gousb.NewContext()

	device, ep, err := uc.findAndOpenDevice(vendorID, productID)
	if err != nil {
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to find USB device: %w", err)
	}

	// usblp and similar kernel drivers hold printer interfaces
	if err := device.SetAutoDetach(true); err != nil {
		uc.logger.Warn("Failed to enable kernel driver auto-detach", zap.Error(err))
	}

	cfg, err := device.Config(ep.Config)
	if err != nil {
		device.Close()
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to select configuration %d: %w", ep.Config, err)
	}

	intf, err := cfg.Interface(ep.Interface, ep.Alternate)
	if err != nil {
		cfg.Close()
		device.Close()
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outEndpt, err := intf.OutEndpoint(ep.Endpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		device.Close()
		uc.ctx.Close()
		uc.ctx = nil
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	uc.device = device
	uc.usbCfg = cfg
	uc.intf = intf
	uc.outEndpt = outEndpt
	uc.isOpen = true
	uc.setConnected(true)

	uc.logger.Info("USB connection opened successfully",
		zap.String("device", fmt.Sprintf("%s:%s", device.Desc.Vendor, device.Desc.Product)),
		zap.Int("interface", ep.Interface),
		zap.Int("endpoint", ep.Endpoint),
	)
	return nil
}

// Close closes the USB connection
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	var errs []error
	if uc.intf != nil {
		uc.intf.Close()
		uc.intf = nil
	}
	if uc.usbCfg != nil {
		if err := uc.usbCfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release configuration: %w", err))
		}
		uc.usbCfg = nil
	}
	if uc.device != nil {
		if err := uc.device.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close device: %w", err))
		}
		uc.device = nil
	}
	if uc.ctx != nil {
		if err := uc.ctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close USB context: %w", err))
		}
		uc.ctx = nil
	}

	uc.outEndpt = nil
	uc.isOpen = false
	uc.setConnected(false)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	uc.logger.Info("USB connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.isOpen && uc.device != nil && uc.outEndpt != nil
}

// Write writes data to the printer's bulk OUT endpoint
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return ErrNotOpen
	}

	if uc.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	n, err := uc.outEndpt.WriteContext(ctx, data)
	if err != nil {
		uc.recordError()
		uc.logger.Error("USB write failed", zap.Error(err), zap.Int("written", n))
		return fmt.Errorf("failed to write to USB device: %w", err)
	}
	if n != len(data) {
		uc.recordError()
		return shortWrite(n, len(data))
	}

	uc.recordWrite(n, time.Since(startTime))
	uc.logger.Debug("USB write completed", zap.Int("bytes", n))
	return nil
}

// GetProtocolType returns the protocol type
func (uc *USBConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeUSB
}

// ParseHexID parses hex ID string (0x1234 or 1234)
func ParseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.TrimPrefix(hexStr, "0x"), "0X")

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}

// FindPrinterEndpoint returns the first printer-class interface of desc
// with a bulk OUT endpoint. A non-zero endpoint restricts the match to that
// endpoint number.
func FindPrinterEndpoint(desc *gousb.DeviceDesc, endpoint int) (PrinterEndpoint, bool) {
	return findOutEndpoint(desc, endpoint, true)
}

func findOutEndpoint(desc *gousb.DeviceDesc, endpoint int, printerOnly bool) (PrinterEndpoint, bool) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if printerOnly && alt.Class != gousb.ClassPrinter && desc.Class != gousb.ClassPrinter {
					continue
				}
				for _, ep := range alt.Endpoints {
					if ep.Direction != gousb.EndpointDirectionOut || ep.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if endpoint != 0 && ep.Number != endpoint {
						continue
					}
					return PrinterEndpoint{
						Config:    cfg.Number,
						Interface: intf.Number,
						Alternate: alt.Alternate,
						Endpoint:  ep.Number,
					}, true
				}
			}
		}
	}
	return PrinterEndpoint{}, false
}

// findAndOpenDevice opens the first device matching the configured IDs, or
// the first printer-class device when no IDs are configured
func (uc *USBConnection) findAndOpenDevice(vendorID, productID gousb.ID) (*gousb.Device, PrinterEndpoint, error) {
	endpoints := make(map[string]PrinterEndpoint)

	devices, err := uc.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if vendorID != 0 && (desc.Vendor != vendorID || desc.Product != productID) {
			return false
		}
		// explicitly configured devices may use a vendor-specific class
		ep, ok := findOutEndpoint(desc, uc.config.Endpoint, vendorID == 0)
		if !ok {
			return false
		}
		endpoints[desc.String()] = ep
		return true
	})
	if err != nil && len(devices) == 0 {
		return nil, PrinterEndpoint{}, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var chosen *gousb.Device
	for _, device := range devices {
		if chosen == nil && uc.matchesSerial(device) {
			chosen = device
			continue
		}
		device.Close()
	}

	if chosen == nil {
		if vendorID != 0 {
			return nil, PrinterEndpoint{}, fmt.Errorf("%w (VID: %s, PID: %s)", ErrNoPrinterFound, vendorID, productID)
		}
		return nil, PrinterEndpoint{}, ErrNoPrinterFound
	}
	if len(devices) > 1 {
		uc.logger.Warn("Multiple matching USB devices found, using first one", zap.Int("count", len(devices)))
	}

	return chosen, endpoints[chosen.Desc.String()], nil
}

func (uc *USBConnection) matchesSerial(device *gousb.Device) bool {
	if uc.config.SerialNumber == "" {
		return true
	}
	serial, err := device.SerialNumber()
	if err != nil {
		uc.logger.Debug("Failed to read serial number", zap.Error(err))
		return false
	}
	return strings.TrimSpace(serial) == uc.config.SerialNumber
}
