// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// ParseConnectionType normalizes a configured connection type
func ParseConnectionType(s string) (model.ConnectionType, error) {
	ct := model.ConnectionType(strings.ToUpper(strings.TrimSpace(s)))
	switch ct {
	case model.ConnectionTypeSerial, model.ConnectionTypeUSB, model.ConnectionTypeTCP, model.ConnectionTypeConsole:
		return ct, nil
	default:
		return "", fmt.Errorf("unsupported connection type: %s", s)
	}
}

// CreateProtocol creates a transport based on connection type and configuration
func CreateProtocol(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	if err := ValidateConfig(connectionType, config); err != nil {
		return nil, err
	}

	switch connectionType {
	case model.ConnectionTypeSerial:
		return createSerialProtocol(config, logger), nil
	case model.ConnectionTypeUSB:
		return createUSBProtocol(config, logger), nil
	case model.ConnectionTypeTCP:
		return createTCPProtocol(config, logger), nil
	case model.ConnectionTypeConsole:
		return createConsoleProtocol(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", connectionType)
	}
}

// intValue reads an integer from JSON (float64), YAML (int) or string values
func intValue(config map[string]interface{}, key string) (int, bool, error) {
	raw, ok := config[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("invalid %s: %q", key, v)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("invalid %s type", key)
	}
}

// durationValue reads a duration string ("5s") or a number of milliseconds
func durationValue(config map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := config[key].(type) {
	case string:
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	}
	return def
}

func stringValue(config map[string]interface{}, key string) string {
	s, _ := config[key].(string)
	return s
}

// createSerialProtocol creates a serial transport
func createSerialProtocol(config map[string]interface{}, logger *zap.Logger) Transport {
	serialConfig := &SerialConfig{
		Port:     stringValue(config, "port"),
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  durationValue(config, "timeout", 5*time.Second),
	}

	if v, ok, _ := intValue(config, "baud_rate"); ok {
		serialConfig.BaudRate = v
	}
	if v, ok, _ := intValue(config, "data_bits"); ok {
		serialConfig.DataBits = v
	}
	if v, ok, _ := intValue(config, "stop_bits"); ok {
		serialConfig.StopBits = v
	}
	if parity := stringValue(config, "parity"); parity != "" {
		serialConfig.Parity = strings.ToLower(parity)
	}

	logger.Info("Creating serial protocol",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger)
}

// createUSBProtocol creates a USB transport
func createUSBProtocol(config map[string]interface{}, logger *zap.Logger) Transport {
	usbConfig := &USBConfig{
		VendorID:     stringValue(config, "vendor_id"),
		ProductID:    stringValue(config, "product_id"),
		SerialNumber: stringValue(config, "serial_number"),
		Timeout:      durationValue(config, "timeout", 5*time.Second),
	}
	if v, ok, _ := intValue(config, "endpoint"); ok {
		usbConfig.Endpoint = v
	}

	logger.Info("Creating USB protocol",
		zap.String("vendor_id", usbConfig.VendorID),
		zap.String("product_id", usbConfig.ProductID),
	)

	return NewUSBConnection(usbConfig, logger)
}

// createTCPProtocol creates a TCP transport
func createTCPProtocol(config map[string]interface{}, logger *zap.Logger) Transport {
	tcpConfig := &TCPConfig{
		Host:         stringValue(config, "host"),
		Port:         9100, // raw printing port
		KeepAlive:    true,
		Timeout:      durationValue(config, "timeout", 10*time.Second),
		WriteTimeout: durationValue(config, "write_timeout", 30*time.Second),
	}

	if v, ok, _ := intValue(config, "port"); ok {
		tcpConfig.Port = v
	}
	if ssl, ok := config["ssl"].(bool); ok {
		tcpConfig.SSL = ssl
	}
	if keepAlive, ok := config["keep_alive"].(bool); ok {
		tcpConfig.KeepAlive = keepAlive
	}

	logger.Info("Creating TCP protocol",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
		zap.Bool("ssl", tcpConfig.SSL),
	)

	return NewTCPConnection(tcpConfig, logger)
}

// createConsoleProtocol creates a console transport
func createConsoleProtocol(config map[string]interface{}, logger *zap.Logger) Transport {
	consoleConfig := &ConsoleConfig{
		Output:       stringValue(config, "output"),
		BytesPerLine: DefaultBytesPerLine,
	}
	if v, ok, _ := intValue(config, "bytes_per_line"); ok && v > 0 {
		consoleConfig.BytesPerLine = v
	}
	return NewConsoleConnection(consoleConfig, nil, logger)
}

// ValidateConfig validates configuration for a specific protocol type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return validateSerialConfig(config)
	case model.ConnectionTypeUSB:
		return validateUSBConfig(config)
	case model.ConnectionTypeTCP:
		return validateTCPConfig(config)
	case model.ConnectionTypeConsole:
		return nil
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

var validBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// validateSerialConfig validates serial configuration
func validateSerialConfig(config map[string]interface{}) error {
	if stringValue(config, "port") == "" {
		return fmt.Errorf("serial port is required")
	}

	rate, ok, err := intValue(config, "baud_rate")
	if err != nil {
		return err
	}
	if ok {
		valid := false
		for _, validRate := range validBaudRates {
			if rate == validRate {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid baud rate: %d", rate)
		}
	}

	return nil
}

// validateUSBConfig validates USB configuration. Both IDs may be omitted to
// select the first attached printer.
func validateUSBConfig(config map[string]interface{}) error {
	vendorID := stringValue(config, "vendor_id")
	productID := stringValue(config, "product_id")

	if (vendorID == "") != (productID == "") {
		return fmt.Errorf("USB vendor_id and product_id must be set together")
	}
	if vendorID != "" {
		if _, err := ParseHexID(vendorID); err != nil {
			return fmt.Errorf("invalid USB vendor_id %q: %w", vendorID, err)
		}
		if _, err := ParseHexID(productID); err != nil {
			return fmt.Errorf("invalid USB product_id %q: %w", productID, err)
		}
	}
	if _, _, err := intValue(config, "endpoint"); err != nil {
		return err
	}

	return nil
}

// validateTCPConfig validates TCP configuration
func validateTCPConfig(config map[string]interface{}) error {
	if stringValue(config, "host") == "" {
		return fmt.Errorf("TCP host is required")
	}

	portNum, ok, err := intValue(config, "port")
	if err != nil {
		return err
	}
	if ok && (portNum < 1 || portNum > 65535) {
		return fmt.Errorf("invalid port number: %d", portNum)
	}

	return nil
}
