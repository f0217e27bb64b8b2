// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"escpos-service/internal/discovery"
	"escpos-service/internal/model"
)

// statusRequest is DLE EOT 1, the real-time printer status query
var statusRequest = []byte{0x10, 0x04, 0x01}

// maxHostsPerRange bounds CIDR expansion
const maxHostsPerRange = 1024

// Scanner implements raw printing port scanning
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for TCP scanner
type Config struct {
	Hosts         []string      `json:"hosts"` // addresses or CIDR ranges
	Ports         []int         `json:"ports"`
	ConnTimeout   time.Duration `json:"connection_timeout"`
	MaxConcurrent int           `json:"max_concurrent"`
	Probe         bool          `json:"probe"`
}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{}
	}
	if len(config.Ports) == 0 {
		config.Ports = []int{9100}
	}
	if config.ConnTimeout == 0 {
		config.ConnTimeout = 500 * time.Millisecond
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 32
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// IsAvailable reports whether any host is configured
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Hosts) > 0
}

// Scan dials every host and port pair and reports those accepting a
// connection. Results keep the configured host order.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPrinter, error) {
	hosts, err := expandHosts(s.config.Hosts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Starting TCP scan",
		zap.Int("hosts", len(hosts)),
		zap.Ints("ports", s.config.Ports),
	)

	type target struct {
		host string
		port int
	}
	var targets []target
	for _, host := range hosts {
		for _, port := range s.config.Ports {
			targets = append(targets, target{host, port})
		}
	}

	results := make([]*discovery.DiscoveredPrinter, len(targets))
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, t := range targets {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return collect(results), ctx.Err()
		}

		wg.Add(1)
		go func(i int, host string, port int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.probe(ctx, host, port)
		}(i, t.host, t.port)
	}
	wg.Wait()

	found := collect(results)
	s.logger.Info("TCP scan completed", zap.Int("printers_found", len(found)))
	return found, nil
}

// probe dials one address and optionally asks for the printer status
func (s *Scanner) probe(ctx context.Context, host string, port int) *discovery.DiscoveredPrinter {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: s.config.ConnTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil
	}
	defer conn.Close()

	printer := &discovery.DiscoveredPrinter{
		ConnectionType: model.ConnectionTypeTCP,
		Connection: map[string]interface{}{
			"host": host,
			"port": port,
		},
		Model:      "generic",
		Confidence: 0.4,
		Location:   address,
	}
	if port == 9100 {
		printer.Confidence = 0.5
	}

	if s.config.Probe {
		if status, ok := s.requestStatus(conn); ok {
			printer.Confidence = 0.9
			printer.Product = fmt.Sprintf("status 0x%02X", status)
		}
	}

	s.logger.Debug("TCP printer port open", zap.String("address", address))
	return printer
}

// requestStatus sends DLE EOT 1 and accepts a reply whose fixed bits match
// the printer status byte layout (bit 1 set, bits 0, 4 and 7 clear)
func (s *Scanner) requestStatus(conn net.Conn) (byte, bool) {
	deadline := time.Now().Add(s.config.ConnTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, false
	}
	if _, err := conn.Write(statusRequest); err != nil {
		return 0, false
	}

	reply := make([]byte, 1)
	if _, err := conn.Read(reply); err != nil {
		return 0, false
	}
	return reply[0], reply[0]&0x93 == 0x12
}

func collect(results []*discovery.DiscoveredPrinter) []*discovery.DiscoveredPrinter {
	var found []*discovery.DiscoveredPrinter
	for _, r := range results {
		if r != nil {
			found = append(found, r)
		}
	}
	return found
}

// expandHosts resolves CIDR ranges into host addresses. Network and
// broadcast addresses of IPv4 ranges are skipped.
func expandHosts(entries []string) ([]string, error) {
	var hosts []string
	for _, entry := range entries {
		ip, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			hosts = append(hosts, entry)
			continue
		}

		ones, bits := ipNet.Mask.Size()
		if bits-ones > 10 {
			return nil, fmt.Errorf("range %s exceeds %d hosts", entry, maxHostsPerRange)
		}

		var rangeHosts []string
		for cur := ip.Mask(ipNet.Mask); ipNet.Contains(cur); cur = nextIP(cur) {
			rangeHosts = append(rangeHosts, cur.String())
		}
		if ip.To4() != nil && len(rangeHosts) > 2 {
			rangeHosts = rangeHosts[1 : len(rangeHosts)-1]
		}
		hosts = append(hosts, rangeHosts...)
	}
	return hosts, nil
}

func nextIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}
