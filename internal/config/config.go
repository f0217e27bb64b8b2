// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"escpos-service/internal/charset"
	"escpos-service/internal/command"
	"escpos-service/internal/protocol"
)

// EnvPrefix prefixes environment overrides, e.g. ESCPOS_SERVICE_SERVER_PORT
const EnvPrefix = "ESCPOS_SERVICE"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Printers  []PrinterConfig `mapstructure:"printers"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig describes one configured printer
type PrinterConfig struct {
	ID             string                 `mapstructure:"id"`
	Name           string                 `mapstructure:"name"`
	Model          string                 `mapstructure:"model"`
	Encoding       string                 `mapstructure:"encoding"`
	PaperWidth     int                    `mapstructure:"paper_width"` // mm
	ConnectionType string                 `mapstructure:"connection_type"`
	Connection     map[string]interface{} `mapstructure:"connection"`
}

// JobsConfig represents print job configuration
type JobsConfig struct {
	QueueSize  int           `mapstructure:"queue_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxCopies  int           `mapstructure:"max_copies"`
	HistoryTTL time.Duration `mapstructure:"history_ttl"`
}

// DiscoveryConfig represents printer discovery configuration
type DiscoveryConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	TCPHosts []string      `mapstructure:"tcp_hosts"`
	TCPPorts []int         `mapstructure:"tcp_ports"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from an optional file and environment variables.
// An empty path searches for config.yaml in the working directory and
// ./config.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Job defaults
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.timeout", "30s")
	v.SetDefault("jobs.max_copies", 10)
	v.SetDefault("jobs.history_ttl", "1h")

	// Discovery defaults
	v.SetDefault("discovery.timeout", "2s")
	v.SetDefault("discovery.tcp_ports", []int{9100})

	// App defaults
	v.SetDefault("app.name", "escpos-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Jobs.QueueSize < 1 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}
	if config.Jobs.MaxCopies < 1 {
		return fmt.Errorf("jobs.max_copies must be positive")
	}

	seen := make(map[string]bool)
	for i := range config.Printers {
		pc := &config.Printers[i]
		if err := pc.normalize(); err != nil {
			return fmt.Errorf("printers[%d]: %w", i, err)
		}
		if seen[pc.ID] {
			return fmt.Errorf("printers[%d]: duplicate id %q", i, pc.ID)
		}
		seen[pc.ID] = true
	}

	return nil
}

// normalize fills defaults and validates one printer entry
func (pc *PrinterConfig) normalize() error {
	if pc.ID == "" {
		return fmt.Errorf("id is required")
	}
	if pc.Name == "" {
		pc.Name = pc.ID
	}
	if _, err := command.ParseModel(pc.Model); err != nil {
		return err
	}
	if pc.Encoding == "" {
		pc.Encoding = charset.Default
	}
	if !charset.Valid(pc.Encoding) {
		return fmt.Errorf("unknown encoding %q", pc.Encoding)
	}
	if pc.PaperWidth == 0 {
		pc.PaperWidth = 80
	}
	if pc.PaperWidth != 58 && pc.PaperWidth != 80 {
		return fmt.Errorf("paper_width must be 58 or 80, got %d", pc.PaperWidth)
	}

	ct, err := protocol.ParseConnectionType(pc.ConnectionType)
	if err != nil {
		return err
	}
	pc.ConnectionType = string(ct)
	if err := protocol.ValidateConfig(ct, pc.Connection); err != nil {
		return err
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Printer returns the configured printer with the given id
func (c *Config) Printer(id string) (*PrinterConfig, bool) {
	for i := range c.Printers {
		if c.Printers[i].ID == id {
			return &c.Printers[i], true
		}
	}
	return nil, false
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
