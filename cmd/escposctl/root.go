// cmd/escposctl/root.go
package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"escpos-service/internal/command"
	"escpos-service/internal/config"
	"escpos-service/internal/model"
	"escpos-service/internal/printer"
	"escpos-service/internal/protocol"
	"escpos-service/internal/utils"
)

// options holds the persistent flags shared by the print commands
type options struct {
	connection string
	output     string
	host       string
	port       int
	device     string
	baudRate   int
	vendorID   string
	productID  string
	timeout    time.Duration

	model    string
	encoding string
	paper    int
	verbose  bool
	config   string

	logger *zap.Logger
}

// NewRootCmd creates the escposctl command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "escposctl",
		Short: "Send ESC/POS receipts to a printer",
		Long: `escposctl encodes receipts, text and images into ESC/POS commands and
writes them to a printer over USB, serial or TCP, or hex dumps them to the
console.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logger, err := utils.NewLogger(&config.LoggingConfig{Level: level, Format: "console", Output: "stderr"})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.connection, "connection", "c", "console", "connection type: console, usb, serial or tcp")
	flags.StringVar(&opts.output, "output", "", "console output file (default stdout)")
	flags.StringVar(&opts.host, "host", "", "tcp printer host")
	flags.IntVar(&opts.port, "port", 9100, "tcp printer port")
	flags.StringVar(&opts.device, "device", "", "serial port, e.g. /dev/ttyUSB0")
	flags.IntVar(&opts.baudRate, "baud", 9600, "serial baud rate")
	flags.StringVar(&opts.vendorID, "vendor-id", "", "usb vendor id, e.g. 0x0416")
	flags.StringVar(&opts.productID, "product-id", "", "usb product id, e.g. 0x5011")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "connect and write timeout")
	flags.StringVarP(&opts.model, "model", "m", "generic", "printer model: generic or qsprinter")
	flags.StringVarP(&opts.encoding, "encoding", "e", "UTF-8", "text encoding, e.g. CP437 or GB18030")
	flags.IntVar(&opts.paper, "paper", 80, "paper width in mm: 58 or 80")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&opts.config, "config", "", "service config file, used by discover")

	rootCmd.AddCommand(newDemoCmd(opts))
	rootCmd.AddCommand(newTextCmd(opts))
	rootCmd.AddCommand(newImageCmd(opts))
	rootCmd.AddCommand(newDiscoverCmd(opts))

	return rootCmd
}

// connectionConfig maps the flags to the keys the transport factory reads
func (o *options) connectionConfig() (model.ConnectionType, map[string]interface{}, error) {
	connectionType, err := protocol.ParseConnectionType(o.connection)
	if err != nil {
		return "", nil, err
	}

	cfg := map[string]interface{}{"timeout": o.timeout.String()}
	switch connectionType {
	case model.ConnectionTypeTCP:
		cfg["host"] = o.host
		cfg["port"] = o.port
		cfg["write_timeout"] = o.timeout.String()
	case model.ConnectionTypeSerial:
		cfg["port"] = o.device
		cfg["baud_rate"] = o.baudRate
	case model.ConnectionTypeUSB:
		cfg["vendor_id"] = o.vendorID
		cfg["product_id"] = o.productID
	case model.ConnectionTypeConsole:
		cfg["output"] = o.output
	}

	if err := protocol.ValidateConfig(connectionType, cfg); err != nil {
		return "", nil, fmt.Errorf("invalid %s connection: %w", strings.ToLower(string(connectionType)), err)
	}
	return connectionType, cfg, nil
}

// transport builds the transport; console output defaults to out
func (o *options) transport(out io.Writer) (protocol.Transport, error) {
	connectionType, cfg, err := o.connectionConfig()
	if err != nil {
		return nil, err
	}
	if connectionType == model.ConnectionTypeConsole && o.output == "" {
		return protocol.NewConsoleConnection(&protocol.ConsoleConfig{BytesPerLine: 16}, out, o.logger), nil
	}
	return protocol.CreateProtocol(connectionType, cfg, o.logger)
}

// print opens a printer, runs fn and closes it, which writes the buffered
// commands
func (o *options) print(ctx context.Context, out io.Writer, fn func(p *printer.Printer) error) error {
	printerModel, err := command.ParseModel(o.model)
	if err != nil {
		return err
	}

	transport, err := o.transport(out)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout+30*time.Second)
	defer cancel()

	port := protocol.NewPort(ctx, transport, o.logger)
	if err := <-port.Open(); err != nil {
		<-port.Close()
		return fmt.Errorf("failed to open printer: %w", err)
	}

	p := printer.New(port,
		printer.WithModel(printerModel),
		printer.WithEncoding(o.encoding),
		printer.WithLogger(o.logger),
	)

	fnErr := fn(p.Init())
	if err := <-p.Close(); err != nil && fnErr == nil {
		return fmt.Errorf("failed to print: %w", err)
	}
	return fnErr
}
