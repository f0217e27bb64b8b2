// cmd/escposctl/commands.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"escpos-service/internal/bitmap"
	"escpos-service/internal/config"
	"escpos-service/internal/printer"
	"escpos-service/internal/receipt"
	"escpos-service/internal/service"
)

// demoDocument is the sample ticket printed by the demo command
func demoDocument() *receipt.Document {
	return &receipt.Document{
		Header: "CAFE LUMEN",
		Steps: []receipt.Step{
			{Type: receipt.StepAlign, Align: string(printer.AlignCenter)},
			{Type: receipt.StepLine, Text: "12 Harbour Street"},
			{Type: receipt.StepLine, Text: "Table 4 / Server: Ana"},
			{Type: receipt.StepAlign, Align: string(printer.AlignLeft)},
			{Type: receipt.StepFeed, Lines: 1},
		},
		Items: []receipt.Item{
			{Name: "Flat white", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("3.40")},
			{Name: "Almond croissant", Price: decimal.RequireFromString("2.95")},
			{Name: "Sparkling water 0.5l", Price: decimal.RequireFromString("1.80")},
		},
		Currency:   "EUR",
		TotalLabel: "TOTAL",
		Footer:     "Thank you for visiting",
		Cut:        true,
	}
}

func newDemoCmd(opts *options) *cobra.Command {
	var (
		documentPath string
		dump         bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Print a sample receipt, or a receipt document file",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := demoDocument()
			if documentPath != "" {
				data, err := os.ReadFile(documentPath)
				if err != nil {
					return fmt.Errorf("failed to read document: %w", err)
				}
				if doc, err = receipt.Parse(data); err != nil {
					return err
				}
			}

			if dump {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			if err := doc.Validate(); err != nil {
				return fmt.Errorf("invalid document: %w", err)
			}

			layout := receipt.ForPaperWidth(opts.paper)
			return opts.print(cmd.Context(), cmd.OutOrStdout(), func(p *printer.Printer) error {
				return receipt.Render(p, doc, layout)
			})
		},
	}

	cmd.Flags().StringVar(&documentPath, "document", "", "receipt document JSON file")
	cmd.Flags().BoolVar(&dump, "json", false, "print the document as JSON instead of printing it")
	return cmd
}

func newTextCmd(opts *options) *cobra.Command {
	var (
		align string
		style string
		width int
		cut   bool
	)

	cmd := &cobra.Command{
		Use:   "text <line>...",
		Short: "Print lines of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.print(cmd.Context(), cmd.OutOrStdout(), func(p *printer.Printer) error {
				p.Align(printer.Alignment(strings.ToUpper(align))).Style(style)
				if width > 1 {
					p.Size(width, width)
				}
				for _, line := range args {
					p.PrintLine(line)
				}
				p.Feed(3)
				if cut {
					p.Cut()
				}
				return p.Err()
			})
		},
	}

	cmd.Flags().StringVar(&align, "align", string(printer.AlignLeft), "alignment: LT, CT or RT")
	cmd.Flags().StringVar(&style, "style", "NORMAL", "style letters: B, U, U2, I or NORMAL")
	cmd.Flags().IntVar(&width, "size", 1, "character magnification 1-8")
	cmd.Flags().BoolVar(&cut, "cut", false, "cut the paper afterwards")
	return cmd
}

func newImageCmd(opts *options) *cobra.Command {
	var (
		density string
		cut     bool
	)

	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Print a PNG, JPEG, GIF or BMP image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := bitmap.Load(args[0])
			if err != nil {
				return err
			}
			maxWidth := receipt.ForPaperWidth(opts.paper).MaxImageWidth

			return opts.print(cmd.Context(), cmd.OutOrStdout(), func(p *printer.Printer) error {
				p.Align(printer.AlignCenter)
				if density == "" {
					p.PrintImage(img, maxWidth)
				} else {
					p.Image(bitmap.FromImage(bitmap.FitWidth(img, maxWidth)), printer.Density(strings.ToLower(density)))
				}
				p.Align(printer.AlignLeft).Feed(3)
				if cut {
					p.Cut()
				}
				return p.Err()
			})
		},
	}

	cmd.Flags().StringVar(&density, "density", "", "bit image density s8, d8, s24 or d24 (default raster)")
	cmd.Flags().BoolVar(&cut, "cut", false, "cut the paper afterwards")
	return cmd
}

func newDiscoverCmd(opts *options) *cobra.Command {
	var (
		scanType string
		tcpHosts []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan for attached and network printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.config)
			if err != nil {
				return err
			}
			if len(tcpHosts) > 0 {
				cfg.Discovery.TCPHosts = tcpHosts
			}

			result, err := service.NewDiscoveryService(cfg, opts.logger).Scan(cmd.Context(), scanType)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return writeScanTable(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&scanType, "type", "t", "all", "scan type: all, usb, serial or tcp")
	cmd.Flags().StringSliceVar(&tcpHosts, "tcp-host", nil, "host or CIDR range to probe, repeatable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func writeScanTable(cmd *cobra.Command, result *service.ScanResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tLOCATION\tVENDOR\tPRODUCT\tMODEL\tCONFIDENCE\tCONFIGURED")
	for _, p := range result.Printers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			p.ConnectionType, p.Location, dash(p.Vendor), dash(p.Product), p.Model, p.Confidence, dash(p.ConfiguredAs))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d printer(s) found in %dms\n", result.PrintersFound, result.DurationMs)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
