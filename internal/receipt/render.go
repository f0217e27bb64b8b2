// internal/receipt/render.go
package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"escpos-service/internal/bitmap"
	"escpos-service/internal/printer"
)

// Options controls the layout of a rendered document
type Options struct {
	Columns       int // characters per line in font A
	MaxImageWidth int // dots
}

// ForPaperWidth returns layout options for 58 or 80 mm paper
func ForPaperWidth(mm int) Options {
	if mm >= 80 {
		return Options{Columns: 48, MaxImageWidth: 576}
	}
	return Options{Columns: 32, MaxImageWidth: 384}
}

func (o *Options) defaults() {
	if o.Columns <= 0 {
		o.Columns = 32
	}
	if o.MaxImageWidth <= 0 {
		o.MaxImageWidth = 384
	}
}

// Render lays doc out on p. It does not flush; a requested cut flushes as
// part of the cut. The returned error is the printer's recorded error or an
// image decode failure.
func Render(p *printer.Printer, doc *Document, opts Options) error {
	opts.defaults()

	if doc.Encoding != "" {
		p.SetEncoding(doc.Encoding)
	}

	if doc.Header != "" {
		p.Align(printer.AlignCenter).Size(2, 2).Style("B").
			Feed(1).
			WriteText(doc.Header, "").
			Style("NORMAL").Size(1, 1).
			LineFeed().
			PrintLine(separator('=', opts.Columns)).
			Align(printer.AlignLeft)
	}

	for i, st := range doc.Steps {
		if err := renderStep(p, st, opts); err != nil {
			return fmt.Errorf("failed to render step %d: %w", i, err)
		}
	}

	if len(doc.Items) > 0 {
		renderItems(p, doc, opts)
	}

	if doc.Footer != "" {
		p.Align(printer.AlignCenter).
			LineFeed().
			WriteText(doc.Footer, "").
			Align(printer.AlignLeft)
	}

	p.Feed(3)
	if doc.OpenDrawer {
		p.CashDraw(2)
	}
	if doc.Cut {
		p.Cut()
	}
	return p.Err()
}

func renderItems(p *printer.Printer, doc *Document, opts Options) {
	p.Align(printer.AlignLeft).Size(1, 1)
	for _, item := range doc.Items {
		p.WriteText(FormatLine(item.Name, item.Amount().StringFixed(2), opts.Columns), "")
		if !item.Qty().Equal(oneQty) {
			p.WriteText(fmt.Sprintf("  %s x %s", item.Qty().String(), item.Price.StringFixed(2)), "")
		}
	}

	label := doc.TotalLabel
	if label == "" {
		label = "TOTAL"
	}
	total := label + ": " + doc.Total().StringFixed(2)
	if doc.Currency != "" {
		total += " " + doc.Currency
	}

	p.PrintLine(separator('=', opts.Columns)).
		Align(printer.AlignCenter).Size(2, 1).Style("B").
		WriteText(total, "").
		Style("NORMAL").Size(1, 1).
		Align(printer.AlignLeft)
}

func renderStep(p *printer.Printer, st Step, opts Options) error {
	switch st.Type {
	case StepText:
		p.WriteTextRaw(st.Text, st.Encoding)
	case StepLine:
		p.WriteText(st.Text, st.Encoding)
	case StepAlign:
		p.Align(printer.Alignment(st.Align))
	case StepStyle:
		p.Style(st.Style)
	case StepSize:
		p.Size(orOne(st.Width), orOne(st.Height))
	case StepFont:
		p.Font(printer.FontFace(st.Font))
	case StepFeed:
		p.Feed(orOne(st.Lines))
	case StepSpacing:
		if st.Spacing == nil {
			p.LineSpace("", 0)
		} else {
			p.LineSpacing(*st.Spacing)
		}
	case StepEncoding:
		p.SetEncoding(st.Encoding)
	case StepBarcode:
		sym, err := printer.ParseSymbology(st.Symbology)
		if err != nil {
			return err
		}
		p.Barcode(st.Code, sym, printer.BarcodeOptions{
			Width:    st.Width,
			Height:   st.Height,
			Position: printer.HRIPosition(st.Position),
			Font:     printer.HRIFont(st.Font),
		})
	case StepQR:
		p.QRCode(st.Text, printer.Code2DOptions{
			Version: st.Version,
			Level:   printer.QRLevel(st.Level),
			Size:    st.Size,
		})
	case StepImage:
		return renderImage(p, st, opts)
	case StepCut:
		if st.Partial {
			p.PartialCut()
		} else {
			p.Cut()
		}
	case StepCashDraw:
		pin := st.Pin
		if pin == 0 {
			pin = 2
		}
		p.CashDraw(pin)
	default:
		return fmt.Errorf("unknown step type %q", st.Type)
	}
	return p.LastErr()
}

func renderImage(p *printer.Printer, st Step, opts Options) error {
	data, err := base64.StdEncoding.DecodeString(st.Data)
	if err != nil {
		return fmt.Errorf("failed to decode image data: %w", err)
	}
	img, _, err := bitmap.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if st.Density == "" {
		p.PrintImage(img, opts.MaxImageWidth)
		return nil
	}
	p.Image(bitmap.FromImage(bitmap.FitWidth(img, opts.MaxImageWidth)), printer.Density(st.Density))
	return nil
}

// FormatLine puts name on the left and amount on the right of a line of
// width characters, shortening name when both do not fit.
func FormatLine(name, amount string, width int) string {
	amountWidth := utf8.RuneCountInString(amount)
	maxName := width - amountWidth - 1
	if maxName < 4 {
		maxName = 4
	}

	if utf8.RuneCountInString(name) > maxName {
		runes := []rune(name)
		name = string(runes[:maxName-3]) + "..."
	}

	spaces := width - utf8.RuneCountInString(name) - amountWidth
	if spaces < 1 {
		spaces = 1
	}
	return name + strings.Repeat(" ", spaces) + amount
}

func separator(c byte, width int) string {
	return strings.Repeat(string(c), width)
}

func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}
