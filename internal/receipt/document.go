// internal/receipt/document.go
package receipt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StepType identifies a layout step
type StepType string

const (
	StepText     StepType = "text"
	StepLine     StepType = "line"
	StepAlign    StepType = "align"
	StepStyle    StepType = "style"
	StepSize     StepType = "size"
	StepFont     StepType = "font"
	StepFeed     StepType = "feed"
	StepSpacing  StepType = "spacing"
	StepEncoding StepType = "encoding"
	StepBarcode  StepType = "barcode"
	StepQR       StepType = "qr"
	StepImage    StepType = "image"
	StepCut      StepType = "cut"
	StepCashDraw StepType = "cashdraw"
)

// Document is a printable receipt. Header, items, total and footer follow
// the usual receipt layout; Steps give free-form control in between.
type Document struct {
	Encoding   string `json:"encoding,omitempty"`
	Header     string `json:"header,omitempty"`
	Steps      []Step `json:"steps,omitempty"`
	Items      []Item `json:"items,omitempty"`
	Currency   string `json:"currency,omitempty"`
	TotalLabel string `json:"total_label,omitempty"`
	Footer     string `json:"footer,omitempty"`
	OpenDrawer bool   `json:"open_drawer"`
	Cut        bool   `json:"cut"`
}

// Step is one layout instruction. Only the fields relevant to Type are read.
type Step struct {
	Type      StepType `json:"type"`
	Text      string   `json:"text,omitempty"`
	Encoding  string   `json:"encoding,omitempty"`
	Align     string   `json:"align,omitempty"`
	Style     string   `json:"style,omitempty"`
	Font      string   `json:"font,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
	Lines     int      `json:"lines,omitempty"`
	Spacing   *int     `json:"spacing,omitempty"`
	Code      string   `json:"code,omitempty"`
	Symbology string   `json:"symbology,omitempty"`
	Position  string   `json:"position,omitempty"`
	Level     string   `json:"level,omitempty"`
	Size      int      `json:"size,omitempty"`
	Version   int      `json:"version,omitempty"`
	Data      string   `json:"data,omitempty"` // base64 image
	Density   string   `json:"density,omitempty"`
	Pin       int      `json:"pin,omitempty"`
	Partial   bool     `json:"partial,omitempty"`
}

// Item is a priced receipt line. A zero quantity counts as one.
type Item struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

var oneQty = decimal.NewFromInt(1)

// Qty returns the effective quantity
func (i Item) Qty() decimal.Decimal {
	if i.Quantity.IsZero() {
		return oneQty
	}
	return i.Quantity
}

// Amount returns quantity times price
func (i Item) Amount() decimal.Decimal {
	return i.Qty().Mul(i.Price)
}

// Total sums the item amounts
func (d *Document) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Amount())
	}
	return total
}

var stepTypes = map[StepType]bool{
	StepText: true, StepLine: true, StepAlign: true, StepStyle: true,
	StepSize: true, StepFont: true, StepFeed: true, StepSpacing: true,
	StepEncoding: true, StepBarcode: true, StepQR: true, StepImage: true,
	StepCut: true, StepCashDraw: true,
}

// Parse decodes and validates a JSON document
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse receipt document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document structure. Byte level argument checks are
// left to the printer.
func (d *Document) Validate() error {
	if d.Header == "" && d.Footer == "" && len(d.Steps) == 0 && len(d.Items) == 0 {
		return fmt.Errorf("receipt document is empty")
	}
	for i := range d.Steps {
		st := &d.Steps[i]
		st.Type = StepType(strings.ToLower(string(st.Type)))
		if !stepTypes[st.Type] {
			return fmt.Errorf("step %d: unknown type %q", i, st.Type)
		}
		switch st.Type {
		case StepBarcode:
			if st.Code == "" || st.Symbology == "" {
				return fmt.Errorf("step %d: barcode requires code and symbology", i)
			}
		case StepQR:
			if st.Text == "" {
				return fmt.Errorf("step %d: qr requires text", i)
			}
		case StepImage:
			if st.Data == "" {
				return fmt.Errorf("step %d: image requires data", i)
			}
		}
	}
	for i, item := range d.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("item %d: name is required", i)
		}
		if item.Quantity.IsNegative() {
			return fmt.Errorf("item %d: quantity must not be negative", i)
		}
	}
	return nil
}
