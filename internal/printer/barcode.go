// internal/printer/barcode.go
package printer

import (
	"strings"

	"escpos-service/internal/command"
)

// Symbology names a one-dimensional barcode type
type Symbology string

const (
	UPCA    Symbology = "UPC_A"
	UPCE    Symbology = "UPC_E"
	EAN13   Symbology = "EAN13"
	EAN8    Symbology = "EAN8"
	CODE39  Symbology = "CODE39"
	ITF     Symbology = "ITF"
	CODABAR Symbology = "CODABAR"
	CODE93  Symbology = "CODE93"
	CODE128 Symbology = "CODE128"
	CODE32  Symbology = "CODE32"
)

// HRIPosition places the human readable interpretation of a barcode
type HRIPosition string

const (
	HRIOff   HRIPosition = "OFF"
	HRIAbove HRIPosition = "ABV"
	HRIBelow HRIPosition = "BLW"
	HRIBoth  HRIPosition = "BTH"
)

// HRIFont selects the font of the human readable interpretation
type HRIFont string

const (
	HRIFontA HRIFont = "A"
	HRIFontB HRIFont = "B"
)

// BarcodeOptions are emitted before the barcode. Zero values leave the
// printer's current setting untouched, so Height accepts 1-255 here even
// though GS h itself takes 0; a zero-dot barcode prints nothing.
type BarcodeOptions struct {
	Width    int // module width 1-5
	Height   int // dots 1-255, 0 = unset
	Position HRIPosition
	Font     HRIFont
}

type symbology struct {
	name         command.Name
	lengthPrefix bool
	lengths      []int // allowed lengths, nil for any 1-255
	charset      string
	even         bool
}

const (
	digits      = "0123456789"
	code39Chars = digits + "ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./"
	codabarSet  = digits + "ABCDabcd$+-./:"
)

var symbologies = map[Symbology]symbology{
	UPCA:    {name: command.BARCODE_UPC_A, lengths: []int{11, 12}, charset: digits},
	UPCE:    {name: command.BARCODE_UPC_E, lengths: []int{6, 7, 8, 11, 12}, charset: digits},
	EAN13:   {name: command.BARCODE_EAN13, lengths: []int{12, 13}, charset: digits},
	EAN8:    {name: command.BARCODE_EAN8, lengths: []int{7, 8}, charset: digits},
	CODE39:  {name: command.BARCODE_CODE39, charset: code39Chars},
	ITF:     {name: command.BARCODE_ITF, charset: digits, even: true},
	CODABAR: {name: command.BARCODE_CODABAR, charset: codabarSet},
	CODE93:  {name: command.BARCODE_CODE93, lengthPrefix: true},
	CODE128: {name: command.BARCODE_CODE128, lengthPrefix: true},
	CODE32:  {name: command.BARCODE_CODE32, lengthPrefix: true, lengths: []int{8, 9}, charset: digits},
}

var hriPositions = map[HRIPosition]command.Name{
	HRIOff:   command.BARCODE_TXT_OFF,
	HRIAbove: command.BARCODE_TXT_ABV,
	HRIBelow: command.BARCODE_TXT_BLW,
	HRIBoth:  command.BARCODE_TXT_BTH,
}

var hriFonts = map[HRIFont]command.Name{
	HRIFontA: command.BARCODE_TXT_FONT_A,
	HRIFontB: command.BARCODE_TXT_FONT_B,
}

// ParseSymbology accepts names such as "EAN13", "upc-a" or "Code128".
func ParseSymbology(s string) (Symbology, error) {
	sym := Symbology(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	if _, ok := symbologies[sym]; !ok {
		return "", command.Invalidf("unknown barcode symbology %q", s)
	}
	return sym, nil
}

// validate checks code against the symbology's alphabet and length rules
func (sym symbology) validate(kind Symbology, code string) error {
	n := len(code)
	if n == 0 || n > 255 {
		return command.Invalidf("%s code length %d out of range [1,255]", kind, n)
	}
	if sym.lengths != nil {
		ok := false
		for _, l := range sym.lengths {
			if n == l {
				ok = true
				break
			}
		}
		if !ok {
			return command.Invalidf("%s code length %d, want one of %v", kind, n, sym.lengths)
		}
	}
	if sym.even && n%2 != 0 {
		return command.Invalidf("%s code length %d must be even", kind, n)
	}
	for i := 0; i < n; i++ {
		c := code[i]
		if sym.charset == "" {
			if c > 0x7F {
				return command.Invalidf("%s code has non-ASCII byte 0x%02X at %d", kind, c, i)
			}
			continue
		}
		if strings.IndexByte(sym.charset, c) < 0 {
			return command.Invalidf("%s code has illegal character %q at %d", kind, c, i)
		}
	}
	return nil
}

// Barcode prints code as a one-dimensional barcode.
func (p *Printer) Barcode(code string, kind Symbology, opts BarcodeOptions) *Printer {
	s := p.begin()

	sym, ok := symbologies[kind]
	if !ok {
		s.invalid("unknown barcode symbology %q", kind)
		return p.commit("barcode", s)
	}
	if err := sym.validate(kind, code); err != nil {
		s.err = err
		return p.commit("barcode", s)
	}

	native := p.table.Has(command.BARCODE_MODE_ON)
	if native {
		s.cmd(command.BARCODE_MODE_ON)
	}

	if opts.Width != 0 {
		s.gen(command.BARCODE_WIDTH, opts.Width)
	}
	if opts.Height != 0 {
		s.gen(command.BARCODE_HEIGHT, opts.Height)
	} else if native {
		s.cmd(command.BARCODE_HEIGHT_DEFAULT)
	}
	if opts.Position != "" {
		if name, ok := hriPositions[HRIPosition(strings.ToUpper(string(opts.Position)))]; ok {
			s.cmd(name)
		} else {
			s.invalid("unknown barcode text position %q", opts.Position)
		}
	}
	if opts.Font != "" {
		if name, ok := hriFonts[HRIFont(strings.ToUpper(string(opts.Font)))]; ok {
			s.cmd(name)
		} else {
			s.invalid("unknown barcode text font %q", opts.Font)
		}
	}

	s.cmd(sym.name)
	if sym.lengthPrefix {
		s.u8(len(code)).bytes([]byte(code))
	} else {
		s.bytes([]byte(code)).bytes([]byte{0x00})
	}

	if native {
		s.cmd(command.BARCODE_MODE_OFF)
	}
	return p.commit("barcode", s)
}
