// internal/command/command.go
package command

// Name identifies an opcode in the command table
type Name string

// Generator builds a parametrized opcode from numeric arguments
type Generator func(args ...int) ([]byte, error)

type entry struct {
	fixed []byte
	gen   Generator
}

// Feed control sequences
const (
	LF     Name = "LF"
	CTL_LF Name = "CTL_LF"
	CTL_CR Name = "CTL_CR"
	CTL_HT Name = "CTL_HT"
)

// Line spacing
const (
	LS_DEFAULT Name = "LS_DEFAULT"
	LS_1_8     Name = "LS_1_8"
	LS_SET     Name = "LS_SET" // generator: n
)

// Hardware, cash drawer, margins and paper
const (
	HW_INIT        Name = "HW_INIT"
	HW_SELECT      Name = "HW_SELECT"
	CD_KICK_2      Name = "CD_KICK_2"
	CD_KICK_5      Name = "CD_KICK_5"
	MARGIN_LEFT    Name = "MARGIN_LEFT"
	PAPER_FULL_CUT Name = "PAPER_FULL_CUT"
	PAPER_PART_CUT Name = "PAPER_PART_CUT"
)

// Text format
const (
	TXT_NORMAL      Name = "TXT_NORMAL"
	TXT_2HEIGHT     Name = "TXT_2HEIGHT"
	TXT_2WIDTH      Name = "TXT_2WIDTH"
	TXT_CUSTOM_SIZE Name = "TXT_CUSTOM_SIZE" // generator: width, height
	TXT_WIDTH       Name = "TXT_WIDTH"       // generator: 1-8
	TXT_HEIGHT      Name = "TXT_HEIGHT"      // generator: 1-8
	TXT_UNDERL_OFF  Name = "TXT_UNDERL_OFF"
	TXT_UNDERL_ON   Name = "TXT_UNDERL_ON"
	TXT_UNDERL2_ON  Name = "TXT_UNDERL2_ON"
	TXT_BOLD_OFF    Name = "TXT_BOLD_OFF"
	TXT_BOLD_ON     Name = "TXT_BOLD_ON"
	TXT_ITALIC_OFF  Name = "TXT_ITALIC_OFF"
	TXT_ITALIC_ON   Name = "TXT_ITALIC_ON"
	TXT_FONT_A      Name = "TXT_FONT_A"
	TXT_FONT_B      Name = "TXT_FONT_B"
	TXT_ALIGN_LT    Name = "TXT_ALIGN_LT"
	TXT_ALIGN_CT    Name = "TXT_ALIGN_CT"
	TXT_ALIGN_RT    Name = "TXT_ALIGN_RT"
)

// Barcode format
const (
	BARCODE_TXT_OFF        Name = "BARCODE_TXT_OFF"
	BARCODE_TXT_ABV        Name = "BARCODE_TXT_ABV"
	BARCODE_TXT_BLW        Name = "BARCODE_TXT_BLW"
	BARCODE_TXT_BTH        Name = "BARCODE_TXT_BTH"
	BARCODE_TXT_FONT_A     Name = "BARCODE_TXT_FONT_A"
	BARCODE_TXT_FONT_B     Name = "BARCODE_TXT_FONT_B"
	BARCODE_HEIGHT         Name = "BARCODE_HEIGHT" // generator: 0-255
	BARCODE_WIDTH          Name = "BARCODE_WIDTH"  // generator: 1-5
	BARCODE_HEIGHT_DEFAULT Name = "BARCODE_HEIGHT_DEFAULT"
	BARCODE_WIDTH_DEFAULT  Name = "BARCODE_WIDTH_DEFAULT"
	BARCODE_UPC_A          Name = "BARCODE_UPC_A"
	BARCODE_UPC_E          Name = "BARCODE_UPC_E"
	BARCODE_EAN13          Name = "BARCODE_EAN13"
	BARCODE_EAN8           Name = "BARCODE_EAN8"
	BARCODE_CODE39         Name = "BARCODE_CODE39"
	BARCODE_ITF            Name = "BARCODE_ITF"
	BARCODE_CODABAR        Name = "BARCODE_CODABAR"
	BARCODE_CODE93         Name = "BARCODE_CODE93"
	BARCODE_CODE128        Name = "BARCODE_CODE128"
	BARCODE_CODE32         Name = "BARCODE_CODE32"
)

// 2D code format
const (
	CODE2D_TYPE_PDF417     Name = "CODE2D_TYPE_PDF417"
	CODE2D_TYPE_DATAMATRIX Name = "CODE2D_TYPE_DATAMATRIX"
	CODE2D_TYPE_QR         Name = "CODE2D_TYPE_QR"
	CODE2D                 Name = "CODE2D"
	QR_LEVEL_L             Name = "QR_LEVEL_L"
	QR_LEVEL_M             Name = "QR_LEVEL_M"
	QR_LEVEL_Q             Name = "QR_LEVEL_Q"
	QR_LEVEL_H             Name = "QR_LEVEL_H"
)

// Image, raster and bit image selectors
const (
	S_RASTER_N  Name = "S_RASTER_N"
	S_RASTER_2W Name = "S_RASTER_2W"
	S_RASTER_2H Name = "S_RASTER_2H"
	S_RASTER_Q  Name = "S_RASTER_Q"
	BITMAP_S8   Name = "BITMAP_S8"
	BITMAP_D8   Name = "BITMAP_D8"
	BITMAP_S24  Name = "BITMAP_S24"
	BITMAP_D24  Name = "BITMAP_D24"
	GSV0_NORMAL Name = "GSV0_NORMAL"
	GSV0_DW     Name = "GSV0_DW"
	GSV0_DH     Name = "GSV0_DH"
	GSV0_DWDH   Name = "GSV0_DWDH"
)

// Model-specific names, resolved only through a model override table
const (
	BARCODE_MODE_ON  Name = "BARCODE_MODE_ON"
	BARCODE_MODE_OFF Name = "BARCODE_MODE_OFF"
	QR_PIXEL_SIZE    Name = "QR_PIXEL_SIZE"
	QR_VERSION       Name = "QR_VERSION"
	QR_LEVEL         Name = "QR_LEVEL"
	QR_SAVEBUF_P1    Name = "QR_SAVEBUF_P1"
	QR_SAVEBUF_P2    Name = "QR_SAVEBUF_P2"
	QR_PRINTBUF_P1   Name = "QR_PRINTBUF_P1"
	QR_PRINTBUF_P2   Name = "QR_PRINTBUF_P2"
)

// Text size matrices, indexed 1-8
var (
	txtWidth  = [9]byte{0, 0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70}
	txtHeight = [9]byte{0, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
)

// Barcode module widths, indexed 1-5
var barcodeWidth = [6]byte{0, 0x02, 0x03, 0x04, 0x05, 0x06}

var generic = map[Name]entry{
	LF:     fixed(0x0A),
	CTL_LF: fixed(0x0A), // Print and line feed
	CTL_CR: fixed(0x0D), // Carriage return
	CTL_HT: fixed(0x09), // Horizontal tab

	LS_DEFAULT: fixed(0x1B, 0x32), // 1/6-inch line spacing
	LS_1_8:     fixed(0x1B, 0x30), // 1/8-inch line spacing
	LS_SET:     generator(lineSpacing),

	HW_INIT:   fixed(0x1B, 0x40),       // ESC @
	HW_SELECT: fixed(0x1B, 0x3D, 0x01), // ESC = 1

	CD_KICK_2: fixed(0x1B, 0x70, 0x00), // pulse to pin 2
	CD_KICK_5: fixed(0x1B, 0x70, 0x01), // pulse to pin 5

	MARGIN_LEFT: fixed(0x1D, 0x4C), // GS L

	PAPER_FULL_CUT: fixed(0x1B, 0x69),
	PAPER_PART_CUT: fixed(0x1B, 0x6D),

	TXT_NORMAL:      fixed(0x1D, 0x21, 0x00),
	TXT_2HEIGHT:     fixed(0x1D, 0x21, 0x01),
	TXT_2WIDTH:      fixed(0x1B, 0x21, 0x10),
	TXT_CUSTOM_SIZE: generator(customSize),
	TXT_WIDTH:       generator(sizeMatrix(txtWidth)),
	TXT_HEIGHT:      generator(sizeMatrix(txtHeight)),
	TXT_UNDERL_OFF:  fixed(0x1B, 0x2D, 0x00),
	TXT_UNDERL_ON:   fixed(0x1B, 0x2D, 0x01),
	TXT_UNDERL2_ON:  fixed(0x1B, 0x2D, 0x02),
	TXT_BOLD_OFF:    fixed(0x1B, 0x45, 0x00),
	TXT_BOLD_ON:     fixed(0x1B, 0x45, 0x01),
	TXT_ITALIC_OFF:  fixed(0x1B, 0x34, 0x00),
	TXT_ITALIC_ON:   fixed(0x1B, 0x34, 0x01),
	TXT_FONT_A:      fixed(0x1B, 0x21, 0x00),
	TXT_FONT_B:      fixed(0x1B, 0x21, 0x01),
	TXT_ALIGN_LT:    fixed(0x1B, 0x61, 0x00),
	TXT_ALIGN_CT:    fixed(0x1B, 0x61, 0x01),
	TXT_ALIGN_RT:    fixed(0x1B, 0x61, 0x02),

	BARCODE_TXT_OFF:        fixed(0x1D, 0x48, 0x00), // HRI off
	BARCODE_TXT_ABV:        fixed(0x1D, 0x48, 0x01), // HRI above
	BARCODE_TXT_BLW:        fixed(0x1D, 0x48, 0x02), // HRI below
	BARCODE_TXT_BTH:        fixed(0x1D, 0x48, 0x03), // HRI above and below
	BARCODE_TXT_FONT_A:     fixed(0x1D, 0x66, 0x00),
	BARCODE_TXT_FONT_B:     fixed(0x1D, 0x66, 0x01),
	BARCODE_HEIGHT:         generator(barcodeHeight),
	BARCODE_WIDTH:          generator(barcodeWidthCmd),
	BARCODE_HEIGHT_DEFAULT: fixed(0x1D, 0x68, 0xA2),
	BARCODE_WIDTH_DEFAULT:  fixed(0x1D, 0x77, 0x03),
	BARCODE_UPC_A:          fixed(0x1D, 0x6B, 0x00),
	BARCODE_UPC_E:          fixed(0x1D, 0x6B, 0x01),
	BARCODE_EAN13:          fixed(0x1D, 0x6B, 0x02),
	BARCODE_EAN8:           fixed(0x1D, 0x6B, 0x03),
	BARCODE_CODE39:         fixed(0x1D, 0x6B, 0x04),
	BARCODE_ITF:            fixed(0x1D, 0x6B, 0x05),
	BARCODE_CODABAR:        fixed(0x1D, 0x6B, 0x06), // NW7
	// CODE93 and CODE128 deliberately differ from the legacy 1D 6B 07/08
	// values: those select the NUL-terminated form, but Barcode always
	// sends a length byte for these symbologies, which needs GS k H/I.
	BARCODE_CODE93:  fixed(0x1D, 0x6B, 0x48),
	BARCODE_CODE128: fixed(0x1D, 0x6B, 0x49),
	BARCODE_CODE32:  fixed(0x1D, 0x6B, 0x14), // length-prefixed

	CODE2D_TYPE_PDF417:     fixed(0x1D, 0x5A, 0x00),
	CODE2D_TYPE_DATAMATRIX: fixed(0x1D, 0x5A, 0x01),
	CODE2D_TYPE_QR:         fixed(0x1D, 0x5A, 0x02),
	CODE2D:                 fixed(0x1B, 0x5A),
	QR_LEVEL_L:             fixed('L'), // 7%
	QR_LEVEL_M:             fixed('M'), // 15%
	QR_LEVEL_Q:             fixed('Q'), // 25%
	QR_LEVEL_H:             fixed('H'), // 30%

	S_RASTER_N:  fixed(0x1D, 0x76, 0x30, 0x00),
	S_RASTER_2W: fixed(0x1D, 0x76, 0x30, 0x01),
	S_RASTER_2H: fixed(0x1D, 0x76, 0x30, 0x02),
	S_RASTER_Q:  fixed(0x1D, 0x76, 0x30, 0x03),
	BITMAP_S8:   fixed(0x1B, 0x2A, 0x00),
	BITMAP_D8:   fixed(0x1B, 0x2A, 0x01),
	BITMAP_S24:  fixed(0x1B, 0x2A, 0x20),
	BITMAP_D24:  fixed(0x1B, 0x2A, 0x21),
	GSV0_NORMAL: fixed(0x1D, 0x76, 0x30, 0x00),
	GSV0_DW:     fixed(0x1D, 0x76, 0x30, 0x01),
	GSV0_DH:     fixed(0x1D, 0x76, 0x30, 0x02),
	GSV0_DWDH:   fixed(0x1D, 0x76, 0x30, 0x03),
}

func fixed(b ...byte) entry {
	return entry{fixed: b}
}

func generator(g Generator) entry {
	return entry{gen: g}
}

func argCount(args []int, n int) error {
	if len(args) != n {
		return Invalidf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func inRange(what string, v, min, max int) error {
	if v < min || v > max {
		return Invalidf("%s %d out of range [%d,%d]", what, v, min, max)
	}
	return nil
}

// customSize encodes GS ! n with n = (width-1)*16 + (height-1)
func customSize(args ...int) ([]byte, error) {
	if err := argCount(args, 2); err != nil {
		return nil, err
	}
	width, height := args[0], args[1]
	if err := inRange("text width", width, 1, 8); err != nil {
		return nil, err
	}
	if err := inRange("text height", height, 1, 8); err != nil {
		return nil, err
	}
	return []byte{0x1D, 0x21, txtWidth[width] + txtHeight[height]}, nil
}

func sizeMatrix(m [9]byte) Generator {
	return func(args ...int) ([]byte, error) {
		if err := argCount(args, 1); err != nil {
			return nil, err
		}
		if err := inRange("size index", args[0], 1, 8); err != nil {
			return nil, err
		}
		return []byte{m[args[0]]}, nil
	}
}

func barcodeHeight(args ...int) ([]byte, error) {
	if err := argCount(args, 1); err != nil {
		return nil, err
	}
	if err := inRange("barcode height", args[0], 0, 255); err != nil {
		return nil, err
	}
	return []byte{0x1D, 0x68, byte(args[0])}, nil
}

func barcodeWidthCmd(args ...int) ([]byte, error) {
	if err := argCount(args, 1); err != nil {
		return nil, err
	}
	if err := inRange("barcode width", args[0], 1, 5); err != nil {
		return nil, err
	}
	return []byte{0x1D, 0x77, barcodeWidth[args[0]]}, nil
}

func lineSpacing(args ...int) ([]byte, error) {
	if err := argCount(args, 1); err != nil {
		return nil, err
	}
	if err := inRange("line spacing", args[0], 0, 255); err != nil {
		return nil, err
	}
	return []byte{0x1B, 0x33, byte(args[0])}, nil
}
