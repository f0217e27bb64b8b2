// internal/printer/text.go
package printer

import (
	"fmt"
	"strings"

	"escpos-service/internal/charset"
	"escpos-service/internal/command"
)

// Alignment selects text justification
type Alignment string

const (
	AlignLeft   Alignment = "LT"
	AlignCenter Alignment = "CT"
	AlignRight  Alignment = "RT"
)

// FontFace selects one of the resident fonts
type FontFace string

const (
	FontA FontFace = "A"
	FontB FontFace = "B"
)

// ControlCode is a single-byte feed control
type ControlCode string

const (
	ControlLF ControlCode = "LF"
	ControlCR ControlCode = "CR"
	ControlHT ControlCode = "HT"
)

// LineSpace1of8 selects 1/8-inch line spacing in LineSpace
const LineSpace1of8 = "1/8"

var alignments = map[Alignment]command.Name{
	AlignLeft:   command.TXT_ALIGN_LT,
	AlignCenter: command.TXT_ALIGN_CT,
	AlignRight:  command.TXT_ALIGN_RT,
}

var fonts = map[FontFace]command.Name{
	FontA: command.TXT_FONT_A,
	FontB: command.TXT_FONT_B,
}

var controls = map[ControlCode]command.Name{
	ControlLF: command.CTL_LF,
	ControlCR: command.CTL_CR,
	ControlHT: command.CTL_HT,
}

// styles maps a style spec to its bold, italic and underline opcodes
var styles = map[string][3]command.Name{
	"B":    {command.TXT_BOLD_ON, command.TXT_ITALIC_OFF, command.TXT_UNDERL_OFF},
	"I":    {command.TXT_BOLD_OFF, command.TXT_ITALIC_ON, command.TXT_UNDERL_OFF},
	"U":    {command.TXT_BOLD_OFF, command.TXT_ITALIC_OFF, command.TXT_UNDERL_ON},
	"U2":   {command.TXT_BOLD_OFF, command.TXT_ITALIC_OFF, command.TXT_UNDERL2_ON},
	"BI":   {command.TXT_BOLD_ON, command.TXT_ITALIC_ON, command.TXT_UNDERL_OFF},
	"BIU":  {command.TXT_BOLD_ON, command.TXT_ITALIC_ON, command.TXT_UNDERL_ON},
	"BIU2": {command.TXT_BOLD_ON, command.TXT_ITALIC_ON, command.TXT_UNDERL2_ON},
	"BU":   {command.TXT_BOLD_ON, command.TXT_ITALIC_OFF, command.TXT_UNDERL_ON},
	"BU2":  {command.TXT_BOLD_ON, command.TXT_ITALIC_OFF, command.TXT_UNDERL2_ON},
	"IU":   {command.TXT_BOLD_OFF, command.TXT_ITALIC_ON, command.TXT_UNDERL_ON},
	"IU2":  {command.TXT_BOLD_OFF, command.TXT_ITALIC_ON, command.TXT_UNDERL2_ON},
}

var styleNormal = [3]command.Name{command.TXT_BOLD_OFF, command.TXT_ITALIC_OFF, command.TXT_UNDERL_OFF}

// SetEncoding changes the charset used by WriteText and WriteTextRaw. No
// bytes are emitted.
func (p *Printer) SetEncoding(name string) *Printer {
	if !p.ready("set_encoding") {
		return p
	}
	if !charset.Valid(name) {
		p.fail("set_encoding", command.Invalidf("unknown charset %q", name))
		return p
	}
	p.encoding = name
	return p
}

// Print appends the raw bytes of text.
func (p *Printer) Print(text string) *Printer {
	return p.commit("print", p.begin().bytes([]byte(text)))
}

// Raw appends data verbatim.
func (p *Printer) Raw(data []byte) *Printer {
	return p.commit("raw", p.begin().bytes(data))
}

// PrintLine appends text followed by a line feed.
func (p *Printer) PrintLine(text string) *Printer {
	return p.commit("print_line", p.begin().bytes([]byte(text)).cmd(command.LF))
}

// WriteText encodes text in the given charset, or the active one when
// name is empty, and appends it with a trailing line feed.
func (p *Printer) WriteText(text, name string) *Printer {
	return p.commit("write_text", p.encodeText(text, name).cmd(command.LF))
}

// WriteTextRaw is WriteText without the line feed.
func (p *Printer) WriteTextRaw(text, name string) *Printer {
	return p.commit("write_text_raw", p.encodeText(text, name))
}

func (p *Printer) encodeText(text, name string) *seq {
	s := p.begin()
	if name == "" {
		name = p.encoding
	}
	b, err := charset.Encode(text, name)
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		return s
	}
	return s.bytes(b)
}

// LineFeed appends one line feed.
func (p *Printer) LineFeed() *Printer {
	return p.commit("line_feed", p.begin().cmd(command.LF))
}

// Feed appends n line feeds.
func (p *Printer) Feed(n int) *Printer {
	s := p.begin()
	if n < 0 || n > 255 {
		s.invalid("feed count %d out of range [0,255]", n)
	}
	for i := 0; i < n && s.err == nil; i++ {
		s.cmd(command.LF)
	}
	return p.commit("feed", s)
}

// Control appends a feed control byte.
func (p *Printer) Control(code ControlCode) *Printer {
	s := p.begin()
	if name, ok := controls[ControlCode(strings.ToUpper(string(code)))]; ok {
		s.cmd(name)
	} else {
		s.invalid("unknown control code %q", code)
	}
	return p.commit("control", s)
}

// Align sets text justification.
func (p *Printer) Align(a Alignment) *Printer {
	s := p.begin()
	if name, ok := alignments[Alignment(strings.ToUpper(string(a)))]; ok {
		s.cmd(name)
	} else {
		s.invalid("unknown alignment %q", a)
	}
	return p.commit("align", s)
}

// Font selects a resident font.
func (p *Printer) Font(f FontFace) *Printer {
	s := p.begin()
	if name, ok := fonts[FontFace(strings.ToUpper(string(f)))]; ok {
		s.cmd(name)
	} else {
		s.invalid("unknown font %q", f)
	}
	return p.commit("font", s)
}

// Style sets bold, italic and underline together. Unknown specs reset all
// three.
func (p *Printer) Style(spec string) *Printer {
	names, ok := styles[strings.ToUpper(spec)]
	if !ok {
		names = styleNormal
	}
	return p.commit("style", p.begin().cmd(names[:]...))
}

// Size sets the character magnification. Width and height are multiples
// of the normal size, 1 to 8.
func (p *Printer) Size(width, height int) *Printer {
	s := p.begin()
	switch {
	case width < 1 || height < 1:
		s.invalid("text size %dx%d must be positive", width, height)
	case width == 1 && height == 1:
		s.cmd(command.TXT_NORMAL)
	case width == 2 && height == 2:
		s.cmd(command.TXT_2HEIGHT, command.TXT_2WIDTH)
	default:
		s.gen(command.TXT_CUSTOM_SIZE, width, height)
	}
	return p.commit("size", s)
}

// LineSpace selects the default spacing when marker is empty, or 1/8-inch
// spacing followed by a row height byte when marker is "1/8".
func (p *Printer) LineSpace(marker string, rows int) *Printer {
	s := p.begin()
	switch marker {
	case "":
		s.cmd(command.LS_DEFAULT)
	case LineSpace1of8:
		s.cmd(command.LS_1_8).u8(rows)
	default:
		s.invalid("unknown line spacing %q", marker)
	}
	return p.commit("line_space", s)
}

// LineSpacing sets the line spacing to n motion units.
func (p *Printer) LineSpacing(n int) *Printer {
	return p.commit("line_spacing", p.begin().gen(command.LS_SET, n))
}

// MarginLeft sets the left margin.
func (p *Printer) MarginLeft(size int) *Printer {
	return p.commit("margin_left", p.begin().cmd(command.MARGIN_LEFT).u8(size))
}
