// internal/charset/charset.go
package charset

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Default is the charset a printer starts with.
const Default = "UTF-8"

// ErrUnknownCharset is returned for names no encoding is registered for.
var ErrUnknownCharset = errors.New("unknown charset")

// Code page names as printers document them, which IANA spells differently.
var aliases = map[string]encoding.Encoding{
	"CP437":   charmap.CodePage437,
	"PC437":   charmap.CodePage437,
	"CP850":   charmap.CodePage850,
	"PC850":   charmap.CodePage850,
	"CP852":   charmap.CodePage852,
	"CP858":   charmap.CodePage858,
	"CP860":   charmap.CodePage860,
	"CP863":   charmap.CodePage863,
	"CP865":   charmap.CodePage865,
	"CP866":   charmap.CodePage866,
	"CP1250":  charmap.Windows1250,
	"CP1251":  charmap.Windows1251,
	"CP1252":  charmap.Windows1252,
	"CP1253":  charmap.Windows1253,
	"CP1254":  charmap.Windows1254,
	"CP1257":  charmap.Windows1257,
	"GBK":     simplifiedchinese.GBK,
	"GB18030": simplifiedchinese.GB18030,
	"SJIS":    japanese.ShiftJIS,
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func isUTF8(name string) bool {
	switch normalize(name) {
	case "", "UTF-8", "UTF8":
		return true
	}
	return false
}

// Lookup resolves a charset name. UTF-8 resolves to unicode.UTF8.
func Lookup(name string) (encoding.Encoding, error) {
	if isUTF8(name) {
		return unicode.UTF8, nil
	}
	if enc, ok := aliases[normalize(name)]; ok {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharset, name)
	}
	return enc, nil
}

// Valid reports whether name resolves to an encoding.
func Valid(name string) bool {
	_, err := Lookup(name)
	return err == nil
}

// Encode converts UTF-8 text into the given charset. Runes the charset
// cannot represent are replaced with the charset's substitute byte.
func Encode(text, name string) ([]byte, error) {
	if isUTF8(name) {
		return []byte(text), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode text as %s: %w", name, err)
	}
	return out, nil
}

// Decode converts bytes in the given charset back to UTF-8 text.
func Decode(data []byte, name string) (string, error) {
	if isUTF8(name) {
		return string(data), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s text: %w", name, err)
	}
	return string(out), nil
}
