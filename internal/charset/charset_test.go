// internal/charset/charset_test.go
package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		charset string
		text    string
	}{
		{"UTF-8", "Grüße, 東京 ✓"},
		{"", "plain"},
		{"CP437", "Café ½ ░"},
		{"cp850", "Señor Ñ"},
		{"ISO-8859-1", "naïve"},
		{"windows-1252", "€ 12,50"},
		{"Shift_JIS", "レシート"},
		{"GB18030", "收据"},
	}

	for _, tt := range tests {
		t.Run(tt.charset, func(t *testing.T) {
			encoded, err := Encode(tt.text, tt.charset)
			require.NoError(t, err)

			decoded, err := Decode(encoded, tt.charset)
			require.NoError(t, err)
			assert.Equal(t, tt.text, decoded)
		})
	}
}

func TestEncodeSingleByte(t *testing.T) {
	got, err := Encode("é", "CP437")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82}, got)
}

func TestEncodeReplacesUnsupported(t *testing.T) {
	got, err := Encode("a東b", "CP437")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, byte('a'), got[0])
	assert.Equal(t, byte('b'), got[2])
}

func TestUnknownCharset(t *testing.T) {
	_, err := Encode("x", "klingon-1")
	assert.ErrorIs(t, err, ErrUnknownCharset)
	assert.False(t, Valid("klingon-1"))
	assert.True(t, Valid("utf8"))
}
