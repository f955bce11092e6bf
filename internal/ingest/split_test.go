package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		delim rune
		want  []string
	}{
		{"plain", "a,b,c", Comma, []string{"a", "b", "c"}},
		{"quoted delimiter", `"New York, NY",1`, Comma, []string{"New York, NY", "1"}},
		{"escaped quote", `"say ""hi""",x`, Comma, []string{`say "hi"`, "x"}},
		{"trimmed", " a , b ", Comma, []string{"a", "b"}},
		{"trailing empty", "a,", Comma, []string{"a", ""}},
		{"single cell", "only", Comma, []string{"only"}},
		{"semicolon keeps commas", "1,5;2", Semicolon, []string{"1,5", "2"}},
		{"quote mid-cell", `ab"c,d"e,f`, Comma, []string{"abc,de", "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitFields(tt.line, tt.delim))
		})
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("a\r\n\n   \nb\n\t\nc")
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Empty(t, SplitLines("\n\r\n  "))
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, Semicolon, DetectDelimiter("latitude;longitude;subtotal"))
	assert.Equal(t, Comma, DetectDelimiter("latitude,longitude,subtotal"))
	assert.Equal(t, Comma, DetectDelimiter("latitude"))
}

func TestDecodeText(t *testing.T) {
	t.Run("utf8 bom dropped", func(t *testing.T) {
		got, err := DecodeText([]byte("\xEF\xBB\xBFlatitude"))
		require.NoError(t, err)
		assert.Equal(t, "latitude", got)
	})

	t.Run("utf16le transcoded", func(t *testing.T) {
		got, err := DecodeText([]byte{0xFF, 0xFE, 'o', 0, 'k', 0})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := DecodeText([]byte{0xC3, 0x28})
		assert.ErrorIs(t, err, ErrNotText)
	})

	t.Run("binary", func(t *testing.T) {
		_, err := DecodeText([]byte("PK\x03\x04\x00\x00"))
		assert.ErrorIs(t, err, ErrNotText)
	})
}
