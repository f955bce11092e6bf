package ingest

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported field delimiters.
const (
	Comma     = ','
	Semicolon = ';'
)

// ErrNotText is returned by DecodeText for input that is not UTF-8 (or BOM-marked UTF-16) text.
var ErrNotText = errors.New("file is not valid UTF-8 text")

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// DecodeText turns an uploaded file into a string. A leading UTF-8 BOM is
// dropped and BOM-marked UTF-16 is transcoded; anything else must already be
// valid UTF-8 without NUL bytes.
func DecodeText(raw []byte) (string, error) {
	utf16 := bytes.HasPrefix(raw, bomUTF16BE) || bytes.HasPrefix(raw, bomUTF16LE)
	if !utf16 && (!utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0) {
		return "", ErrNotText
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", errors.Join(ErrNotText, err)
	}
	return string(out), nil
}

// SplitLines splits text on \n or \r\n and drops lines that are blank after trimming.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// DetectDelimiter picks ';' when the header line contains one and ',' otherwise.
func DetectDelimiter(headerLine string) rune {
	if strings.ContainsRune(headerLine, Semicolon) {
		return Semicolon
	}
	return Comma
}

// SplitFields splits one logical line on delim. A double quote toggles quoted
// mode, in which delim is literal; a doubled quote inside a quoted section is
// an escaped quote. The quote characters themselves are consumed and every
// cell is trimmed.
func SplitFields(line string, delim rune) []string {
	var (
		cells    []string
		current  strings.Builder
		inQuotes bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == delim && !inQuotes:
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	cells = append(cells, strings.TrimSpace(current.String()))

	return cells
}
