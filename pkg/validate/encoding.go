package validate

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names reported by DetectEncoding.
const (
	EncodingUTF8SIG = "UTF-8-SIG"
	EncodingUTF16LE = "UTF-16LE"
	EncodingUTF16BE = "UTF-16BE"
	EncodingUnknown = "unknown"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding guesses the encoding of data from its byte order mark.
// UTF-8 with or without a BOM is reported as UTF-8-SIG.
func DetectEncoding(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8SIG
	case bytes.HasPrefix(data, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return EncodingUTF16BE
	case utf8.Valid(data):
		return EncodingUTF8SIG
	default:
		return EncodingUnknown
	}
}

// SameEncoding compares encoding names ignoring case.
func SameEncoding(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case EncodingUTF8SIG:
		return unicode.UTF8BOM, nil
	case "UTF-8", "UTF8":
		return unicode.UTF8, nil
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

// DecodeText decodes data from the named encoding into a string. UTF-8
// input must be well formed.
func DecodeText(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == unicode.UTF8BOM || enc == unicode.UTF8 {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("content is not valid %s", name)
		}
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s content: %w", name, err)
	}
	return string(out), nil
}
