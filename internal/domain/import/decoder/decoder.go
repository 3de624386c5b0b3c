// Package decoder turns uploaded statement bytes into rows of string cells.
// It sniffs the container (xlsx, legacy xls or delimited text) and never fails on
// malformed text: whatever can be read is returned.
package decoder

import (
	"bytes"
	"errors"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Row is one decoded record. Cells keep their source order.
type Row []string

// Cell returns the i-th cell or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// IsEmpty reports whether every cell is the empty string.
func (r Row) IsEmpty() bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}

// Kind identifies the container a file was decoded from.
type Kind string

const (
	KindDelimited Kind = "delimited"
	KindXLSX      Kind = "xlsx"
	KindXLS       Kind = "xls"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

var ErrUnreadableWorkbook = errors.New("workbook could not be read")

// Decoder decodes uploads. The zero value is not usable; use New.
type Decoder struct {
	logger *slog.Logger
}

// New returns a decoder that logs unreadable workbooks to logger.
func New(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode sniffs content and returns its rows. Workbooks that cannot be opened yield
// zero rows; the reason is logged.
func (d *Decoder) Decode(content []byte) ([]Row, Kind) {
	kind := Sniff(content)

	var (
		rows []Row
		err  error
	)
	switch kind {
	case KindXLSX:
		rows, err = DecodeXLSX(content)
	case KindXLS:
		rows, err = DecodeXLS(content)
	default:
		text := DecodeText(content)
		rows = DecodeDelimited(text, DetectDelimiter(text))
	}

	if err != nil {
		d.logger.Warn("failed to decode workbook", "kind", string(kind), "error", err)
		return nil, kind
	}
	return rows, kind
}

// Sniff identifies the container from its leading bytes.
func Sniff(content []byte) Kind {
	switch {
	case bytes.HasPrefix(content, zipMagic):
		return KindXLSX
	case bytes.HasPrefix(content, ole2Magic):
		return KindXLS
	default:
		return KindDelimited
	}
}

// DecodeText strips a UTF-8 BOM and falls back to Windows-1252 when the content is not
// valid UTF-8. Windows-1252 is a superset of Latin-1 for printable characters.
func DecodeText(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content)
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return string(bytes.ToValidUTF8(content, []byte("\uFFFD")))
	}
	return string(decoded)
}
