package decoder

import (
	"encoding/csv"
	"strings"
	"unicode/utf8"
)

// Delimiters lists the candidates DetectDelimiter chooses from, in tie-break order.
var Delimiters = []rune{',', ';', '\t', '|'}

// how many non-empty lines DetectDelimiter samples
const delimiterSampleLines = 10

// DecodeDelimited splits text into rows. Quoted fields may contain the delimiter, line
// breaks and doubled quotes. A quote opens a quoted field when only whitespace precedes
// it in the field, and that whitespace is dropped, so `a, "b, c"` is two cells. Rows made
// only of empty cells are dropped. It never fails: an unterminated quote runs to the end
// of the input.
func DecodeDelimited(text string, delim rune) []Row {
	var (
		rows     []Row
		row      Row
		field    strings.Builder
		inQuotes bool
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		if !row.IsEmpty() {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size

		if inQuotes {
			if r == '"' {
				if strings.HasPrefix(text[i:], `"`) {
					field.WriteByte('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			field.WriteRune(r)
			continue
		}

		switch r {
		case '"':
			if strings.TrimSpace(field.String()) == "" {
				field.Reset()
				inQuotes = true
				continue
			}
			field.WriteRune(r)
		case delim:
			endField()
		case '\r':
			if strings.HasPrefix(text[i:], "\n") {
				i++
			}
			endRow()
		case '\n':
			endRow()
		default:
			field.WriteRune(r)
		}
	}
	endRow()

	return rows
}

// EncodeDelimited writes rows back as delimited text with RFC 4180 quoting.
func EncodeDelimited(rows []Row, delim rune) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = delim
	for _, row := range rows {
		// strings.Builder never fails, so neither does the writer
		_ = w.Write(row)
	}
	w.Flush()
	return b.String()
}

// DetectDelimiter picks the candidate that splits the most sampled lines into the same
// number of fields. Counting ignores quoted sections. Defaults to ','.
func DetectDelimiter(text string) rune {
	lines := sampleLines(text, delimiterSampleLines)

	best, bestScore := Delimiters[0], 0
	for _, d := range Delimiters {
		freq := make(map[int]int)
		for _, line := range lines {
			if n := countOutsideQuotes(line, d); n > 0 {
				freq[n]++
			}
		}

		score := 0
		for count, agreeing := range freq {
			if s := count * agreeing; s > score {
				score = s
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func sampleLines(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

func countOutsideQuotes(line string, d rune) int {
	n, inQuotes := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == d && !inQuotes:
			n++
		}
	}
	return n
}
