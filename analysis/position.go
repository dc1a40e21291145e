package analysis

import (
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Position is a zero-based line/character pair. Character counts UTF-16
// code units, matching editor positions.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Selection is a half-open range of editor text. Start <= End in document order.
type Selection struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Cursor returns the zero-width selection at p.
func Cursor(p Position) Selection {
	return Selection{Start: p, End: p}
}

// byteColumn converts a UTF-16 character offset within line to a byte offset.
// Offsets past the end of the line clamp to its length.
func byteColumn(line string, character int) int {
	units := 0

	for i, r := range line {
		if units >= character {
			return i
		}

		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}

		units += n
	}

	return len(line)
}

// utf16Column converts a byte offset within line to a UTF-16 character offset.
func utf16Column(line string, col int) int {
	if col > len(line) {
		col = len(line)
	}

	units := 0

	for col > 0 {
		r, size := utf8.DecodeRuneInString(line)
		if size > col {
			break
		}

		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}

		units += n
		line = line[size:]
		col -= size
	}

	return units
}

// SplitAt splits line at a UTF-16 character offset.
func SplitAt(line string, character int) (before, after string) {
	col := byteColumn(line, character)

	return line[:col], line[col:]
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	return utf16Column(s, len(s))
}

// span is a selection in tree-sitter coordinates (zero-based rows, byte columns).
type span struct {
	start sitter.Point
	end   sitter.Point
}

func toSpan(lines []string, sel Selection) span {
	return span{
		start: toPoint(lines, sel.Start),
		end:   toPoint(lines, sel.End),
	}
}

func toPoint(lines []string, p Position) sitter.Point {
	if p.Line < 0 {
		return sitter.Point{}
	}

	if p.Line >= len(lines) {
		if len(lines) == 0 {
			return sitter.Point{}
		}

		last := len(lines) - 1

		return sitter.Point{Row: uint32(last), Column: uint32(len(lines[last]))} //nolint:gosec // bounded by text size
	}

	return sitter.Point{
		Row:    uint32(p.Line),                               //nolint:gosec // bounded by text size
		Column: uint32(byteColumn(lines[p.Line], p.Character)), //nolint:gosec // bounded by text size
	}
}

func pointLess(a, b sitter.Point) bool {
	return a.Row < b.Row || (a.Row == b.Row && a.Column < b.Column)
}

func pointLessEq(a, b sitter.Point) bool {
	return !pointLess(b, a)
}
