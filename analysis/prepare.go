package analysis

import (
	"strings"
)

// Sentinel marks the cursor in prepared text. Any syntax node whose source
// contains it is at or adjoining the cursor.
const Sentinel = "TRIGGER_CHARACTER"

// Prepared is editor text patched so that an in-progress edit parses.
type Prepared struct {
	// Text is the patched source with Sentinel inserted at the cursor and
	// unterminated template-literal lines joined into one line.
	Text string

	// CursorToken is the token as it reads in Text: Sentinel, or "." +
	// Sentinel when the cursor follows a member-access dot.
	CursorToken string

	// Cursor spans the sentinel within Text.
	Cursor Selection
}

// Prepare inserts the cursor sentinel into text at pos and flattens
// multi-line template literals.
func Prepare(text string, pos Position) Prepared {
	lines := strings.Split(text, "\n")

	row := min(max(pos.Line, 0), len(lines)-1)
	line := lines[row]
	col := byteColumn(line, pos.Character)

	token := Sentinel
	if col > 0 && line[col-1] == '.' {
		token = "." + Sentinel
	}

	lines[row] = line[:col] + Sentinel + line[col:]

	flat, cursorRow, cursorCol := flattenTemplates(lines, row, col)
	cursorLine := flat[cursorRow]

	start := Position{Line: cursorRow, Character: utf16Column(cursorLine, cursorCol)}
	end := Position{Line: cursorRow, Character: utf16Column(cursorLine, cursorCol+len(Sentinel))}

	return Prepared{
		Text:        strings.Join(flat, "\n"),
		CursorToken: token,
		Cursor:      Selection{Start: start, End: end},
	}
}

// flattenTemplates joins every line that leaves a template literal open with
// the lines that follow, up to and including the line that closes it. The
// byte position (row, col) is translated into the flattened coordinates.
func flattenTemplates(lines []string, row, col int) ([]string, int, int) {
	out := make([]string, 0, len(lines))

	var (
		current strings.Builder
		open    bool
		outRow  = row
		outCol  = col
	)

	for i, line := range lines {
		if !open {
			current.Reset()
		}

		if i == row {
			outRow = len(out)
			outCol = current.Len() + col
		}

		current.WriteString(line)

		if strings.Count(line, "`")%2 == 1 {
			open = !open
		}

		if !open {
			out = append(out, current.String())
		}
	}

	if open {
		out = append(out, current.String())
	}

	return out, outRow, outCol
}
