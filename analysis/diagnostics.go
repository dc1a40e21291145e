package analysis

import (
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// DiagnosticSeverity mirrors the LSP severity levels.
type DiagnosticSeverity int

// Severity levels.
const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s DiagnosticSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic sources and codes.
const (
	DiagnosticSource               = "mongodb"
	CodeInvalidInteractiveSyntaxes = "invalidInteractiveSyntaxes"
)

// Diagnostic is a problem found in playground text. Fix, when set, is a
// literal replacement for Range.
type Diagnostic struct {
	Range    Selection
	Severity DiagnosticSeverity
	Source   string
	Code     string
	Message  string
	Fix      string
}

// Scan reports legacy interactive-shell syntax in text, one diagnostic per
// offending line at most. Lines are checked against LegacySyntaxRules in order.
func Scan(text string) []Diagnostic {
	tokens := tokenizeLines(text)
	if len(tokens) == 0 {
		return nil
	}

	idx := newLineIndex(text)
	rules := LegacySyntaxRules()

	rows := make([]int, 0, len(tokens))
	for row := range tokens {
		rows = append(rows, row)
	}

	sort.Ints(rows)

	var diagnostics []Diagnostic

	for _, row := range rows {
		rule, m, ok := matchLine(rules, text, tokens[row])
		if !ok {
			continue
		}

		diagnostics = append(diagnostics, Diagnostic{
			Range: Selection{
				Start: idx.position(m.start),
				End:   idx.position(m.end),
			},
			Severity: rule.Severity,
			Source:   DiagnosticSource,
			Code:     CodeInvalidInteractiveSyntaxes,
			Message:  "Did you mean `" + m.fix + "`?",
			Fix:      m.fix,
		})
	}

	return diagnostics
}

// matchLine returns the first rule match among the statements of a line.
func matchLine(rules []*Rule, text string, tokens []lexer.Token) (*Rule, legacyMatch, bool) {
	for _, stmt := range statements(tokens) {
		line := legacyLine{src: text, tokens: stmt}

		for _, rule := range rules {
			if m, ok := rule.Match(line); ok {
				return rule, m, true
			}
		}
	}

	return nil, legacyMatch{}, false
}

// lineIndex maps byte offsets to editor positions.
type lineIndex struct {
	lines  []string
	starts []int
}

func newLineIndex(text string) lineIndex {
	lines := strings.Split(text, "\n")
	starts := make([]int, len(lines))

	offset := 0
	for i, line := range lines {
		starts[i] = offset
		offset += len(line) + 1
	}

	return lineIndex{lines: lines, starts: starts}
}

func (idx lineIndex) position(offset int) Position {
	row := sort.Search(len(idx.starts), func(i int) bool { return idx.starts[i] > offset }) - 1
	row = max(row, 0)

	return Position{
		Line:      row,
		Character: utf16Column(idx.lines[row], offset-idx.starts[row]),
	}
}
