package analysis

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Rule recognizes one legacy interactive-shell construct at the start of a
// statement and builds its script replacement.
type Rule struct {
	// Name is a short identifier for the rule.
	Name string

	// Doc is a brief description of what the rule recognizes.
	Doc string

	// Severity is the severity of diagnostics from this rule.
	Severity DiagnosticSeverity

	// Match inspects a line and reports the matched span and its fix.
	Match func(line legacyLine) (legacyMatch, bool)
}

// legacyLine is the significant tokens of one statement of a source line.
type legacyLine struct {
	src    string
	tokens []lexer.Token
}

// legacyMatch is a byte span of the source and its replacement.
type legacyMatch struct {
	start int
	end   int
	fix   string
}

// LegacySyntaxRules returns the ordered legacy-syntax table.
func LegacySyntaxRules() []*Rule {
	return []*Rule{
		useRule,
		showDatabasesRule,
		showCollectionsRule,
		showProfileRule,
		showUsersRule,
		showRolesRule,
		showLogRule,
	}
}

// ----------------------------------------------------------------------------
// Rule: use
// ----------------------------------------------------------------------------

// defaultDatabasePlaceholder fills use('...') when no database is given.
const defaultDatabasePlaceholder = "database"

var useRule = &Rule{
	Name:     "use",
	Doc:      "Reports `use <db>` without parentheses.",
	Severity: SeverityError,
	Match: func(line legacyLine) (legacyMatch, bool) {
		if !line.startsWithKeyword("use") {
			return legacyMatch{}, false
		}

		m := legacyMatch{start: line.tokens[0].Pos.Offset, end: tokenEnd(line.tokens[0])}
		name := defaultDatabasePlaceholder

		// use = 5 and use += 1 assign to a variable named use.
		if len(line.tokens) > 1 && !isNameToken(line.tokens[1]) && line.tokens[1].Type != tSemi {
			return legacyMatch{}, false
		}

		if word, end, ok := line.word(1); ok {
			name = unquote(word)
			m.end = end
		}

		m.fix = "use('" + name + "')"

		return m, true
	},
}

// ----------------------------------------------------------------------------
// Rules: show <subject>
// ----------------------------------------------------------------------------

var showDatabasesRule = showRule("show-databases", "db.getMongo().getDBs()", "databases", "dbs")

var showCollectionsRule = showRule("show-collections", "db.getCollectionNames()", "collections", "tables")

var showProfileRule = showRule("show-profile", "db.getCollection('system.profile').find()", "profile")

var showUsersRule = showRule("show-users", "db.getUsers()", "users")

var showRolesRule = showRule("show-roles", "db.getRoles({ showBuiltinRoles: true })", "roles")

// defaultLogType is the log fetched when `show log` names none.
const defaultLogType = "global"

var showLogRule = &Rule{
	Name:     "show-log",
	Doc:      "Reports `show log [type]` and `show logs [type]`.",
	Severity: SeverityError,
	Match: func(line legacyLine) (legacyMatch, bool) {
		subject, ok := line.showSubject("log", "logs")
		if !ok {
			return legacyMatch{}, false
		}

		m := legacyMatch{start: line.tokens[0].Pos.Offset, end: tokenEnd(subject)}
		logType := defaultLogType

		if word, end, ok := line.word(2); ok {
			logType = unquote(word)
			m.end = end
		}

		m.fix = "db.adminCommand({ getLog: '" + logType + "' })"

		return m, true
	},
}

func showRule(name, fix string, subjects ...string) *Rule {
	return &Rule{
		Name:     name,
		Doc:      "Reports `show " + strings.Join(subjects, "|") + "`.",
		Severity: SeverityError,
		Match: func(line legacyLine) (legacyMatch, bool) {
			subject, ok := line.showSubject(subjects...)
			if !ok {
				return legacyMatch{}, false
			}

			return legacyMatch{
				start: line.tokens[0].Pos.Offset,
				end:   tokenEnd(subject),
				fix:   fix,
			}, true
		},
	}
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// startsWithKeyword reports whether the line begins with the bare keyword,
// not followed by member access, a call or an index.
func (l legacyLine) startsWithKeyword(keyword string) bool {
	if len(l.tokens) == 0 {
		return false
	}

	first := l.tokens[0]
	if first.Type != tIdent || first.Value != keyword {
		return false
	}

	if len(l.tokens) > 1 {
		switch l.tokens[1].Type {
		case tDot, tLParen, tLBracket:
			return false
		}
	}

	return true
}

// showSubject returns the subject token of `show <subject>` when it is one
// of subjects.
func (l legacyLine) showSubject(subjects ...string) (lexer.Token, bool) {
	if !l.startsWithKeyword("show") || len(l.tokens) < 2 {
		return lexer.Token{}, false
	}

	subject := l.tokens[1]
	if subject.Type != tIdent {
		return lexer.Token{}, false
	}

	for _, s := range subjects {
		if subject.Value == s {
			return subject, true
		}
	}

	return lexer.Token{}, false
}

// word joins the run of adjacent tokens starting at index i into one word,
// stopping at whitespace or a semicolon. It returns the word and the byte
// offset where it ends.
func (l legacyLine) word(i int) (string, int, bool) {
	if i >= len(l.tokens) || l.tokens[i].Type == tSemi {
		return "", 0, false
	}

	start := l.tokens[i].Pos.Offset
	end := tokenEnd(l.tokens[i])

	for j := i + 1; j < len(l.tokens); j++ {
		next := l.tokens[j]
		if next.Type == tSemi || next.Pos.Offset != end {
			break
		}

		end = tokenEnd(next)
	}

	return l.src[start:end], end, true
}

// isNameToken reports whether tok can begin a database or log name.
func isNameToken(tok lexer.Token) bool {
	switch tok.Type {
	case tIdent, tString, tNumber:
		return true
	default:
		return false
	}
}

// statements splits the tokens of a line at top-level semicolons. A
// semicolon inside parentheses, as in a for header, does not start a
// statement.
func statements(tokens []lexer.Token) [][]lexer.Token {
	var (
		out   [][]lexer.Token
		start int
		depth int
	)

	for i, tok := range tokens {
		switch {
		case tok.Type == tLParen:
			depth++
		case tok.Type == tPunct && tok.Value == ")":
			depth = max(depth-1, 0)
		case tok.Type == tSemi && depth == 0:
			if i+1 < len(tokens) {
				out = append(out, tokens[start:i+1])
				start = i + 1
			}
		}
	}

	return append(out, tokens[start:])
}

func tokenEnd(tok lexer.Token) int {
	return tok.Pos.Offset + len(tok.Value)
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '\'' || first == '"' || first == '`') {
			return s[1 : len(s)-1]
		}
	}

	return s
}
