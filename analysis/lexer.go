package analysis

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token type constants - negative values as per participle convention.
const (
	tEOF        lexer.TokenType = lexer.EOF
	tComment    lexer.TokenType = -(iota + 2) //nolint:mnd // participle convention
	tString                                   // '...', "..." and `...`
	tNumber                                   // digits
	tIdent                                    // identifiers including $-prefixed
	tDot                                      // .
	tLParen                                   // (
	tLBracket                                 // [
	tSemi                                     // ;
	tPunct                                    // any other character
	tWhitespace                               // spaces, tabs, newlines
)

// shellDefinition implements lexer.Definition for playground source. It is
// deliberately tolerant: any input lexes, so legacy shell lines that are not
// valid script still produce tokens.
type shellDefinition struct {
	symbols map[string]lexer.TokenType
}

var shellLexer = &shellDefinition{
	symbols: map[string]lexer.TokenType{
		"EOF":        tEOF,
		"Comment":    tComment,
		"String":     tString,
		"Number":     tNumber,
		"Ident":      tIdent,
		"Dot":        tDot,
		"(":          tLParen,
		"[":          tLBracket,
		";":          tSemi,
		"Punct":      tPunct,
		"Whitespace": tWhitespace,
	},
}

// Symbols returns the mapping of symbol names to token types.
func (d *shellDefinition) Symbols() map[string]lexer.TokenType {
	return d.symbols
}

// Lex creates a new Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d *shellDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return d.LexString(filename, string(data))
}

// LexString implements lexer.StringDefinition for efficiency.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (d *shellDefinition) LexString(filename string, input string) (lexer.Lexer, error) {
	return &shellLexerState{filename: filename, input: input, line: 1, col: 1}, nil
}

type shellLexerState struct {
	filename string
	input    string
	offset   int
	line     int
	col      int
}

// Next returns the next token. It never fails.
func (l *shellLexerState) Next() (lexer.Token, error) {
	if l.eof() {
		return lexer.EOFToken(l.pos()), nil
	}

	start := l.pos()
	r := l.peek()

	switch {
	case unicode.IsSpace(r):
		for !l.eof() && unicode.IsSpace(l.peek()) {
			l.advance()
		}

		return l.token(tWhitespace, start), nil

	case r == '/' && l.peekAt(1) == '/':
		for !l.eof() && l.peek() != '\n' {
			l.advance()
		}

		return l.token(tComment, start), nil

	case r == '/' && l.peekAt(1) == '*':
		l.advance()
		l.advance()

		for !l.eof() && !strings.HasPrefix(l.input[l.offset:], "*/") {
			l.advance()
		}

		if !l.eof() {
			l.advance()
			l.advance()
		}

		return l.token(tComment, start), nil

	case r == '"' || r == '\'' || r == '`':
		l.scanString(r)

		return l.token(tString, start), nil

	case unicode.IsDigit(r):
		for !l.eof() && (unicode.IsDigit(l.peek()) || l.peek() == '.' || l.peek() == '_') {
			l.advance()
		}

		return l.token(tNumber, start), nil

	case isIdentStart(r):
		for !l.eof() && isIdentContinue(l.peek()) {
			l.advance()
		}

		return l.token(tIdent, start), nil
	}

	l.advance()

	switch r {
	case '.':
		return l.token(tDot, start), nil
	case '(':
		return l.token(tLParen, start), nil
	case '[':
		return l.token(tLBracket, start), nil
	case ';':
		return l.token(tSemi, start), nil
	}

	return l.token(tPunct, start), nil
}

// scanString consumes a quoted string. Quoted strings stop at end of line
// when unterminated; template strings may span lines.
func (l *shellLexerState) scanString(quote rune) {
	l.advance()

	for !l.eof() {
		ch := l.peek()

		if ch == '\\' && l.peekAt(1) != 0 {
			l.advance()
			l.advance()

			continue
		}

		if ch == '\n' && quote != '`' {
			return
		}

		l.advance()

		if ch == quote {
			return
		}
	}
}

func (l *shellLexerState) pos() lexer.Position {
	return lexer.Position{
		Filename: l.filename,
		Offset:   l.offset,
		Line:     l.line,
		Column:   l.col,
	}
}

func (l *shellLexerState) eof() bool {
	return l.offset >= len(l.input)
}

func (l *shellLexerState) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])

	return r
}

func (l *shellLexerState) peekAt(n int) rune {
	off := l.offset + n
	if off >= len(l.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[off:])

	return r
}

func (l *shellLexerState) advance() {
	if l.eof() {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *shellLexerState) token(typ lexer.TokenType, start lexer.Position) lexer.Token {
	return lexer.Token{
		Type:  typ,
		Value: l.input[start.Offset:l.offset],
		Pos:   start,
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// tokenizeLines lexes src and groups the significant tokens (no whitespace
// or comments) by the zero-based line they start on.
func tokenizeLines(src string) map[int][]lexer.Token {
	lex, _ := shellLexer.LexString("", src)

	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil
	}

	lines := make(map[int][]lexer.Token)

	for _, tok := range tokens {
		switch tok.Type {
		case tEOF, tWhitespace, tComment:
			continue
		}

		lines[tok.Pos.Line-1] = append(lines[tok.Pos.Line-1], tok)
	}

	return lines
}
