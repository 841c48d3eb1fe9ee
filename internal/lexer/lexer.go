package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"braid/internal/token"
)

// Lexer tokenizes Braid source. It is rune-based; position tracking is by
// line for diagnostics.
type Lexer struct {
	input        string
	position     int  // byte position of current rune
	readPosition int  // byte position of next rune
	ch           rune // current rune; 0 means EOF
	line         int
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
	if r == '\n' {
		l.line++
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	line := l.line
	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Line: line}
	case '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "(", Line: line}
	case ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")", Line: line}
	case '[':
		l.readChar()
		return token.Token{Type: token.LBRACKET, Literal: "[", Line: line}
	case ']':
		l.readChar()
		return token.Token{Type: token.RBRACKET, Literal: "]", Line: line}
	case '{':
		l.readChar()
		return token.Token{Type: token.LBRACE, Literal: "{", Line: line}
	case '}':
		l.readChar()
		return token.Token{Type: token.RBRACE, Literal: "}", Line: line}
	case '\'':
		l.readChar()
		return token.Token{Type: token.QUOTE, Literal: "'", Line: line}
	case '\\':
		l.readChar()
		return token.Token{Type: token.BACKSLASH, Literal: "\\", Line: line}
	case '"':
		lit, ok := l.readString()
		if !ok {
			return token.Token{Type: token.ILLEGAL, Literal: lit, Line: line}
		}
		return token.Token{Type: token.STRING, Literal: lit, Line: line}
	}

	if isDigit(l.ch) || (isSign(l.ch) && isDigit(l.peekChar())) {
		return token.Token{Type: token.NUMBER, Literal: l.readAtom(), Line: line}
	}
	if isAtomRune(l.ch) {
		return token.Token{Type: token.IDENT, Literal: l.readAtom(), Line: line}
	}

	ill := string(l.ch)
	l.readChar()
	return token.Token{Type: token.ILLEGAL, Literal: ill, Line: line}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch != 0 && unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch != ';' {
			return
		}
		for l.ch != 0 && l.ch != '\n' {
			l.readChar()
		}
	}
}

func (l *Lexer) readString() (string, bool) {
	var out strings.Builder
	l.readChar() // opening quote
	for l.ch != '"' {
		if l.ch == 0 {
			return out.String(), false
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			case '"':
				out.WriteRune('"')
			case '\\':
				out.WriteRune('\\')
			default:
				out.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		out.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // closing quote
	return out.String(), true
}

func (l *Lexer) readAtom() string {
	start := l.position
	for isAtomRune(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isSign(ch rune) bool { return ch == '+' || ch == '-' }

// Atom runes cover identifiers, operators and type tags alike; delimiters,
// whitespace, quote and string markers end an atom.
func isAtomRune(ch rune) bool {
	if ch == 0 || unicode.IsSpace(ch) {
		return false
	}
	switch ch {
	case '(', ')', '[', ']', '{', '}', '"', '\'', ';', '\\':
		return false
	}
	return true
}
