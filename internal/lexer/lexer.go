// Package lexer turns rigz source text into tokens. Newlines are
// significant: they terminate statements, so the lexer emits them as
// tokens instead of swallowing them with the rest of the whitespace.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/funvibe/rigz/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int
	column       int
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	line, column := l.line, l.column

	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Line: line, Column: column}
	case '\n':
		l.readChar()
		return token.Token{Type: token.NEWLINE, Literal: "\n", Line: line, Column: column}
	case '#':
		l.skipComment()
		return l.NextToken()
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.EQ, Literal: "==", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.ASSIGN, Literal: "=", Line: line, Column: column}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.NEQ, Literal: "!=", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.NOT, Literal: "!", Line: line, Column: column}
	case '+':
		l.readChar()
		return token.Token{Type: token.PLUS, Literal: "+", Line: line, Column: column}
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.ARROW, Literal: "->", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.MINUS, Literal: "-", Line: line, Column: column}
	case '*':
		l.readChar()
		return token.Token{Type: token.STAR, Literal: "*", Line: line, Column: column}
	case '/':
		l.readChar()
		return token.Token{Type: token.SLASH, Literal: "/", Line: line, Column: column}
	case '%':
		l.readChar()
		return token.Token{Type: token.PERCENT, Literal: "%", Line: line, Column: column}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.AND, Literal: "&&", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.BITAND, Literal: "&", Line: line, Column: column}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.OR, Literal: "||", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.BITOR, Literal: "|", Line: line, Column: column}
	case '^':
		if l.peekChar() == '^' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.XOR, Literal: "^^", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.BITXOR, Literal: "^", Line: line, Column: column}
	case '<':
		if l.peekChar() == '<' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.SHL, Literal: "<<", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "<", Line: line, Column: column}
	case '>':
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.SHR, Literal: ">>", Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: ">", Line: line, Column: column}
	case ',':
		l.readChar()
		return token.Token{Type: token.COMMA, Literal: ",", Line: line, Column: column}
	case ';':
		l.readChar()
		return token.Token{Type: token.SEMI, Literal: ";", Line: line, Column: column}
	case '.':
		l.readChar()
		return token.Token{Type: token.PERIOD, Literal: ".", Line: line, Column: column}
	case ':':
		if isIdentStart(l.peekChar()) {
			l.readChar()
			name := l.readIdentifier()
			return token.Token{Type: token.SYMBOL, Literal: name, Line: line, Column: column}
		}
		l.readChar()
		return token.Token{Type: token.COLON, Literal: ":", Line: line, Column: column}
	case '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "(", Line: line, Column: column}
	case ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")", Line: line, Column: column}
	case '[':
		l.readChar()
		return token.Token{Type: token.LBRACKET, Literal: "[", Line: line, Column: column}
	case ']':
		l.readChar()
		return token.Token{Type: token.RBRACKET, Literal: "]", Line: line, Column: column}
	case '{':
		l.readChar()
		return token.Token{Type: token.LCURLY, Literal: "{", Line: line, Column: column}
	case '}':
		l.readChar()
		return token.Token{Type: token.RCURLY, Literal: "}", Line: line, Column: column}
	case '@':
		l.readChar()
		return token.Token{Type: token.AT, Literal: "@", Line: line, Column: column}
	case '\'', '"':
		lit, ok := l.readString(l.ch)
		if !ok {
			return token.Token{Type: token.ILLEGAL, Literal: lit, Line: line, Column: column}
		}
		return token.Token{Type: token.STRING, Literal: lit, Line: line, Column: column}
	}

	if isIdentStart(l.ch) {
		lit := l.readIdentifier()
		return token.Token{Type: token.LookupIdent(lit), Literal: lit, Line: line, Column: column}
	}
	if unicode.IsDigit(l.ch) {
		lit, typ := l.readNumber()
		return token.Token{Type: typ, Literal: lit, Line: line, Column: column}
	}

	ch := l.ch
	l.readChar()
	return token.Token{Type: token.ILLEGAL, Literal: string(ch), Line: line, Column: column}
}

// Tokens collects every token up to EOF, mostly for tests and debugging.
func (l *Lexer) Tokens() []token.Token {
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == token.EOF {
			return out
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentStart(l.ch) || unicode.IsDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber consumes digits plus the numeric suffixes and prefixes the
// language supports: 0x/0b bases, a decimal point, and u/f/i suffixes.
func (l *Lexer) readNumber() (string, token.Type) {
	start := l.position
	typ := token.INT
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'b') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
	} else {
		for unicode.IsDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch == '.' && unicode.IsDigit(l.peekChar()) {
			typ = token.FLOAT
			l.readChar()
			for unicode.IsDigit(l.ch) {
				l.readChar()
			}
		}
	}
	switch l.ch {
	case 'u':
		typ = token.UINT
		l.readChar()
	case 'f':
		typ = token.FLOAT
		l.readChar()
	case 'i':
		l.readChar()
	}
	return strings.ReplaceAll(l.input[start:l.position], "_", ""), typ
}

func (l *Lexer) readString(quote rune) (string, bool) {
	var sb strings.Builder
	l.readChar()
	for l.ch != quote {
		if l.ch == 0 || l.ch == '\n' {
			return sb.String(), false
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar()
	return sb.String(), true
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isHexDigit(ch rune) bool {
	return unicode.IsDigit(ch) ||
		(ch >= 'a' && ch <= 'f') ||
		(ch >= 'A' && ch <= 'F')
}
