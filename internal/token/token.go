// Package token defines the lexical tokens of the rigz language.
package token

import "fmt"

type Type uint8

const (
	ILLEGAL Type = iota
	EOF
	NEWLINE

	// Literals
	IDENT      // foo
	TYPE_IDENT // String, JSON, MyObject
	INT        // 42, 0xff, 0b101
	UINT       // 42u
	FLOAT      // 4.2
	STRING     // 'abc', "abc"
	SYMBOL     // :sym

	// Keywords
	NONE
	TRUE
	FALSE
	LET
	MUT
	FN
	END
	DO
	IF
	ELSE
	UNLESS
	AS
	TRAIT
	IMPL
	FOR
	OBJECT
	TRY
	CATCH
	RAISE
	EXIT

	// Operators
	ASSIGN // =
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /
	PERCENT
	NOT    // !
	REV    // rev keyword operator
	AND    // &&
	OR     // ||
	XOR    // ^^
	BITAND // &
	BITOR  // |
	BITXOR // ^
	SHL    // <<
	SHR    // >>
	EQ     // ==
	NEQ    // !=

	// Delimiters
	COMMA
	SEMI
	PERIOD
	COLON
	PIPE // | used for catch bindings, lexed contextually
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LCURLY
	RCURLY
	AT // @ lifecycle tags
	ARROW
)

var names = map[Type]string{
	ILLEGAL:    "ILLEGAL",
	EOF:        "EOF",
	NEWLINE:    "NEWLINE",
	IDENT:      "IDENT",
	TYPE_IDENT: "TYPE_IDENT",
	INT:        "INT",
	UINT:       "UINT",
	FLOAT:      "FLOAT",
	STRING:     "STRING",
	SYMBOL:     "SYMBOL",
	NONE:       "none",
	TRUE:       "true",
	FALSE:      "false",
	LET:        "let",
	MUT:        "mut",
	FN:         "fn",
	END:        "end",
	DO:         "do",
	IF:         "if",
	ELSE:       "else",
	UNLESS:     "unless",
	AS:         "as",
	TRAIT:      "trait",
	IMPL:       "impl",
	FOR:        "for",
	OBJECT:     "object",
	TRY:        "try",
	CATCH:      "catch",
	RAISE:      "raise",
	EXIT:       "exit",
	ASSIGN:     "=",
	PLUS:       "+",
	MINUS:      "-",
	STAR:       "*",
	SLASH:      "/",
	PERCENT:    "%",
	NOT:        "!",
	REV:        "rev",
	AND:        "&&",
	OR:         "||",
	XOR:        "^^",
	BITAND:     "&",
	BITOR:      "|",
	BITXOR:     "^",
	SHL:        "<<",
	SHR:        ">>",
	EQ:         "==",
	NEQ:        "!=",
	COMMA:      ",",
	SEMI:       ";",
	PERIOD:     ".",
	COLON:      ":",
	PIPE:       "|",
	LPAREN:     "(",
	RPAREN:     ")",
	LBRACKET:   "[",
	RBRACKET:   "]",
	LCURLY:     "{",
	RCURLY:     "}",
	AT:         "@",
	ARROW:      "->",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Token is a single lexical token with its source position.
type Token struct {
	Type    Type
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Literal, t.Line, t.Column)
}

var keywords = map[string]Type{
	"none":   NONE,
	"true":   TRUE,
	"false":  FALSE,
	"let":    LET,
	"mut":    MUT,
	"fn":     FN,
	"end":    END,
	"do":     DO,
	"if":     IF,
	"else":   ELSE,
	"unless": UNLESS,
	"as":     AS,
	"trait":  TRAIT,
	"impl":   IMPL,
	"for":    FOR,
	"object": OBJECT,
	"try":    TRY,
	"catch":  CATCH,
	"raise":  RAISE,
	"exit":   EXIT,
	"rev":    REV,
}

// LookupIdent returns the keyword type for an identifier, or IDENT/TYPE_IDENT.
func LookupIdent(ident string) Type {
	if t, ok := keywords[ident]; ok {
		return t
	}
	if ident[0] >= 'A' && ident[0] <= 'Z' {
		return TYPE_IDENT
	}
	return IDENT
}
