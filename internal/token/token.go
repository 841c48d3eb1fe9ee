package token

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Literals
	IDENT  = "IDENT"  // foo, set, a:b:c, @num
	NUMBER = "NUMBER" // 42, 3.5, 1e9
	STRING = "STRING" // "hello"

	LPAREN   = "("
	RPAREN   = ")"
	LBRACKET = "["
	RBRACKET = "]"
	LBRACE   = "{"
	RBRACE   = "}"

	QUOTE     = "'"
	BACKSLASH = "\\" // lambda literal marker: \(x -> ...)
)

type Token struct {
	Type    TokenType
	Literal string
	Line    int
}
