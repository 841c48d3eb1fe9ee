// Package parser reads Braid source into the expression trees the
// evaluator walks: cons lists, vectors and atoms. Code is data; there is
// no separate AST layer.
package parser

import (
	"fmt"

	"braid/internal/lexer"
	"braid/internal/number"
	"braid/internal/object"
	"braid/internal/token"
)

type Parser struct {
	l   *lexer.Lexer
	cur token.Token
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	return p
}

func (p *Parser) next() { p.cur = p.l.NextToken() }

// Parse reads all top-level forms.
func (p *Parser) Parse() ([]object.Object, error) {
	var forms []object.Object
	for p.cur.Type != token.EOF {
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// ParseString is the convenience entry used by the REPL, `load` and
// `read-string`.
func ParseString(src string) ([]object.Object, error) {
	return New(lexer.New(src)).Parse()
}

func (p *Parser) parseForm() (object.Object, error) {
	switch p.cur.Type {
	case token.NUMBER:
		v, err := number.Parse(p.cur.Literal)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", p.cur.Line, err)
		}
		p.next()
		return &object.Number{Value: v}, nil

	case token.STRING:
		s := &object.String{Value: p.cur.Literal}
		p.next()
		return s, nil

	case token.IDENT:
		lit := p.cur.Literal
		p.next()
		switch lit {
		case "true":
			return object.TRUE, nil
		case "false":
			return object.FALSE, nil
		case "nil":
			return object.NIL, nil
		}
		return object.Intern(lit), nil

	case token.QUOTE:
		p.next()
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		if pair, ok := form.(*object.Pair); ok {
			quoted := *pair
			quoted.IsQuoted = true
			return &quoted, nil
		}
		return &object.Pair{
			Head: object.Intern("quote"),
			Tail: &object.Pair{Head: form},
		}, nil

	case token.BACKSLASH:
		line := p.cur.Line
		p.next()
		if p.cur.Type != token.LPAREN {
			return nil, fmt.Errorf("line %d: expected ( after \\", line)
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		pair, ok := form.(*object.Pair)
		if !ok {
			return nil, fmt.Errorf("line %d: empty lambda literal", line)
		}
		lambda := *pair
		lambda.IsLambda = true
		return &lambda, nil

	case token.LPAREN:
		return p.parseList()

	case token.LBRACKET:
		return p.parseVector()

	case token.LBRACE:
		return p.parseMapLiteral()

	case token.ILLEGAL:
		return nil, fmt.Errorf("line %d: illegal token %q", p.cur.Line, p.cur.Literal)

	default:
		return nil, fmt.Errorf("line %d: unexpected token %q", p.cur.Line, p.cur.Literal)
	}
}

func (p *Parser) parseList() (object.Object, error) {
	line := p.cur.Line
	p.next() // (
	var items []object.Object
	for p.cur.Type != token.RPAREN {
		if p.cur.Type == token.EOF {
			return nil, fmt.Errorf("line %d: unterminated list", line)
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		items = append(items, form)
	}
	p.next() // )
	if len(items) == 0 {
		return object.NIL, nil
	}
	list := object.ListFromSlice(items)
	list.Line = line
	return list, nil
}

func (p *Parser) parseVector() (object.Object, error) {
	line := p.cur.Line
	p.next() // [
	vec := &object.Vector{}
	for p.cur.Type != token.RBRACKET {
		if p.cur.Type == token.EOF {
			return nil, fmt.Errorf("line %d: unterminated vector", line)
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		vec.Elements = append(vec.Elements, form)
	}
	p.next() // ]
	return vec, nil
}

// Map literals desugar to a (hash-map k v ...) call so that keys and
// values stay ordinary expressions until evaluation.
func (p *Parser) parseMapLiteral() (object.Object, error) {
	line := p.cur.Line
	p.next() // {
	items := []object.Object{object.Intern("hash-map")}
	for p.cur.Type != token.RBRACE {
		if p.cur.Type == token.EOF {
			return nil, fmt.Errorf("line %d: unterminated map literal", line)
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		items = append(items, form)
	}
	p.next() // }
	if len(items)%2 != 1 {
		return nil, fmt.Errorf("line %d: map literal needs an even number of forms", line)
	}
	list := object.ListFromSlice(items)
	list.Line = line
	return list, nil
}
