package parser

import (
	"testing"

	"braid/internal/object"
)

func parseOne(t *testing.T, src string) object.Object {
	t.Helper()
	forms, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	if len(forms) != 1 {
		t.Fatalf("parse %q: got %d forms, want 1", src, len(forms))
	}
	return forms[0]
}

func TestParseAtoms(t *testing.T) {
	if n, ok := parseOne(t, "42").(*object.Number); !ok || n.Value.Int64() != 42 {
		t.Errorf("42 did not parse to number")
	}
	if s, ok := parseOne(t, `"hey"`).(*object.String); !ok || s.Value != "hey" {
		t.Errorf("string literal failed")
	}
	if parseOne(t, "true") != object.TRUE {
		t.Errorf("true literal failed")
	}
	if parseOne(t, "nil") != object.NIL {
		t.Errorf("nil literal failed")
	}
	if sym, ok := parseOne(t, "counter").(*object.Symbol); !ok || sym != object.Intern("counter") {
		t.Errorf("symbol did not intern")
	}
}

func TestParseList(t *testing.T) {
	form := parseOne(t, "(+ 1 2)")
	pair, ok := form.(*object.Pair)
	if !ok {
		t.Fatalf("expected pair, got %T", form)
	}
	items := pair.Slice()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0] != object.Intern("+") {
		t.Errorf("head should be +")
	}
	if pair.Line != 1 {
		t.Errorf("line = %d, want 1", pair.Line)
	}
}

func TestEmptyListIsNil(t *testing.T) {
	if parseOne(t, "()") != object.NIL {
		t.Errorf("() should read as nil")
	}
}

func TestQuoteSetsFlag(t *testing.T) {
	form := parseOne(t, "'(a b)")
	pair, ok := form.(*object.Pair)
	if !ok || !pair.IsQuoted {
		t.Fatalf("quoted list should carry the quoted flag")
	}

	// Quoting an atom desugars to a quote form.
	form = parseOne(t, "'x")
	pair, ok = form.(*object.Pair)
	if !ok || pair.Head != object.Intern("quote") {
		t.Fatalf("quoted atom should desugar to (quote x)")
	}
}

func TestLambdaLiteralFlag(t *testing.T) {
	form := parseOne(t, `\(n -> (+ n 1))`)
	pair, ok := form.(*object.Pair)
	if !ok || !pair.IsLambda {
		t.Fatalf("lambda literal should carry the lambda flag")
	}
	if pair.Head != object.Intern("n") {
		t.Errorf("lambda params should lead the form")
	}
}

func TestVectorLiteral(t *testing.T) {
	form := parseOne(t, "[1 x]")
	vec, ok := form.(*object.Vector)
	if !ok {
		t.Fatalf("expected vector, got %T", form)
	}
	if len(vec.Elements) != 2 {
		t.Errorf("expected 2 elements")
	}
}

func TestMapLiteralDesugars(t *testing.T) {
	form := parseOne(t, `{:a 1 :b 2}`)
	pair, ok := form.(*object.Pair)
	if !ok || pair.Head != object.Intern("hash-map") {
		t.Fatalf("map literal should desugar to hash-map call")
	}
	if pair.Len() != 5 {
		t.Errorf("expected head + 4 forms, got %d", pair.Len())
	}

	if _, err := ParseString(`{:a}`); err == nil {
		t.Errorf("odd map literal should fail")
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"(", "[1", `"unclosed`, "}"} {
		if _, err := ParseString(src); err == nil {
			t.Errorf("parse %q should fail", src)
		}
	}
}

func TestNestedForms(t *testing.T) {
	form := parseOne(t, "(if (< x 3) [1 2] '(a))")
	pair := form.(*object.Pair)
	if pair.Len() != 4 {
		t.Fatalf("expected 4 items, got %d", pair.Len())
	}
	inner := pair.Slice()
	if _, ok := inner[1].(*object.Pair); !ok {
		t.Errorf("condition should be a list")
	}
	if _, ok := inner[2].(*object.Vector); !ok {
		t.Errorf("then-branch should be a vector")
	}
}
