package number

import (
	"math"
	"math/big"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		kind     Kind
	}{
		{"0", "0", KindInt},
		{"42", "42", KindInt},
		{"-7", "-7", KindInt},
		{"3.5", "3.5", KindFloat},
		{"1e3", "1000", KindFloat},
		{"9223372036854775807", "9223372036854775807", KindInt},
		{"9223372036854775808", "9223372036854775808", KindBig},
	}
	for _, tt := range tests {
		v, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tt.input, err)
		}
		if v.Kind() != tt.kind {
			t.Errorf("Parse(%q) kind=%v, want %v", tt.input, v.Kind(), tt.kind)
		}
		if v.String() != tt.expected {
			t.Errorf("Parse(%q)=%s, want %s", tt.input, v.String(), tt.expected)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestAddPromotesOnOverflow(t *testing.T) {
	a := FromInt64(math.MaxInt64)
	sum := Add(a, FromInt64(1))
	if sum.Kind() != KindBig {
		t.Fatalf("expected big promotion, got kind %v", sum.Kind())
	}
	want := new(big.Int).Add(big.NewInt(math.MaxInt64), big.NewInt(1))
	if sum.String() != want.String() {
		t.Errorf("sum=%s, want %s", sum.String(), want.String())
	}

	neg := Add(FromInt64(math.MinInt64), FromInt64(-1))
	if neg.Kind() != KindBig {
		t.Errorf("expected big promotion on negative overflow, got %v", neg.Kind())
	}
}

func TestMulPromotesOnOverflow(t *testing.T) {
	p := Mul(FromInt64(math.MaxInt64), FromInt64(2))
	if p.Kind() != KindBig {
		t.Fatalf("expected big promotion, got kind %v", p.Kind())
	}
	if Compare(p, FromInt64(math.MaxInt64)) <= 0 {
		t.Errorf("product should exceed MaxInt64")
	}
}

func TestBigDemotesWhenSmall(t *testing.T) {
	big1 := Add(FromInt64(math.MaxInt64), FromInt64(1))
	back := Sub(big1, FromInt64(1))
	if back.Kind() != KindInt {
		t.Errorf("expected demotion back to int, got %v", back.Kind())
	}
	if back.Int64() != math.MaxInt64 {
		t.Errorf("got %d, want MaxInt64", back.Int64())
	}
}

func TestFloatContagion(t *testing.T) {
	v := Add(FromInt64(1), FromFloat(0.5))
	if v.Kind() != KindFloat {
		t.Fatalf("expected float, got %v", v.Kind())
	}
	if v.Float64() != 1.5 {
		t.Errorf("got %v, want 1.5", v.Float64())
	}
}

func TestDiv(t *testing.T) {
	v, err := Div(FromInt64(10), FromInt64(2))
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindInt || v.Int64() != 5 {
		t.Errorf("10/2 = %s (%v), want int 5", v.String(), v.Kind())
	}

	v, err = Div(FromInt64(7), FromInt64(2))
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindFloat || v.Float64() != 3.5 {
		t.Errorf("7/2 = %s (%v), want float 3.5", v.String(), v.Kind())
	}

	if _, err := Div(FromInt64(1), FromInt64(0)); err == nil {
		t.Errorf("division by zero should fail")
	}
}

func TestCompareMixed(t *testing.T) {
	big1 := Add(FromInt64(math.MaxInt64), FromInt64(1))
	if Compare(FromInt64(1), big1) != -1 {
		t.Errorf("1 should compare below MaxInt64+1")
	}
	if !Equal(FromInt64(2), FromFloat(2.0)) {
		t.Errorf("2 should equal 2.0")
	}
	if Compare(FromFloat(2.5), FromInt64(2)) != 1 {
		t.Errorf("2.5 should compare above 2")
	}
}

func TestNegMinInt64(t *testing.T) {
	v := Neg(FromInt64(math.MinInt64))
	if v.Kind() != KindBig {
		t.Fatalf("negating MinInt64 should promote, got %v", v.Kind())
	}
}
