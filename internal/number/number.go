// Package number implements the numeric tower used by the evaluator: a
// tagged union over machine integers, arbitrary-precision integers and
// floats, with an explicit promotion ladder. Integer arithmetic that
// overflows int64 promotes to big.Int; any float operand promotes the
// whole operation to float.
package number

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

type Kind int

const (
	KindInt Kind = iota
	KindBig
	KindFloat
)

// Value is an immutable number. The zero value is the integer 0.
type Value struct {
	kind Kind
	i    int64
	big  *big.Int
	f    float64
}

func FromInt64(i int64) Value  { return Value{kind: KindInt, i: i} }
func FromInt(i int) Value      { return Value{kind: KindInt, i: int64(i)} }
func FromFloat(f float64) Value { return Value{kind: KindFloat, f: f} }

func FromBig(b *big.Int) Value {
	if b.IsInt64() {
		return Value{kind: KindInt, i: b.Int64()}
	}
	return Value{kind: KindBig, big: new(big.Int).Set(b)}
}

// Parse accepts integer and floating literals, including exponent forms.
func Parse(s string) (Value, error) {
	if strings.ContainsAny(s, ".eE") && !strings.HasPrefix(s, "0x") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number literal %q", s)
		}
		return FromFloat(f), nil
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return FromInt64(i), nil
	}
	b, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return Value{}, fmt.Errorf("invalid number literal %q", s)
	}
	return Value{kind: KindBig, big: b}, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsInt() bool { return v.kind == KindInt }

// Int64 truncates toward zero for float values.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindBig:
		return v.big.Int64()
	default:
		return int64(v.f)
	}
}

func (v Value) Float64() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindBig:
		f, _ := new(big.Float).SetInt(v.big).Float64()
		return f
	default:
		return v.f
	}
}

func (v Value) asBig() *big.Int {
	if v.kind == KindBig {
		return v.big
	}
	return big.NewInt(v.i)
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBig:
		return v.big.String()
	default:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
}

func (v Value) IsZero() bool {
	switch v.kind {
	case KindInt:
		return v.i == 0
	case KindBig:
		return v.big.Sign() == 0
	default:
		return v.f == 0
	}
}

// Hash64 folds the value to a uint64 so numbers can key ordered maps.
// Integer-valued floats hash like the matching integer.
func (v Value) Hash64() uint64 {
	switch v.kind {
	case KindInt:
		return uint64(v.i)
	case KindBig:
		return v.big.Uint64()
	default:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return uint64(int64(v.f))
		}
		return math.Float64bits(v.f)
	}
}

func Add(a, b Value) Value {
	if a.kind == KindFloat || b.kind == KindFloat {
		return FromFloat(a.Float64() + b.Float64())
	}
	if a.kind == KindInt && b.kind == KindInt {
		sum := a.i + b.i
		if (a.i > 0 && b.i > 0 && sum < 0) || (a.i < 0 && b.i < 0 && sum >= 0) {
			return FromBig(new(big.Int).Add(a.asBig(), b.asBig()))
		}
		return FromInt64(sum)
	}
	return FromBig(new(big.Int).Add(a.asBig(), b.asBig()))
}

func Sub(a, b Value) Value {
	if a.kind == KindFloat || b.kind == KindFloat {
		return FromFloat(a.Float64() - b.Float64())
	}
	if a.kind == KindInt && b.kind == KindInt {
		diff := a.i - b.i
		if (a.i >= 0 && b.i < 0 && diff < 0) || (a.i < 0 && b.i > 0 && diff >= 0) {
			return FromBig(new(big.Int).Sub(a.asBig(), b.asBig()))
		}
		return FromInt64(diff)
	}
	return FromBig(new(big.Int).Sub(a.asBig(), b.asBig()))
}

func Mul(a, b Value) Value {
	if a.kind == KindFloat || b.kind == KindFloat {
		return FromFloat(a.Float64() * b.Float64())
	}
	if a.kind == KindInt && b.kind == KindInt {
		if a.i == 0 || b.i == 0 {
			return FromInt64(0)
		}
		prod := a.i * b.i
		if prod/b.i != a.i || (a.i == math.MinInt64 && b.i == -1) {
			return FromBig(new(big.Int).Mul(a.asBig(), b.asBig()))
		}
		return FromInt64(prod)
	}
	return FromBig(new(big.Int).Mul(a.asBig(), b.asBig()))
}

// Div performs exact division where possible: integer operands that do not
// divide evenly fall through to float division.
func Div(a, b Value) (Value, error) {
	if b.IsZero() {
		return Value{}, fmt.Errorf("division by zero")
	}
	if a.kind == KindFloat || b.kind == KindFloat {
		return FromFloat(a.Float64() / b.Float64()), nil
	}
	q, r := new(big.Int).QuoRem(a.asBig(), b.asBig(), new(big.Int))
	if r.Sign() == 0 {
		return FromBig(q), nil
	}
	return FromFloat(a.Float64() / b.Float64()), nil
}

func Mod(a, b Value) (Value, error) {
	if b.IsZero() {
		return Value{}, fmt.Errorf("modulo by zero")
	}
	if a.kind == KindFloat || b.kind == KindFloat {
		return FromFloat(math.Mod(a.Float64(), b.Float64())), nil
	}
	return FromBig(new(big.Int).Rem(a.asBig(), b.asBig())), nil
}

func Neg(a Value) Value {
	switch a.kind {
	case KindInt:
		if a.i == math.MinInt64 {
			return FromBig(new(big.Int).Neg(a.asBig()))
		}
		return FromInt64(-a.i)
	case KindBig:
		return FromBig(new(big.Int).Neg(a.big))
	default:
		return FromFloat(-a.f)
	}
}

// Compare returns -1, 0 or 1. Mixed-tag comparisons normalize onto the
// wider representation first.
func Compare(a, b Value) int {
	if a.kind == KindFloat || b.kind == KindFloat {
		af, bf := a.Float64(), b.Float64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	}
	return a.asBig().Cmp(b.asBig())
}

func Equal(a, b Value) bool { return Compare(a, b) == 0 }
