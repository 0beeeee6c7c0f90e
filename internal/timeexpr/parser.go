package timeexpr

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Anchor is the solar event an expression is relative to.
type Anchor int

// Anchors. AnchorNone means the expression carries only an offset.
const (
	AnchorNone Anchor = iota
	AnchorSunrise
	AnchorNoon
	AnchorSunset
)

func (a Anchor) String() string {
	switch a {
	case AnchorSunrise:
		return "sunrise"
	case AnchorNoon:
		return "noon"
	case AnchorSunset:
		return "sunset"
	default:
		return ""
	}
}

// Unit scales the magnitude of an expression.
type Unit int

// Units. UnitNone gives a zero offset regardless of magnitude.
const (
	UnitNone Unit = iota
	UnitHour
	UnitMinute
)

// Seconds returns the number of seconds in one unit.
func (u Unit) Seconds() int64 {
	switch u {
	case UnitHour:
		return 3600
	case UnitMinute:
		return 60
	default:
		return 0
	}
}

func (u Unit) String() string {
	switch u {
	case UnitHour:
		return "h"
	case UnitMinute:
		return "m"
	default:
		return ""
	}
}

// maxMagnitude keeps magnitude*3600 seconds within an int64.
const maxMagnitude = math.MaxInt64 / 3600

// Expression is a parsed relative time.
type Expression struct {
	Source    string
	Anchor    Anchor
	Magnitude int64
	Unit      Unit
}

// Parse reads s into an Expression.
//
// On input it cannot read, Parse stops and returns the Expression built so
// far together with a *SyntaxError wrapping ErrUnknownToken (or
// ErrMagnitudeOverflow). Callers may treat that as a warning and use the
// partial result.
func Parse(s string) (Expression, error) {
	expr := Expression{Source: s, Magnitude: 1}

	l := NewLexer(s)
	for {
		tok, ok := l.Next()
		if !ok {
			return expr, nil
		}

		switch tok.Kind {
		case TokenPlus:
		case TokenMinus:
			expr.Magnitude = -expr.Magnitude
		case TokenNumber:
			next, ok := mulChecked(expr.Magnitude, tok.Value)
			if !ok {
				return expr, &SyntaxError{Source: s, Offset: tok.Offset, Rest: s[tok.Offset:], Err: ErrMagnitudeOverflow}
			}
			expr.Magnitude = next
		case TokenAnchor:
			expr.Anchor = tok.Anchor
		case TokenUnit:
			expr.Unit = tok.Unit
		case TokenInvalid:
			return expr, &SyntaxError{Source: s, Offset: tok.Offset, Rest: tok.Text, Err: ErrUnknownToken}
		}
	}
}

// MustParse is Parse that panics on any error. For tests and constants.
func MustParse(s string) Expression {
	expr, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return expr
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || p > maxMagnitude || p < -maxMagnitude {
		return 0, false
	}
	return p, true
}

// OffsetSeconds returns the signed offset in whole seconds.
func (e Expression) OffsetSeconds() int64 {
	return e.Magnitude * e.Unit.Seconds()
}

// Offset returns the signed offset as a Duration, saturating at the
// Duration limits.
func (e Expression) Offset() time.Duration {
	secs := e.OffsetSeconds()
	const limit = int64(math.MaxInt64 / int64(time.Second))
	switch {
	case secs > limit:
		return time.Duration(math.MaxInt64)
	case secs < -limit:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(secs) * time.Second
}

// String renders the expression in canonical form, e.g. "sunset-30m".
func (e Expression) String() string {
	var b strings.Builder
	b.WriteString(e.Anchor.String())
	if e.Unit == UnitNone {
		if b.Len() == 0 {
			return "+0m"
		}
		return b.String()
	}
	if e.Magnitude < 0 {
		b.WriteByte('-')
		b.WriteString(strconv.FormatInt(-e.Magnitude, 10))
	} else {
		b.WriteByte('+')
		b.WriteString(strconv.FormatInt(e.Magnitude, 10))
	}
	b.WriteString(e.Unit.String())
	return b.String()
}
