package timeexpr

import (
	"errors"
	"fmt"
)

// Domain errors for the timeexpr package.
var (
	// ErrUnknownToken is returned when parsing stops at input that is not
	// a sign, number, anchor keyword or final unit.
	ErrUnknownToken = errors.New("timeexpr: unknown token")

	// ErrMagnitudeOverflow is returned when the composed magnitude no
	// longer fits a duration.
	ErrMagnitudeOverflow = errors.New("timeexpr: magnitude out of range")
)

// SyntaxError reports where parsing stopped. It is a warning: the
// Expression returned alongside it holds everything parsed before Offset.
type SyntaxError struct {
	Source string // the full input
	Offset int    // byte offset where parsing stopped
	Rest   string // unparsed remainder
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v in %q at offset %d (%q)", e.Err, e.Source, e.Offset, e.Rest)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
