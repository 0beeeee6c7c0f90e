package solar

import "errors"

// Domain errors for the solar package.
var (
	// ErrInvalidLocation is returned when latitude, longitude or the UTC
	// offset is out of range.
	ErrInvalidLocation = errors.New("solar: invalid location")

	// ErrInvalidElevation is returned for an unknown twilight kind or a
	// sun elevation outside (-90, 90).
	ErrInvalidElevation = errors.New("solar: invalid twilight elevation")

	// ErrNoCalculator is returned when Recompute is called without a Calculator.
	ErrNoCalculator = errors.New("solar: calculator is required")
)
