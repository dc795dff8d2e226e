// File path: internal/funnel/errors.go
package funnel

import "errors"

var (
	// ErrValidation covers malformed or out-of-bounds input: flow text that
	// parses to too few or too many steps, or a persona count outside the
	// allowed range. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrGeneration is returned when persona generation stays malformed or
	// incomplete after the retry and replacement budgets. The run does not
	// proceed.
	ErrGeneration = errors.New("persona generation failed")

	// ErrConfiguration marks missing or invalid process configuration, such
	// as an absent provider credential. Fatal at startup, before any
	// simulation begins.
	ErrConfiguration = errors.New("configuration invalid")
)
