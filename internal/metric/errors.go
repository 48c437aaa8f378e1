package metric

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by every domain-boundary error returned from
// this package.
var ErrInvalidInput = errors.New("metric: invalid input")

// InputError reports which argument of which function fell outside its domain.
type InputError struct {
	Func   string
	Arg    string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("metric: %s: %s=%g: %s", e.Func, e.Arg, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(fn, arg string, v float64, reason string) error {
	return &InputError{Func: fn, Arg: arg, Value: v, Reason: reason}
}

// checkProbability rejects NaN and values outside [0,1].
func checkProbability(fn, arg string, p float64) error {
	if p != p || p < 0 || p > 1 {
		return invalid(fn, arg, p, "probability outside [0,1]")
	}
	return nil
}

// checkBase rejects compression bases that are not strictly greater than 1.
func checkBase(fn string, base float64) error {
	if base != base || base <= 1 {
		return invalid(fn, "base", base, "compression base must be > 1")
	}
	return nil
}
