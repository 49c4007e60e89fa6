package tmatch

import (
	"fmt"
	"math"
)

// MatcherOptions configures a match call.
//
// Use MethodDefault or NewMatcherOptions to get a validated value. Struct
// literals are accepted too; every matcher validates its options before
// touching the engine.
//
// Example:
//
//	// Defaults for one method
//	opts := tmatch.MethodDefault(tmatch.SumOfSquaredDifferenceNormed)
//
//	// Stricter threshold, full correlation including partial overlaps
//	opts = opts.WithThreshold(0.1).Padded()
type MatcherOptions struct {
	// Method is the correlation statistic.
	Method Method

	// Threshold is the value a match must beat in the method's direction:
	// value < Threshold for the difference methods, value > Threshold otherwise.
	Threshold float32

	// Padding zero-extends the image by the template size minus one so
	// matches may partially overlap the right and bottom edges.
	Padding bool
}

// methodThresholds holds the calibrated default per method.
var methodThresholds = [MethodCount]float32{
	SumOfSquaredDifference:       30.0,
	SumOfSquaredDifferenceNormed: 0.2,
	CrossCorrelation:             30.0,
	CrossCorrelationNormed:       0.8,
	CorrelationCoefficient:       30.0,
	CorrelationCoefficientNormed: 0.8,
}

// MethodDefault returns the calibrated defaults for m without padding.
// An invalid method yields options that fail Validate.
func MethodDefault(m Method) MatcherOptions {
	if !m.Valid() {
		return MatcherOptions{Method: m}
	}
	return MatcherOptions{Method: m, Threshold: methodThresholds[m]}
}

// DefaultMatcherOptions returns MethodDefault(CorrelationCoefficientNormed).
func DefaultMatcherOptions() MatcherOptions {
	return MethodDefault(CorrelationCoefficientNormed)
}

// NewMatcherOptions returns validated options.
func NewMatcherOptions(m Method, threshold float32, padding bool) (MatcherOptions, error) {
	o := MatcherOptions{Method: m, Threshold: threshold, Padding: padding}
	if err := o.Validate(); err != nil {
		return MatcherOptions{}, err
	}
	return o, nil
}

// Validate checks that the threshold can be meaningful for the method.
//
// A threshold is rejected when it is not finite, when no value of a
// lower-is-better method could pass it (threshold <= 0), or when a normed
// higher-is-better method could never pass it (>= 1) or would always pass
// it (< -1).
func (o MatcherOptions) Validate() error {
	if !o.Method.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMethod, uint8(o.Method))
	}
	t := float64(o.Threshold)
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: %s threshold %v is not finite", ErrConfigurationMismatch, o.Method, o.Threshold)
	}
	if o.Method.LowerIsBetter() {
		if o.Threshold <= 0 {
			return fmt.Errorf("%w: %s passes when value < threshold, %v can never pass",
				ErrConfigurationMismatch, o.Method, o.Threshold)
		}
		return nil
	}
	if o.Method.Normed() {
		if o.Threshold >= 1 {
			return fmt.Errorf("%w: %s values do not exceed 1, threshold %v can never pass",
				ErrConfigurationMismatch, o.Method, o.Threshold)
		}
		if o.Threshold < -1 {
			return fmt.Errorf("%w: %s values are at least -1, threshold %v always passes",
				ErrConfigurationMismatch, o.Method, o.Threshold)
		}
	}
	return nil
}

// Passes reports whether value beats the threshold in the method's direction.
func (o MatcherOptions) Passes(value float32) bool {
	return o.Method.Passes(value, o.Threshold)
}

// Padded returns a copy with padding enabled.
func (o MatcherOptions) Padded() MatcherOptions {
	o.Padding = true
	return o
}

// WithThreshold returns a copy with the given threshold.
func (o MatcherOptions) WithThreshold(t float32) MatcherOptions {
	o.Threshold = t
	return o
}

// WithMethod returns a copy using m. The threshold is kept when m shares the
// current method's direction and normalization, and reset to m's default
// otherwise.
func (o MatcherOptions) WithMethod(m Method) MatcherOptions {
	same := o.Method.Valid() && m.Valid() &&
		o.Method.LowerIsBetter() == m.LowerIsBetter() &&
		o.Method.Normed() == m.Normed()
	o.Method = m
	if !same && m.Valid() {
		o.Threshold = methodThresholds[m]
	}
	return o
}
