package tmatch

import (
	"fmt"
	"strings"
)

// Method selects the statistic used to compare a template with each image
// window.
type Method uint8

const (
	// SumOfSquaredDifference computes Σ(I−T)². Lower is better, 0 is exact.
	SumOfSquaredDifference Method = iota

	// SumOfSquaredDifferenceNormed divides the squared difference by
	// sqrt(ΣI²·ΣT²). Lower is better.
	SumOfSquaredDifferenceNormed

	// CrossCorrelation computes Σ(I·T). Higher is better.
	CrossCorrelation

	// CrossCorrelationNormed divides the cross correlation by
	// sqrt(ΣI²·ΣT²), giving values in roughly [-1, 1].
	CrossCorrelationNormed

	// CorrelationCoefficient is cross correlation of the mean-subtracted
	// image and template. Higher is better.
	CorrelationCoefficient

	// CorrelationCoefficientNormed is the normed cross correlation of the
	// mean-subtracted inputs.
	CorrelationCoefficientNormed

	// MethodCount is the number of matching methods.
	MethodCount = 6
)

var methodNames = [MethodCount]string{
	SumOfSquaredDifference:       "sqdiff",
	SumOfSquaredDifferenceNormed: "sqdiff_normed",
	CrossCorrelation:             "ccorr",
	CrossCorrelationNormed:       "ccorr_normed",
	CorrelationCoefficient:       "ccoeff",
	CorrelationCoefficientNormed: "ccoeff_normed",
}

var methodLongNames = [MethodCount]string{
	SumOfSquaredDifference:       "sumofsquareddifference",
	SumOfSquaredDifferenceNormed: "sumofsquareddifferencenormed",
	CrossCorrelation:             "crosscorrelation",
	CrossCorrelationNormed:       "crosscorrelationnormed",
	CorrelationCoefficient:       "correlationcoefficient",
	CorrelationCoefficientNormed: "correlationcoefficientnormed",
}

// Methods returns all matching methods in declaration order.
func Methods() []Method {
	out := make([]Method, MethodCount)
	for i := range out {
		out[i] = Method(i)
	}
	return out
}

// Valid reports whether m is one of the six defined methods.
func (m Method) Valid() bool {
	return m < MethodCount
}

func (m Method) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
	return methodNames[m]
}

// ParseMethod parses a method name. Both the short names returned by String
// ("ccoeff_normed") and the long names ("CorrelationCoefficientNormed") are
// accepted, case-insensitively.
func ParseMethod(s string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i := range MethodCount {
		if key == methodNames[i] || key == methodLongNames[i] {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// LowerIsBetter reports whether smaller surface values mean a closer match.
func (m Method) LowerIsBetter() bool {
	return m == SumOfSquaredDifference || m == SumOfSquaredDifferenceNormed
}

// Normed reports whether the method divides by the energy of both inputs.
func (m Method) Normed() bool {
	switch m {
	case SumOfSquaredDifferenceNormed, CrossCorrelationNormed, CorrelationCoefficientNormed:
		return true
	}
	return false
}

// NeedsMeanSubtraction reports whether the method runs the local-mean
// subtraction pre-pass.
func (m Method) NeedsMeanSubtraction() bool {
	return m == CorrelationCoefficient || m == CorrelationCoefficientNormed
}

// IsBetter reports whether a is strictly a closer match than b.
func (m Method) IsBetter(a, b float32) bool {
	if m.LowerIsBetter() {
		return a < b
	}
	return a > b
}

// Passes reports whether value is strictly a closer match than threshold.
func (m Method) Passes(value, threshold float32) bool {
	return m.IsBetter(value, threshold)
}
