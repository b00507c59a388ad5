package spectrum

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

var (
	// ErrAxisMismatch is returned when the spectra do not share a frequency axis
	ErrAxisMismatch = fmt.Errorf("%w: spectra have different frequency axes", sdr.ErrPrecondition)

	// ErrDegenerate is returned when normalization would divide by zero or propagate NaN or Inf
	ErrDegenerate = fmt.Errorf("%w: degenerate spectrum", sdr.ErrNumerical)
)

// Normalize divides the observation by the baseline bin by bin and rescales the
// ratio so that its minimum maps to 0 and its maximum to 1. The result keeps the
// observation's axis and capture parameters.
func Normalize(observation, baseline *Spectrum) (*Spectrum, error) {
	if observation == nil || baseline == nil {
		return nil, fmt.Errorf("%w: missing spectrum", ErrAxisMismatch)
	}
	if !observation.SameAxis(baseline) {
		return nil, fmt.Errorf("%w: %d and %d bins", ErrAxisMismatch, observation.Len(), baseline.Len())
	}
	if observation.Len() == 0 {
		return nil, fmt.Errorf("%w: empty spectrum", ErrAxisMismatch)
	}

	for k, p := range baseline.Power {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: baseline power at bin %d is %g", ErrDegenerate, k, p)
		}
	}
	for k, p := range observation.Power {
		if !(p >= 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: observation power at bin %d is %g", ErrDegenerate, k, p)
		}
	}

	ratio := make([]float64, observation.Len())
	floats.DivTo(ratio, observation.Power, baseline.Power)

	lo, hi := floats.Min(ratio), floats.Max(ratio)
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return nil, fmt.Errorf("%w: ratio range is %g", ErrDegenerate, span)
	}

	floats.AddConst(-lo, ratio)
	for k := range ratio {
		ratio[k] /= span
	}

	return &Spectrum{
		Frequencies:     slices.Clone(observation.Frequencies),
		Power:           ratio,
		CenterFrequency: observation.CenterFrequency,
		SampleRate:      observation.SampleRate,
		Gain:            observation.Gain,
	}, nil
}
