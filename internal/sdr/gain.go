package sdr

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GainAutoText is the literal that selects automatic gain
const GainAutoText = "auto"

// GainAuto is the automatic gain sentinel
var GainAuto = Gain{auto: true}

// Gain is either the automatic gain sentinel or a finite positive numeric gain.
// The zero value is not a valid gain; use GainAuto, GainValue or ParseGain.
type Gain struct {
	auto  bool
	value float64
}

// GainValue returns a numeric gain. Use Validate to check the value is finite and positive.
func GainValue(v float64) Gain {
	return Gain{value: v}
}

// ParseGain parses a gain setting such as "3.14" or "auto".
func ParseGain(text string) (Gain, error) {
	if text == GainAutoText {
		return GainAuto, nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return Gain{}, &GainFormatError{Text: text, Err: err}
	}

	g := GainValue(v)
	if err = g.Validate(); err != nil {
		return Gain{}, &GainFormatError{Text: text, Err: err}
	}

	return g, nil
}

// IsAuto reports whether the gain is the automatic sentinel
func (g Gain) IsAuto() bool {
	return g.auto
}

// Value returns the numeric gain and false for the automatic sentinel
func (g Gain) Value() (float64, bool) {
	if g.auto {
		return 0, false
	}
	return g.value, true
}

// Validate checks the gain invariant
func (g Gain) Validate() error {
	if g.auto {
		return nil
	}
	if math.IsNaN(g.value) || math.IsInf(g.value, 0) {
		return fmt.Errorf("%w: gain must be finite", ErrInvalidArgument)
	}
	if g.value <= 0 {
		return fmt.Errorf("%w: gain must be positive: %g given", ErrInvalidArgument, g.value)
	}
	return nil
}

func (g Gain) String() string {
	if g.auto {
		return GainAutoText
	}
	return strconv.FormatFloat(g.value, 'f', -1, 64)
}

func (g *Gain) UnmarshalText(text []byte) error {
	parsed, err := ParseGain(string(text))
	if err != nil {
		return err
	}

	*g = parsed
	return nil
}

func (g Gain) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Gain) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseGain(value.Value)
	if err != nil {
		return fmt.Errorf("sdr.Gain: failed to parse: %w", err)
	}

	*g = parsed
	return nil
}

func (g Gain) MarshalYAML() (interface{}, error) {
	return g.String(), nil
}
