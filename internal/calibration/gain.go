package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

const (
	DefaultTargetLevel = 0.2  // Target per component RMS level, fraction of ADC full scale
	DefaultTolerance   = 0.05 // Stop when the level is within 5% of the target
	DefaultMinGain     = 1.0  // Lower gain search bound
	DefaultMaxGain     = 50.0 // Upper gain search bound
	DefaultResolution  = 0.5  // Stop when the gain range is narrower than this
	DefaultMaxTrials   = 12
	DefaultNumSamples  = 1 << 16

	// TrialLimit is the hard upper bound on trials of a single search
	TrialLimit = 20

	// ClipLevel is the component magnitude treated as ADC saturation
	ClipLevel = 0.99

	// MaxClipFraction is the largest fraction of clipped components a usable trial may have
	MaxClipFraction = 0.001
)

// ErrNoUsableGain is returned when no trial produced a usable measurement
var ErrNoUsableGain = errors.New("no usable gain found")

// Config controls the gain search
type Config struct {
	TargetLevel float64 `yaml:"targetLevel"`
	Tolerance   float64 `yaml:"tolerance"`
	MinGain     float64 `yaml:"minGain"`
	MaxGain     float64 `yaml:"maxGain"`
	Resolution  float64 `yaml:"resolution"`
	MaxTrials   int     `yaml:"maxTrials"`
	NumSamples  int     `yaml:"numSamples"`
}

// DefaultConfig returns the search configuration used unless overridden
func DefaultConfig() Config {
	return Config{
		TargetLevel: DefaultTargetLevel,
		Tolerance:   DefaultTolerance,
		MinGain:     DefaultMinGain,
		MaxGain:     DefaultMaxGain,
		Resolution:  DefaultResolution,
		MaxTrials:   DefaultMaxTrials,
		NumSamples:  DefaultNumSamples,
	}
}

func (c *Config) Validate() error {
	if !(c.TargetLevel > 0 && c.TargetLevel < ClipLevel) {
		return fmt.Errorf("%w: calibration.Config: target level must be in (0, %g): %g given", sdr.ErrInvalidArgument, ClipLevel, c.TargetLevel)
	}
	if !(c.Tolerance > 0 && c.Tolerance < 1) {
		return fmt.Errorf("%w: calibration.Config: tolerance must be in (0, 1): %g given", sdr.ErrInvalidArgument, c.Tolerance)
	}
	if err := sdr.GainValue(c.MinGain).Validate(); err != nil {
		return fmt.Errorf("calibration.Config: invalid minimum gain: %w", err)
	}
	if err := sdr.GainValue(c.MaxGain).Validate(); err != nil {
		return fmt.Errorf("calibration.Config: invalid maximum gain: %w", err)
	}
	if c.MaxGain <= c.MinGain {
		return fmt.Errorf("%w: calibration.Config: maximum gain must be greater than minimum: %g <= %g", sdr.ErrInvalidArgument, c.MaxGain, c.MinGain)
	}
	if !(c.Resolution > 0) || math.IsInf(c.Resolution, 0) {
		return fmt.Errorf("%w: calibration.Config: resolution must be positive: %g given", sdr.ErrInvalidArgument, c.Resolution)
	}
	if c.MaxTrials < 1 || c.MaxTrials > TrialLimit {
		return fmt.Errorf("%w: calibration.Config: max trials must be between 1 and %d: %d given", sdr.ErrInvalidArgument, TrialLimit, c.MaxTrials)
	}
	if err := sdr.ValidateSampleCount(c.NumSamples); err != nil {
		return fmt.Errorf("calibration.Config: invalid number of samples: %w", err)
	}
	return nil
}

// WithConfig replaces the whole search configuration
func WithConfig(config Config) func(*Config) {
	return func(c *Config) {
		*c = config
	}
}

// WithTargetLevel sets the target per component RMS level
func WithTargetLevel(level float64) func(*Config) {
	return func(c *Config) {
		c.TargetLevel = level
	}
}

// WithGainRange sets the search bounds
func WithGainRange(minGain, maxGain float64) func(*Config) {
	return func(c *Config) {
		c.MinGain = minGain
		c.MaxGain = maxGain
	}
}

// WithMaxTrials caps the number of trials, at most TrialLimit
func WithMaxTrials(n int) func(*Config) {
	return func(c *Config) {
		c.MaxTrials = n
	}
}

// WithNumSamples sets the number of samples read per trial
func WithNumSamples(n int) func(*Config) {
	return func(c *Config) {
		c.NumSamples = n
	}
}

// Measurement summarizes one block of samples
type Measurement struct {
	Level        float64 // Per component RMS level around the mean
	ClipFraction float64 // Fraction of components at or above ClipLevel
}

// Clipped reports whether the block shows ADC saturation
func (m Measurement) Clipped() bool {
	return m.ClipFraction > MaxClipFraction
}

// Measure computes the level and clipping statistics of a sample block
func Measure(samples []complex128) Measurement {
	if len(samples) == 0 {
		return Measurement{}
	}

	re := make([]float64, len(samples))
	im := make([]float64, len(samples))

	var clipped int
	for i, s := range samples {
		re[i], im[i] = real(s), imag(s)
		if math.Abs(re[i]) >= ClipLevel {
			clipped++
		}
		if math.Abs(im[i]) >= ClipLevel {
			clipped++
		}
	}

	var variance float64
	if len(samples) > 1 {
		variance = (stat.Variance(re, nil) + stat.Variance(im, nil)) / 2
	}

	return Measurement{
		Level:        math.Sqrt(variance),
		ClipFraction: float64(clipped) / float64(2*len(samples)),
	}
}

// Trial is one evaluated candidate gain
type Trial struct {
	Candidate float64 // Gain requested by the search
	Gain      float64 // Gain applied by the device
	Measurement
	Err error // Trial local failure, the trial was skipped
}

// Result is the outcome of a gain search
type Result struct {
	Gain   float64 // Best gain found, always positive and finite
	Level  float64 // Level measured at Gain
	Trials []Trial // Trials in evaluation order
}

// FindOptimalGain runs Search and returns the best gain found
func FindOptimalGain(factory sdr.Factory, progress func(gain float64), options ...func(*Config)) (float64, error) {
	result, err := Search(factory, progress, options...)
	if err != nil {
		return 0, err
	}
	return result.Gain, nil
}

// Search bisects the gain range towards the gain whose sample level matches the
// target level. The progress callback receives each candidate gain before that
// candidate is evaluated.
//
// Each trial sets the candidate gain, reads a block of samples and measures its level.
// A level within tolerance of the target ends the search, otherwise the range is
// halved: too loud (or clipping) lowers the upper bound, too quiet raises the lower
// bound. The search also ends when the range is narrower than the resolution or the
// trial budget is spent. The result is the non-clipping trial closest to the target,
// the earlier trial winning ties.
//
// A rejected gain or a short read skips the trial and raises the lower bound. Any
// other device failure aborts the search.
func Search(factory sdr.Factory, progress func(gain float64), options ...func(*Config)) (*Result, error) {
	config := DefaultConfig()
	for _, option := range options {
		option(&config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	defer dev.Close()

	var result Result
	var lastErr error
	best := -1

	low, high := config.MinGain, config.MaxGain
	for len(result.Trials) < config.MaxTrials && high-low >= config.Resolution {
		candidate := (low + high) / 2
		if progress != nil {
			progress(candidate)
		}

		trial, err := runTrial(dev, candidate, config.NumSamples)
		result.Trials = append(result.Trials, trial)

		if err != nil {
			if !isTrialLocal(err) {
				return nil, fmt.Errorf("trial %d at gain %.2f: %w", len(result.Trials), candidate, err)
			}

			lastErr = err
			low = candidate
			continue
		}

		if trial.Level > 0 && !trial.Clipped() {
			if best < 0 || distance(trial.Level, config.TargetLevel) < distance(result.Trials[best].Level, config.TargetLevel) {
				best = len(result.Trials) - 1
			}
			if math.Abs(trial.Level-config.TargetLevel) <= config.Tolerance*config.TargetLevel {
				break
			}
		}

		if trial.Clipped() || trial.Level > config.TargetLevel {
			high = candidate
		} else {
			low = candidate
		}
	}

	if best < 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w after %d trials: %w", ErrNoUsableGain, len(result.Trials), lastErr)
		}
		return nil, fmt.Errorf("%w after %d trials", ErrNoUsableGain, len(result.Trials))
	}

	result.Gain = result.Trials[best].Gain
	result.Level = result.Trials[best].Level
	return &result, nil
}

func runTrial(dev sdr.Device, candidate float64, numSamples int) (Trial, error) {
	trial := Trial{Candidate: candidate, Gain: candidate}

	if err := dev.SetGain(sdr.GainValue(candidate)); err != nil {
		trial.Err = err
		return trial, err
	}
	if applied, ok := dev.Gain().Value(); ok {
		trial.Gain = applied
	}

	samples, err := dev.ReadSamples(numSamples)
	if err != nil {
		trial.Err = err
		return trial, err
	}

	trial.Measurement = Measure(samples)
	return trial, nil
}

// isTrialLocal reports whether a trial failure leaves the device usable
func isTrialLocal(err error) bool {
	return errors.Is(err, sdr.ErrShortRead) ||
		(errors.Is(err, sdr.ErrInvalidArgument) && !errors.Is(err, sdr.ErrDevice))
}

// distance is the ratio between level and target on a log scale
func distance(level, target float64) float64 {
	return math.Abs(math.Log(level / target))
}
