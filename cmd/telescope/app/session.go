package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/roman-kulish/radio-telescope/internal/calibration"
	"github.com/roman-kulish/radio-telescope/internal/sdr"
	"github.com/roman-kulish/radio-telescope/internal/spectrum"
)

// SpeedOfLight in m/s
const SpeedOfLight = 299_792_458.0

// ErrNotPrepared is returned when an observation is requested before a baseline was recorded
var ErrNotPrepared = errors.New("telescope is not prepared, record a baseline first")

// WithStatus sets the function receiving human readable progress updates
func WithStatus(status func(msg string)) func(*Session) {
	return func(s *Session) {
		s.status = status
	}
}

// WithCalibration sets the gain search configuration
func WithCalibration(config calibration.Config) func(*Session) {
	return func(s *Session) {
		s.calibration = config
	}
}

// WithRecording sets the spectrum recording configuration
func WithRecording(config spectrum.Config) func(*Session) {
	return func(s *Session) {
		s.recording = config
	}
}

// Session holds the calibration state of one observing run: the gain the receiver
// is operated at and the baseline spectrum every observation is normalized against.
// The state is set only once Prepare completes.
type Session struct {
	factory sdr.Factory
	gain    sdr.Gain

	calibration calibration.Config
	recording   spectrum.Config
	status      func(msg string)

	optimalGain float64
	baseline    *spectrum.Spectrum
}

// Observation is a normalized observation and the raw spectra it was derived from
type Observation struct {
	Normalized *spectrum.Spectrum
	Raw        *spectrum.Spectrum
	Baseline   *spectrum.Spectrum
}

// NewSession creates a Session. An automatic gain runs the gain search on Prepare,
// a numeric gain is used as is.
func NewSession(factory sdr.Factory, gain sdr.Gain, options ...func(*Session)) *Session {
	s := Session{
		factory:     factory,
		gain:        gain,
		calibration: calibration.DefaultConfig(),
		recording:   spectrum.DefaultConfig(),
		status:      func(string) {},
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Prepared reports whether a baseline has been recorded
func (s *Session) Prepared() bool {
	return s.baseline != nil
}

// Gain returns the gain found by Prepare
func (s *Session) Gain() (float64, bool) {
	return s.optimalGain, s.baseline != nil
}

// Baseline returns the recorded baseline spectrum, or nil before Prepare
func (s *Session) Baseline() *spectrum.Spectrum {
	return s.baseline
}

// Prepare finds the operating gain and records the baseline spectrum. It is run
// with the receiver terminated or pointed at an empty patch of sky.
func (s *Session) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gain, err := s.resolveGain()
	if err != nil {
		return err
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	s.status(fmt.Sprintf("Recording baseline at %.1f dB", gain))
	baseline, err := spectrum.RecordPowerSpectrum(s.factory, gain, spectrum.WithConfig(s.recording))
	if err != nil {
		return fmt.Errorf("recording baseline: %w", err)
	}

	s.optimalGain = gain
	s.baseline = baseline
	s.status(fmt.Sprintf("Baseline recorded, %d bins", baseline.Len()))

	return nil
}

func (s *Session) resolveGain() (float64, error) {
	if gain, ok := s.gain.Value(); ok {
		s.status(fmt.Sprintf("Using fixed gain %.1f dB", gain))
		return gain, nil
	}

	s.status("Searching for optimal gain")
	gain, err := calibration.FindOptimalGain(s.factory, func(candidate float64) {
		s.status(fmt.Sprintf("Trying gain %.2f dB", candidate))
	}, calibration.WithConfig(s.calibration))
	if err != nil {
		return 0, fmt.Errorf("searching for optimal gain: %w", err)
	}

	s.status(fmt.Sprintf("Optimal gain %.1f dB", gain))
	return gain, nil
}

// Observe records a spectrum at the prepared gain and normalizes it against the baseline
func (s *Session) Observe(ctx context.Context) (*Observation, error) {
	if s.baseline == nil {
		return nil, ErrNotPrepared
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.status(fmt.Sprintf("Recording observation at %.1f dB", s.optimalGain))
	raw, err := spectrum.RecordPowerSpectrum(s.factory, s.optimalGain, spectrum.WithConfig(s.recording))
	if err != nil {
		return nil, fmt.Errorf("recording observation: %w", err)
	}

	normalized, err := spectrum.Normalize(raw, s.baseline)
	if err != nil {
		return nil, fmt.Errorf("normalizing observation: %w", err)
	}

	s.status("Observation complete")
	return &Observation{
		Normalized: normalized,
		Raw:        raw,
		Baseline:   s.baseline,
	}, nil
}

// Peak returns the frequency of the strongest normalized bin, its offset from the
// hydrogen line rest frequency in Hz and the radial velocity it implies in m/s.
// A positive velocity is a source receding from the observer.
func (o *Observation) Peak() (frequency, offset, velocity float64) {
	_, frequency, _ = o.Normalized.Peak()
	offset = frequency - sdr.HydrogenLineFrequency
	velocity = -SpeedOfLight * offset / sdr.HydrogenLineFrequency
	return frequency, offset, velocity
}
