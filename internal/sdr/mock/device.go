package mock

import (
	"math/rand/v2"
	"time"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

const (
	Device = "mock"

	// Scale maps the effective gain to the standard deviation of each sample component.
	// It is tuned so that a gain search against this generator converges in a few trials.
	Scale = 0.01

	defaultGain = 1.0
)

// WithSeed makes the generated samples reproducible
func WithSeed(seed uint64) func(d *Generator) {
	return func(d *Generator) {
		d.seed = seed
		d.seeded = true
	}
}

// WithSampleRate sets the initial sample rate in Hz
func WithSampleRate(hz float64) func(d *Generator) {
	return func(d *Generator) {
		d.sampleRate = hz
	}
}

// WithCenterFrequency sets the initial center frequency in Hz
func WithCenterFrequency(hz float64) func(d *Generator) {
	return func(d *Generator) {
		d.centerFreq = hz
	}
}

// WithGain sets the initial gain
func WithGain(g sdr.Gain) func(d *Generator) {
	return func(d *Generator) {
		d.gain = g
	}
}

// Generator is a stand-in for an RTL-SDR receiver. It has the same capabilities,
// except that ReadSamples synthesizes complex Gaussian noise whose power scales with
// the configured gain.
type Generator struct {
	sampleRate float64
	centerFreq float64
	gain       sdr.Gain

	seed       uint64
	seeded     bool
	seedOffset uint64

	rng    *rand.Rand
	closed bool
}

// New creates a Generator with the telescope defaults. Without WithSeed the noise
// source is seeded from the clock.
func New(options ...func(d *Generator)) (*Generator, error) {
	d := Generator{
		sampleRate: sdr.DefaultSampleRate,
		centerFreq: sdr.DefaultCenterFrequency,
		gain:       sdr.GainValue(defaultGain),
	}

	for _, option := range options {
		option(&d)
	}

	seed := d.seed
	if !d.seeded {
		seed = uint64(time.Now().UnixNano())
	}
	seed += d.seedOffset
	d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	if err := sdr.ValidateFrequency("sample rate", d.sampleRate); err != nil {
		return nil, err
	}
	if err := sdr.ValidateFrequency("center frequency", d.centerFreq); err != nil {
		return nil, err
	}
	if err := d.gain.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

func (d *Generator) SampleRate() float64 {
	return d.sampleRate
}

func (d *Generator) SetSampleRate(hz float64) error {
	if err := sdr.ValidateFrequency("sample rate", hz); err != nil {
		return err
	}

	d.sampleRate = hz
	return nil
}

func (d *Generator) CenterFrequency() float64 {
	return d.centerFreq
}

func (d *Generator) SetCenterFrequency(hz float64) error {
	if err := sdr.ValidateFrequency("center frequency", hz); err != nil {
		return err
	}

	d.centerFreq = hz
	return nil
}

func (d *Generator) Gain() sdr.Gain {
	return d.gain
}

func (d *Generator) SetGain(g sdr.Gain) error {
	if err := g.Validate(); err != nil {
		return err
	}

	d.gain = g
	return nil
}

// EffectiveGain is the numeric gain used for scaling, 1.0 in automatic mode
func (d *Generator) EffectiveGain() float64 {
	if v, ok := d.gain.Value(); ok {
		return v
	}
	return 1.0
}

// ReadSamples returns n samples of complex Gaussian noise with per component
// standard deviation Scale * EffectiveGain.
func (d *Generator) ReadSamples(n int) ([]complex128, error) {
	if err := sdr.ValidateSampleCount(n); err != nil {
		return nil, err
	}
	if d.closed {
		return nil, sdr.ErrDeviceClosed
	}

	sigma := Scale * d.EffectiveGain()

	samples := make([]complex128, n)
	for i := range samples {
		samples[i] = complex(d.rng.NormFloat64()*sigma, d.rng.NormFloat64()*sigma)
	}

	return samples, nil
}

func (d *Generator) Close() error {
	d.closed = true
	return nil
}

// Factory returns an sdr.Factory producing generators configured with options.
// Every device it creates gets a distinct seed offset, so a seeded factory yields
// reproducible but independent noise for each acquisition.
func Factory(options ...func(d *Generator)) sdr.Factory {
	var created uint64
	return func() (sdr.Device, error) {
		offset := created
		created++

		opts := append([]func(d *Generator){}, options...)
		opts = append(opts, func(d *Generator) {
			d.seedOffset = offset
		})

		g, err := New(opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}
