package spectrum

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

const (
	DefaultFFTSize    = 1024
	DefaultNumSamples = 1 << 22

	// MinFFTSize is the smallest supported transform length
	MinFFTSize = 16
)

// Config controls a spectrum recording
type Config struct {
	FFTSize    int `yaml:"fftSize"`    // Transform length, power of two (default: 1024)
	NumSamples int `yaml:"numSamples"` // Samples read per recording (default: 4194304)
}

// DefaultConfig returns the recording configuration used unless overridden
func DefaultConfig() Config {
	return Config{
		FFTSize:    DefaultFFTSize,
		NumSamples: DefaultNumSamples,
	}
}

func (c *Config) Validate() error {
	if c.FFTSize < MinFFTSize || bits.OnesCount(uint(c.FFTSize)) != 1 {
		return fmt.Errorf("%w: spectrum.Config: FFT size must be a power of two >= %d: %d given", sdr.ErrInvalidArgument, MinFFTSize, c.FFTSize)
	}
	if err := sdr.ValidateSampleCount(c.NumSamples); err != nil {
		return fmt.Errorf("spectrum.Config: invalid number of samples: %w", err)
	}
	if c.NumSamples < c.FFTSize {
		return fmt.Errorf("%w: spectrum.Config: number of samples must be at least the FFT size: %d < %d", sdr.ErrInvalidArgument, c.NumSamples, c.FFTSize)
	}
	return nil
}

// Segments returns the number of full transform segments in one recording
func (c *Config) Segments() int {
	return c.NumSamples / c.FFTSize
}

// WithConfig replaces the whole recording configuration
func WithConfig(config Config) func(*Config) {
	return func(c *Config) {
		*c = config
	}
}

// WithFFTSize sets the transform length
func WithFFTSize(n int) func(*Config) {
	return func(c *Config) {
		c.FFTSize = n
	}
}

// WithNumSamples sets the number of samples read per recording
func WithNumSamples(n int) func(*Config) {
	return func(c *Config) {
		c.NumSamples = n
	}
}

// RecordPowerSpectrum sets the device gain, reads one block of samples and returns
// its Welch averaged power spectrum. Samples past the last full segment are dropped.
func RecordPowerSpectrum(factory sdr.Factory, gain float64, options ...func(*Config)) (*Spectrum, error) {
	config := DefaultConfig()
	for _, option := range options {
		option(&config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	g := sdr.GainValue(gain)
	if err := g.Validate(); err != nil {
		return nil, err
	}

	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	defer dev.Close()

	if err = dev.SetGain(g); err != nil {
		return nil, fmt.Errorf("setting gain %s: %w", g, err)
	}

	samples, err := dev.ReadSamples(config.NumSamples)
	if err != nil {
		return nil, fmt.Errorf("reading %d samples: %w", config.NumSamples, err)
	}

	applied, ok := dev.Gain().Value()
	if !ok {
		applied = gain
	}

	return &Spectrum{
		Frequencies:     FrequencyAxis(dev.CenterFrequency(), dev.SampleRate(), config.FFTSize),
		Power:           Welch(samples, config.FFTSize),
		CenterFrequency: dev.CenterFrequency(),
		SampleRate:      dev.SampleRate(),
		Gain:            applied,
	}, nil
}

// FrequencyAxis returns the ascending bin frequencies of an n point transform
// centered on centerFreq: centerFreq + (k - n/2) * sampleRate / n.
func FrequencyAxis(centerFreq, sampleRate float64, n int) []float64 {
	axis := make([]float64, n)
	for k := range axis {
		axis[k] = centerFreq + float64(k-n/2)*sampleRate/float64(n)
	}
	return axis
}

// HannWindow returns an n point periodic Hann window
func HannWindow(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(n)))
	}
	return window
}

// Welch splits samples into consecutive segments of fftSize, transforms each Hann
// windowed segment and averages |X|^2 / sum(w^2) across segments. The result is
// ordered from the most negative to the most positive frequency.
func Welch(samples []complex128, fftSize int) []float64 {
	power := make([]float64, fftSize)

	segments := len(samples) / fftSize
	if segments == 0 {
		return power
	}

	window := HannWindow(fftSize)
	var windowPower float64
	for _, w := range window {
		windowPower += w * w
	}

	fft := fourier.NewCmplxFFT(fftSize)
	segment := make([]complex128, fftSize)
	coeffs := make([]complex128, fftSize)

	for s := 0; s < segments; s++ {
		block := samples[s*fftSize : (s+1)*fftSize]
		for i, x := range block {
			segment[i] = x * complex(window[i], 0)
		}

		coeffs = fft.Coefficients(coeffs, segment)
		for k := range power {
			c := coeffs[fft.ShiftIdx(k)]
			power[k] += real(c)*real(c) + imag(c)*imag(c)
		}
	}

	norm := windowPower * float64(segments)
	for k := range power {
		power[k] /= norm
	}

	return power
}
