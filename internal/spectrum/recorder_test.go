package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
	"github.com/roman-kulish/radio-telescope/internal/sdr/mock"
)

// toneDevice emits a single complex tone offset from the center frequency
type toneDevice struct {
	*mock.Generator

	offset  float64 // tone offset from the center frequency in Hz
	readErr error
	closed  bool
}

func (d *toneDevice) ReadSamples(n int) ([]complex128, error) {
	if err := sdr.ValidateSampleCount(n); err != nil {
		return nil, err
	}
	if d.readErr != nil {
		return nil, d.readErr
	}

	samples := make([]complex128, n)
	for i := range samples {
		phase := 2 * math.Pi * d.offset * float64(i) / d.SampleRate()
		samples[i] = 0.1 * cmplx.Exp(complex(0, phase))
	}
	return samples, nil
}

func (d *toneDevice) Close() error {
	d.closed = true
	return d.Generator.Close()
}

func newToneFactory(t *testing.T, offset float64) (sdr.Factory, *toneDevice) {
	t.Helper()

	g, err := mock.New(mock.WithSeed(1))
	require.NoError(t, err)

	dev := &toneDevice{Generator: g, offset: offset}
	return func() (sdr.Device, error) {
		return dev, nil
	}, dev
}

func TestFrequencyAxis(t *testing.T) {
	axis := FrequencyAxis(1420.4e6, 2.048e6, 8)

	assert.Equal(t, []float64{
		1419.376e6, 1419.632e6, 1419.888e6, 1420.144e6,
		1420.4e6, 1420.656e6, 1420.912e6, 1421.168e6,
	}, axis)
}

func TestHannWindow(t *testing.T) {
	window := HannWindow(8)

	assert.Equal(t, 0.0, window[0])
	assert.InDelta(t, 1.0, window[4], 1e-15)
	assert.InDelta(t, window[1], window[7], 1e-15)
	assert.InDelta(t, 4.0, floats.Sum(window), 1e-12)
}

func TestRecordPowerSpectrum_Axis(t *testing.T) {
	factory := mock.Factory(mock.WithSeed(11))

	s, err := RecordPowerSpectrum(factory, 20, WithFFTSize(256), WithNumSamples(1<<12))
	require.NoError(t, err)

	require.Equal(t, 256, s.Len())
	require.Len(t, s.Power, 256)

	assert.Equal(t, sdr.DefaultCenterFrequency, s.CenterFrequency)
	assert.Equal(t, sdr.DefaultSampleRate, s.SampleRate)
	assert.Equal(t, 20.0, s.Gain)
	assert.Equal(t, s.CenterFrequency, s.Frequencies[128])
	assert.Equal(t, sdr.DefaultSampleRate/256, s.BinWidth())

	for k := 1; k < s.Len(); k++ {
		assert.Greater(t, s.Frequencies[k], s.Frequencies[k-1])
		assert.InDelta(t, s.BinWidth(), s.Frequencies[k]-s.Frequencies[k-1], 1e-6)
	}
	for _, p := range s.Power {
		assert.GreaterOrEqual(t, p, 0.0)
	}

	again, err := RecordPowerSpectrum(factory, 20, WithFFTSize(256), WithNumSamples(1<<12))
	require.NoError(t, err)
	assert.Equal(t, s.Frequencies, again.Frequencies, "axis must be exactly reproducible")
	assert.NotEqual(t, s.Power, again.Power, "independent acquisitions draw new noise")
}

func TestRecordPowerSpectrum_NoiseLevel(t *testing.T) {
	const gain = 20.0
	sigma := mock.Scale * gain

	s, err := RecordPowerSpectrum(mock.Factory(mock.WithSeed(5)), gain, WithNumSamples(1<<16))
	require.NoError(t, err)

	// complex white noise has a flat expected power of 2 sigma^2 per bin
	assert.InEpsilon(t, 2*sigma*sigma, floats.Sum(s.Power)/float64(s.Len()), 0.02)
}

func TestRecordPowerSpectrum_TonePeak(t *testing.T) {
	const fftSize = 512
	binWidth := sdr.DefaultSampleRate / fftSize

	testCases := []struct {
		name string
		bins int
	}{
		{"center", 0},
		{"above", 37},
		{"below", -100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			factory, dev := newToneFactory(t, float64(tc.bins)*binWidth)

			s, err := RecordPowerSpectrum(factory, 10, WithFFTSize(fftSize), WithNumSamples(8*fftSize))
			require.NoError(t, err)
			assert.True(t, dev.closed)

			idx, freq, power := s.Peak()
			assert.Equal(t, fftSize/2+tc.bins, idx)
			assert.InDelta(t, sdr.DefaultCenterFrequency+float64(tc.bins)*binWidth, freq, 1e-3)
			assert.Greater(t, power, 0.0)
		})
	}
}

func TestRecordPowerSpectrum_DiscardsRemainder(t *testing.T) {
	s, err := RecordPowerSpectrum(mock.Factory(mock.WithSeed(2)), 5, WithFFTSize(64), WithNumSamples(64*3+17))
	require.NoError(t, err)
	assert.Equal(t, 64, s.Len())
}

func TestRecordPowerSpectrum_Errors(t *testing.T) {
	t.Run("invalid gain", func(t *testing.T) {
		for _, gain := range []float64{0, -3, math.NaN(), math.Inf(1)} {
			var opened bool
			_, err := RecordPowerSpectrum(func() (sdr.Device, error) {
				opened = true
				return mock.New()
			}, gain)
			assert.ErrorIs(t, err, sdr.ErrInvalidArgument, "gain %g", gain)
			assert.False(t, opened)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		testCases := []func(*Config){
			WithFFTSize(1000),
			WithFFTSize(8),
			WithNumSamples(0),
			WithNumSamples(512),
			WithNumSamples(sdr.MaxReadSamples + 1),
		}

		for i, option := range testCases {
			_, err := RecordPowerSpectrum(mock.Factory(), 10, option)
			assert.Error(t, err, "case %d", i)
		}
	})

	t.Run("factory failure", func(t *testing.T) {
		errNoDevice := errors.New("no device")
		_, err := RecordPowerSpectrum(func() (sdr.Device, error) {
			return nil, errNoDevice
		}, 10)
		assert.ErrorIs(t, err, errNoDevice)
	})

	t.Run("read failure releases device", func(t *testing.T) {
		factory, dev := newToneFactory(t, 0)
		dev.readErr = fmt.Errorf("%w: usb transfer failed", sdr.ErrDevice)

		s, err := RecordPowerSpectrum(factory, 10, WithNumSamples(1<<12))
		assert.Nil(t, s)
		assert.ErrorIs(t, err, sdr.ErrDevice)
		assert.True(t, dev.closed)
	})
}

func TestConfig_Segments(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 4096, config.Segments())
}
