package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
	"github.com/roman-kulish/radio-telescope/internal/sdr/mock"
	"github.com/roman-kulish/radio-telescope/internal/spectrum"
)

var testRecording = spectrum.Config{FFTSize: 256, NumSamples: 1 << 14}

// countingFactory counts the devices a factory hands out
func countingFactory(factory sdr.Factory, count *int) sdr.Factory {
	return func() (sdr.Device, error) {
		*count++
		return factory()
	}
}

func TestSession_ObserveBeforePrepare(t *testing.T) {
	var opened int
	s := NewSession(countingFactory(mock.Factory(), &opened), sdr.GainAuto)

	observation, err := s.Observe(context.Background())
	assert.Nil(t, observation)
	assert.ErrorIs(t, err, ErrNotPrepared)
	assert.Zero(t, opened)
	assert.False(t, s.Prepared())
}

func TestSession_AutoGain(t *testing.T) {
	var statuses []string
	var opened int

	s := NewSession(countingFactory(mock.Factory(mock.WithSeed(21)), &opened), sdr.GainAuto,
		WithRecording(testRecording),
		WithStatus(func(msg string) {
			statuses = append(statuses, msg)
		}),
	)

	require.NoError(t, s.Prepare(context.Background()))
	require.True(t, s.Prepared())
	assert.Equal(t, 2, opened, "one device for the search and one for the baseline")

	gain, ok := s.Gain()
	require.True(t, ok)
	assert.InDelta(t, 20.0, gain, 1.0)
	assert.Equal(t, gain, s.Baseline().Gain)

	require.NotEmpty(t, statuses)
	assert.Equal(t, "Searching for optimal gain", statuses[0])
	assert.True(t, strings.HasPrefix(statuses[1], "Trying gain"))

	observation, err := s.Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, opened)

	assert.Same(t, s.Baseline(), observation.Baseline)
	assert.Equal(t, gain, observation.Raw.Gain)
	assert.Equal(t, testRecording.FFTSize, observation.Normalized.Len())
	assert.Equal(t, 0.0, floats.Min(observation.Normalized.Power))
	assert.Equal(t, 1.0, floats.Max(observation.Normalized.Power))
}

func TestSession_FixedGain(t *testing.T) {
	var statuses []string
	var opened int

	s := NewSession(countingFactory(mock.Factory(mock.WithSeed(4)), &opened), sdr.GainValue(12.5),
		WithRecording(testRecording),
		WithStatus(func(msg string) {
			statuses = append(statuses, msg)
		}),
	)

	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, 1, opened, "a fixed gain skips the search")

	gain, ok := s.Gain()
	require.True(t, ok)
	assert.Equal(t, 12.5, gain)
	assert.Equal(t, "Using fixed gain 12.5 dB", statuses[0])
}

func TestSession_PrepareFailureKeepsState(t *testing.T) {
	errUnplugged := errors.New("dongle unplugged")

	s := NewSession(func() (sdr.Device, error) {
		return nil, errUnplugged
	}, sdr.GainAuto)

	err := s.Prepare(context.Background())
	assert.ErrorIs(t, err, errUnplugged)
	assert.False(t, s.Prepared())
	assert.Nil(t, s.Baseline())

	_, err = s.Observe(context.Background())
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestSession_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var opened int
	s := NewSession(countingFactory(mock.Factory(), &opened), sdr.GainValue(10), WithRecording(testRecording))

	assert.ErrorIs(t, s.Prepare(ctx), context.Canceled)
	assert.False(t, s.Prepared())
	assert.Zero(t, opened)

	require.NoError(t, s.Prepare(context.Background()))
	_, err := s.Observe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObservation_Peak(t *testing.T) {
	const binWidth = 1000.0

	testCases := []struct {
		name       string
		peakOffset float64
		receding   bool
	}{
		{"blueshifted", 3 * binWidth, false},
		{"redshifted", -3 * binWidth, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frequencies := []float64{
				sdr.HydrogenLineFrequency - 3*binWidth,
				sdr.HydrogenLineFrequency,
				sdr.HydrogenLineFrequency + 3*binWidth,
			}
			power := []float64{0, 0.5, 0}
			if tc.receding {
				power[0] = 1
			} else {
				power[2] = 1
			}

			o := Observation{Normalized: &spectrum.Spectrum{Frequencies: frequencies, Power: power}}
			frequency, offset, velocity := o.Peak()

			assert.Equal(t, sdr.HydrogenLineFrequency+tc.peakOffset, frequency)
			assert.InDelta(t, tc.peakOffset, offset, 1e-3)
			assert.InDelta(t, -SpeedOfLight*tc.peakOffset/sdr.HydrogenLineFrequency, velocity, 1e-3)
			assert.Equal(t, tc.receding, velocity > 0)
		})
	}
}
