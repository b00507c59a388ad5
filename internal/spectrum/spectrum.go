package spectrum

import (
	"gonum.org/v1/gonum/floats"
)

// Spectrum is a power spectrum: power per frequency bin on an ascending axis.
// A Spectrum is not modified after it is recorded.
type Spectrum struct {
	Frequencies     []float64 `json:"frequencies"`     // Bin center frequencies in Hz, ascending
	Power           []float64 `json:"power"`           // Power per bin, same length as Frequencies
	CenterFrequency float64   `json:"centerFrequency"` // Device center frequency at capture time in Hz
	SampleRate      float64   `json:"sampleRate"`      // Device sample rate at capture time in Hz
	Gain            float64   `json:"gain"`            // Gain applied by the device in dB
}

// Len returns the number of frequency bins
func (s *Spectrum) Len() int {
	return len(s.Frequencies)
}

// BinWidth returns the frequency bin spacing in Hz
func (s *Spectrum) BinWidth() float64 {
	if len(s.Frequencies) == 0 {
		return 0
	}
	return s.SampleRate / float64(len(s.Frequencies))
}

// SameAxis reports whether both spectra have identical frequency bins
func (s *Spectrum) SameAxis(other *Spectrum) bool {
	if s == nil || other == nil {
		return false
	}
	if len(s.Frequencies) != len(other.Frequencies) || len(s.Power) != len(s.Frequencies) || len(other.Power) != len(other.Frequencies) {
		return false
	}
	return floats.Equal(s.Frequencies, other.Frequencies)
}

// Peak returns the index, frequency and power of the strongest bin.
// It returns -1 for an empty spectrum.
func (s *Spectrum) Peak() (idx int, frequency, power float64) {
	if len(s.Power) == 0 || len(s.Power) != len(s.Frequencies) {
		return -1, 0, 0
	}

	idx = floats.MaxIdx(s.Power)
	return idx, s.Frequencies[idx], s.Power[idx]
}
