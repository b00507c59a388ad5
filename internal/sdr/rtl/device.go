package rtl

import (
	"fmt"
	"math"
	"slices"

	rtl "github.com/jpoirier/gortlsdr"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

const (
	Device = "RTL-SDR"

	// readChunk is the largest transfer handed to a single synchronous read. USB bulk
	// transfers must be a multiple of 512 bytes.
	readChunk     = rtl.DefaultBufLength
	transferAlign = 512
)

// dongle is the subset of the librtlsdr context used by the receiver
type dongle interface {
	SetSampleRate(rate int) error
	GetSampleRate() int
	SetCenterFreq(freq int) error
	GetCenterFreq() int
	SetFreqCorrection(ppm int) error
	SetTunerGainMode(manual bool) error
	SetTunerGain(gain int) error
	GetTunerGains() ([]int, error)
	ResetBuffer() error
	ReadSync(buf []uint8, leng int) (int, error)
	Close() error
}

// Receiver is an RTL-SDR dongle driven through librtlsdr
type Receiver struct {
	dev dongle

	gains      []float64 // supported positive tuner gains in dB, ascending
	gain       sdr.Gain
	sampleRate float64
	centerFreq float64

	closed bool
}

// Open opens the RTL-SDR dongle selected by config and tunes it
func Open(config *Config, sampleRate, centerFreq float64) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if err := ValidateCenterFrequency(centerFreq); err != nil {
		return nil, err
	}

	if count := rtl.GetDeviceCount(); count <= config.DeviceIndex {
		return nil, fmt.Errorf("%w: RTL-SDR device %d not found, %d device(s) attached", sdr.ErrDevice, config.DeviceIndex, count)
	}

	dev, err := rtl.Open(config.DeviceIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: opening RTL-SDR device %d: %w", sdr.ErrDevice, config.DeviceIndex, err)
	}

	r, err := newReceiver(dev, config, sampleRate, centerFreq)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	return r, nil
}

// Factory returns an sdr.Factory opening the configured dongle
func Factory(config *Config, sampleRate, centerFreq float64) sdr.Factory {
	return func() (sdr.Device, error) {
		r, err := Open(config, sampleRate, centerFreq)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func newReceiver(dev dongle, config *Config, sampleRate, centerFreq float64) (*Receiver, error) {
	r := Receiver{dev: dev}

	tenths, err := dev.GetTunerGains()
	if err != nil {
		return nil, fmt.Errorf("%w: reading tuner gains: %w", sdr.ErrDevice, err)
	}
	for _, g := range tenths {
		if g > 0 {
			r.gains = append(r.gains, float64(g)/10)
		}
	}
	slices.Sort(r.gains)
	if len(r.gains) == 0 {
		return nil, fmt.Errorf("%w: tuner reports no usable gains", sdr.ErrDevice)
	}

	if config.PPMError != 0 {
		if err = dev.SetFreqCorrection(config.PPMError); err != nil {
			return nil, fmt.Errorf("%w: setting frequency correction: %w", sdr.ErrInvalidArgument, err)
		}
	}

	if err = r.SetSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if err = r.SetCenterFrequency(centerFreq); err != nil {
		return nil, err
	}
	if err = r.SetGain(sdr.GainAuto); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *Receiver) SampleRate() float64 {
	return r.sampleRate
}

func (r *Receiver) SetSampleRate(hz float64) error {
	if err := ValidateSampleRate(hz); err != nil {
		return err
	}
	if r.closed {
		return sdr.ErrDeviceClosed
	}

	if err := r.dev.SetSampleRate(int(math.Round(hz))); err != nil {
		return fmt.Errorf("%w: setting sample rate %0.f Hz: %w", sdr.ErrInvalidArgument, hz, err)
	}

	r.sampleRate = float64(r.dev.GetSampleRate())
	return nil
}

func (r *Receiver) CenterFrequency() float64 {
	return r.centerFreq
}

func (r *Receiver) SetCenterFrequency(hz float64) error {
	if err := ValidateCenterFrequency(hz); err != nil {
		return err
	}
	if r.closed {
		return sdr.ErrDeviceClosed
	}

	if err := r.dev.SetCenterFreq(int(math.Round(hz))); err != nil {
		return fmt.Errorf("%w: setting center frequency %0.f Hz: %w", sdr.ErrInvalidArgument, hz, err)
	}

	r.centerFreq = float64(r.dev.GetCenterFreq())
	return nil
}

// Gain returns the gain applied to the tuner. Numeric gains are snapped to the
// nearest gain the tuner supports.
func (r *Receiver) Gain() sdr.Gain {
	return r.gain
}

// SupportedGains returns the positive tuner gains in dB
func (r *Receiver) SupportedGains() []float64 {
	return slices.Clone(r.gains)
}

func (r *Receiver) SetGain(g sdr.Gain) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if r.closed {
		return sdr.ErrDeviceClosed
	}

	want, manual := g.Value()
	if !manual {
		if err := r.dev.SetTunerGainMode(false); err != nil {
			return fmt.Errorf("%w: enabling automatic gain: %w", sdr.ErrDevice, err)
		}

		r.gain = sdr.GainAuto
		return nil
	}

	applied, _ := sdr.NearestGain(r.gains, want)

	if err := r.dev.SetTunerGainMode(true); err != nil {
		return fmt.Errorf("%w: enabling manual gain: %w", sdr.ErrDevice, err)
	}
	if err := r.dev.SetTunerGain(int(math.Round(applied * 10))); err != nil {
		return fmt.Errorf("%w: setting tuner gain %.1f dB: %w", sdr.ErrInvalidArgument, applied, err)
	}

	r.gain = sdr.GainValue(applied)
	return nil
}

// ReadSamples resets the sample buffer, so no samples captured with previous
// settings are returned, and reads exactly n samples.
func (r *Receiver) ReadSamples(n int) ([]complex128, error) {
	if err := sdr.ValidateSampleCount(n); err != nil {
		return nil, err
	}
	if r.closed {
		return nil, sdr.ErrDeviceClosed
	}

	if err := r.dev.ResetBuffer(); err != nil {
		return nil, fmt.Errorf("%w: resetting buffer: %w", sdr.ErrDevice, err)
	}

	size := 2 * n
	size = (size + transferAlign - 1) / transferAlign * transferAlign

	buf := make([]byte, size)
	for offset := 0; offset < size; {
		chunk := min(readChunk, size-offset)

		nRead, err := r.dev.ReadSync(buf[offset:offset+chunk], chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %d bytes: %w", sdr.ErrDevice, chunk, err)
		}
		if nRead < chunk {
			return nil, fmt.Errorf("%w: %d of %d bytes", sdr.ErrShortRead, offset+nRead, size)
		}

		offset += chunk
	}

	samples := make([]complex128, n)
	sdr.DecodeU8(samples, buf)
	return samples, nil
}

func (r *Receiver) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	if err := r.dev.Close(); err != nil {
		return fmt.Errorf("%w: closing device: %w", sdr.ErrDevice, err)
	}
	return nil
}
