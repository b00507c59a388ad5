package rtl

import (
	"fmt"
	"strings"

	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

const (
	// SampleRateMin and SampleRateMax bound the RTL2832U sample rate. Rates above
	// 300 kHz up to 900 kHz are rejected by librtlsdr as well.
	SampleRateMin = 225_001
	SampleRateMax = 3_200_000

	sampleRateGapLow  = 300_000
	sampleRateGapHigh = 900_000

	// FrequencyMin and FrequencyMax are the R820T tuner limits in Hz
	FrequencyMin = 24_000_000
	FrequencyMax = 1_766_000_000

	// PPMErrorMax bounds the crystal frequency correction
	PPMErrorMax = 1000
)

/*
Example configuration section:

	rtl:
	  deviceIndex: 0   # -d device_index (default: 0)
	  ppmError: 1      # -p ppm_error (default: 0)
*/

// Config is the RTL-SDR backend configuration. The sample rate, center frequency and
// gain are device state and are set through the sdr.Device interface instead.
type Config struct {
	DeviceIndex int `yaml:"deviceIndex" json:"deviceIndex"` // device index (default: 0)
	PPMError    int `yaml:"ppmError" json:"ppmError"`       // crystal frequency correction (default: 0)
}

func (c *Config) Validate() error {
	if c.DeviceIndex < 0 {
		return sdr.NewConfigError(fmt.Sprintf("rtl.Config: device index must not be negative: %d given", c.DeviceIndex))
	}
	if c.PPMError < -PPMErrorMax || c.PPMError > PPMErrorMax {
		return sdr.NewConfigError(fmt.Sprintf("rtl.Config: ppm error must be between -%d and %d: %d given", PPMErrorMax, PPMErrorMax, c.PPMError))
	}
	return nil
}

func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s index=%d", Device, c.DeviceIndex)
	if c.PPMError != 0 {
		fmt.Fprintf(&b, " ppm=%d", c.PPMError)
	}
	return b.String()
}

// ValidateSampleRate checks that the RTL2832U can run at the given rate
func ValidateSampleRate(hz float64) error {
	if err := sdr.ValidateFrequency("sample rate", hz); err != nil {
		return err
	}
	if hz < SampleRateMin || hz > SampleRateMax || (hz > sampleRateGapLow && hz <= sampleRateGapHigh) {
		return fmt.Errorf("%w: unsupported sample rate: %0.f Hz", sdr.ErrInvalidArgument, hz)
	}
	return nil
}

// ValidateCenterFrequency checks that the tuner can be tuned to the given frequency
func ValidateCenterFrequency(hz float64) error {
	if err := sdr.ValidateFrequency("center frequency", hz); err != nil {
		return err
	}
	if hz < FrequencyMin || hz > FrequencyMax {
		return fmt.Errorf("%w: center frequency out of tuner range: %0.f Hz", sdr.ErrInvalidArgument, hz)
	}
	return nil
}
