package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-telescope/internal/calibration"
	"github.com/roman-kulish/radio-telescope/internal/sdr"
	"github.com/roman-kulish/radio-telescope/internal/sdr/mock"
	"github.com/roman-kulish/radio-telescope/internal/sdr/rtl"
	"github.com/roman-kulish/radio-telescope/internal/spectrum"
)

const (
	DeviceMock   = "mock"
	DeviceRTLSDR = "rtl-sdr"
)

/*
Example configuration:

	settings:
	  logLevel: info
	device:
	  type: rtl-sdr          # rtl-sdr | mock
	  sampleRate: 2048000
	  centerFrequency: 1420400000
	  rtl:
	    deviceIndex: 0
	    ppmError: 0
	  mock:
	    seed: 1420           # omit for a clock seeded generator
	calibration:
	  gain: auto             # auto runs the gain search, a number in dB skips it
	  targetLevel: 0.2
	  maxTrials: 12
	spectrum:
	  fftSize: 1024
	  numSamples: 4194304
	observation:
	  wait: true             # wait for Enter between baseline and observation
*/

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Device      DeviceConfig      `yaml:"device"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Spectrum    spectrum.Config   `yaml:"spectrum"`
	Observation ObservationConfig `yaml:"observation"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// DeviceConfig selects and tunes the receiver
type DeviceConfig struct {
	Type            string     `yaml:"type"`
	SampleRate      float64    `yaml:"sampleRate"`
	CenterFrequency float64    `yaml:"centerFrequency"`
	RTL             rtl.Config `yaml:"rtl"`
	Mock            MockConfig `yaml:"mock"`
}

// MockConfig configures the synthetic receiver
type MockConfig struct {
	Seed *uint64 `yaml:"seed"`
}

// CalibrationConfig holds the gain setting and the gain search settings
type CalibrationConfig struct {
	Gain               sdr.Gain `yaml:"gain"`
	calibration.Config `yaml:",inline"`
}

// ObservationConfig controls the observation step
type ObservationConfig struct {
	Wait bool `yaml:"wait"`
}

// NewConfig returns the configuration with every default applied
func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
		},
		Device: DeviceConfig{
			Type:            DeviceRTLSDR,
			SampleRate:      sdr.DefaultSampleRate,
			CenterFrequency: sdr.DefaultCenterFrequency,
		},
		Calibration: CalibrationConfig{
			Gain:   sdr.GainAuto,
			Config: calibration.DefaultConfig(),
		},
		Spectrum: spectrum.DefaultConfig(),
		Observation: ObservationConfig{
			Wait: true,
		},
	}
}

// LoadConfig reads the YAML configuration file at path on top of the defaults.
// The result is not validated, so that command line overrides can be applied first.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig decodes a YAML configuration on top of the defaults. Unknown keys are rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	config := NewConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return fmt.Errorf("app.Config: invalid log level %q", c.Settings.LogLevel)
	}

	if err := c.Device.Validate(); err != nil {
		return err
	}

	if err := c.Calibration.Gain.Validate(); err != nil {
		return fmt.Errorf("app.Config: invalid gain: %w", err)
	}
	if err := c.Calibration.Config.Validate(); err != nil {
		return fmt.Errorf("app.Config: %w", err)
	}
	if err := c.Spectrum.Validate(); err != nil {
		return fmt.Errorf("app.Config: %w", err)
	}

	return nil
}

func (c *DeviceConfig) Validate() error {
	switch c.Type {
	case DeviceMock:
		if err := sdr.ValidateFrequency("sample rate", c.SampleRate); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}
		if err := sdr.ValidateFrequency("center frequency", c.CenterFrequency); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}

	case DeviceRTLSDR:
		if err := c.RTL.Validate(); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}
		if err := rtl.ValidateSampleRate(c.SampleRate); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}
		if err := rtl.ValidateCenterFrequency(c.CenterFrequency); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}

	default:
		return fmt.Errorf("app.Config: unknown device type '%s'", c.Type)
	}

	return nil
}

// Factory returns the device factory for the configured receiver
func (c *DeviceConfig) Factory() (sdr.Factory, error) {
	switch c.Type {
	case DeviceMock:
		options := []func(*mock.Generator){
			mock.WithSampleRate(c.SampleRate),
			mock.WithCenterFrequency(c.CenterFrequency),
		}
		if c.Mock.Seed != nil {
			options = append(options, mock.WithSeed(*c.Mock.Seed))
		}
		return mock.Factory(options...), nil

	case DeviceRTLSDR:
		return rtl.Factory(&c.RTL, c.SampleRate, c.CenterFrequency), nil

	default:
		return nil, fmt.Errorf("creating device: unknown type '%s'", c.Type)
	}
}
