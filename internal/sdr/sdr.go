package sdr

const (
	// MaxReadSamples is the largest number of samples a single ReadSamples call may request
	MaxReadSamples = 1 << 24

	// DefaultSampleRate is the sample rate in Hz the telescope is operated at
	DefaultSampleRate = 2.048e6

	// DefaultCenterFrequency is the center frequency in Hz, tuned near the hydrogen line
	DefaultCenterFrequency = 1420.4e6

	// HydrogenLineFrequency is the rest frequency of the neutral hydrogen 21cm line in Hz
	HydrogenLineFrequency = 1420.405751768e6
)

// Device is the capability set shared by every receiver backend. The real hardware
// and the synthetic generator both implement it, and callers never branch on which
// one they hold.
//
// A Device is not safe for concurrent use; callers serialize access.
type Device interface {
	// SampleRate returns the configured sample rate in Hz.
	SampleRate() float64

	// SetSampleRate sets the sample rate in Hz. The rate must be positive and finite.
	SetSampleRate(hz float64) error

	// CenterFrequency returns the configured center frequency in Hz.
	CenterFrequency() float64

	// SetCenterFrequency sets the center frequency in Hz. The frequency must be positive and finite.
	SetCenterFrequency(hz float64) error

	// Gain returns the configured gain, either automatic or a numeric value.
	Gain() Gain

	// SetGain sets the receiver gain.
	SetGain(g Gain) error

	// ReadSamples reads exactly n IQ samples. A read either returns n samples or fails,
	// partial blocks are never returned.
	ReadSamples(n int) ([]complex128, error)

	// Close releases the underlying resources. It is safe to call on a handle that was
	// never used and further calls are no-ops.
	Close() error
}

// Factory creates a ready to use Device. Operations acquire a device from the factory
// and close it before returning.
type Factory func() (Device, error)
