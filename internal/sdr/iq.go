package sdr

import (
	"fmt"
	"math"
)

// ValidateSampleCount checks a requested read size against the single read limit.
// Every backend calls it before touching the receiver so they reject requests identically.
func ValidateSampleCount(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: number of samples to read must be > 0: %d given", ErrInvalidArgument, n)
	}
	if n > MaxReadSamples {
		return fmt.Errorf("%w: could not read %d samples, at most %d samples per read", ErrResourceExhausted, n, MaxReadSamples)
	}
	return nil
}

// ValidateFrequency checks that a sample rate or center frequency is positive and finite
func ValidateFrequency(name string, hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
		return fmt.Errorf("%w: %s must be positive and finite: %g given", ErrInvalidArgument, name, hz)
	}
	return nil
}

// DecodeU8 converts interleaved unsigned 8-bit I/Q bytes, as delivered by RTL2832U
// based receivers, into complex samples scaled to [-1, 1]. The dst slice must hold
// at least len(buf)/2 samples. It returns the number of decoded samples.
func DecodeU8(dst []complex128, buf []byte) int {
	n := min(len(buf)/2, len(dst))
	for i := 0; i < n; i++ {
		re := float64(buf[2*i])/(255.0/2.0) - 1.0
		im := float64(buf[2*i+1])/(255.0/2.0) - 1.0
		dst[i] = complex(re, im)
	}
	return n
}

// NearestGain returns the supported gain closest to want. Ties resolve to the lower
// gain. It returns false when supported is empty.
func NearestGain(supported []float64, want float64) (float64, bool) {
	if len(supported) == 0 {
		return 0, false
	}

	best := supported[0]
	for _, g := range supported[1:] {
		d, bd := math.Abs(g-want), math.Abs(best-want)
		if d < bd || (d == bd && g < best) {
			best = g
		}
	}
	return best, true
}
