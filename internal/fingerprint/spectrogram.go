// Package fingerprint turns audio into landmark hashes and matches them
// against a library by offset voting.
package fingerprint

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Tunables
const (
	WindowSize = 1024
	HopSize    = 256
	// SampleRate is the rate all fingerprinted audio is brought to.
	SampleRate = 11025
)

var ErrTooShort = errors.New("input shorter than window size")

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// FFTReal returns the complex spectrum of a real-valued frame.
func FFTReal(frame []float64) []complex128 {
	return fft.FFTReal(frame)
}

// MagnitudeSpectrum keeps the magnitudes of the positive frequencies.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes a time-major magnitude spectrogram: spectrogram[frame][bin].
func STFT(samples []float64, windowSize, hopSize int, window []float64) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if hopSize <= 0 {
		return nil, errors.New("hop size must be positive")
	}
	if len(samples) < windowSize {
		return nil, ErrTooShort
	}

	frames := (len(samples)-windowSize)/hopSize + 1
	spectrogram := make([][]float64, 0, frames)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(FFTReal(frame)))
	}
	return spectrogram, nil
}

// Spectrogram runs the STFT with the package window and hop sizes.
func Spectrogram(samples []float64) ([][]float64, error) {
	return STFT(samples, WindowSize, HopSize, Hamming(WindowSize))
}

// Peaks is the full front end: spectrogram followed by peak picking.
func Peaks(samples []float64, sampleRate int) ([]Peak, error) {
	spec, err := Spectrogram(samples)
	if err != nil {
		return nil, err
	}
	return ExtractPeaks(spec, sampleRate), nil
}
