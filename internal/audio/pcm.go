// Package audio holds the PCM, WAV and conversion helpers shared by capture,
// fingerprinting and recognition.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// Format describes raw PCM audio.
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

// S16 returns a signed 16-bit little-endian format.
func S16(sampleRate, channels int) Format {
	return Format{SampleRate: sampleRate, BitDepth: 16, Channels: channels}
}

// BytesPerFrame is the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Clip is one captured segment. PCM is interleaved S16LE.
type Clip struct {
	PCM       []byte
	Format    Format
	Duration  time.Duration
	Amplitude float64
}

var ErrUnsupportedFormat = errors.New("unsupported PCM format")

// NewClip wraps raw S16LE PCM and computes its duration and RMS amplitude.
func NewClip(pcm []byte, format Format) (*Clip, error) {
	if format.BitDepth != 16 || format.Channels < 1 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedFormat
	}

	frames := len(pcm) / format.BytesPerFrame()
	return &Clip{
		PCM:       pcm,
		Format:    format,
		Duration:  time.Duration(frames) * time.Second / time.Duration(format.SampleRate),
		Amplitude: RMS(DecodeS16LE(pcm, 1)),
	}, nil
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	return len(c.PCM) / c.Format.BytesPerFrame()
}

// Mono returns the clip as mono float samples in [-1, 1].
func (c *Clip) Mono() []float64 {
	return DecodeS16LE(c.PCM, c.Format.Channels)
}

// DecodeS16LE converts interleaved S16LE PCM to mono floats in [-1, 1],
// averaging channels. A trailing partial frame is ignored.
func DecodeS16LE(pcm []byte, channels int) []float64 {
	channels = max(channels, 1)
	frameBytes := 2 * channels
	n := len(pcm) / frameBytes
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		var sum float64
		base := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(pcm[base+2*ch:]))
			sum += float64(s) / 32768.0
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// EncodeS16LE converts float samples in [-1, 1] to S16LE PCM, clipping
// out-of-range values.
func EncodeS16LE(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(s * 32767)
		v = math.Max(-32768, math.Min(32767, v))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// RMS returns the root mean square of samples, 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Downsample reduces the sample rate by averaging blocks of samples. The
// target rate must not exceed the source rate.
func Downsample(samples []float64, from, to int) []float64 {
	if to <= 0 || from <= 0 || to >= from {
		return samples
	}

	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := int(float64(i) * ratio)
		end := min(int(float64(i+1)*ratio), len(samples))
		var sum float64
		for _, s := range samples[start:end] {
			sum += s
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
