package audio

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func sine(freq float64, sampleRate int, seconds, amp float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestNewClipAmplitudeAndDuration(t *testing.T) {
	pcm := EncodeS16LE(sine(440, 8000, 2, 0.5))
	clip, err := NewClip(pcm, S16(8000, 1))
	if err != nil {
		t.Fatalf("NewClip: %v", err)
	}

	if clip.Duration != 2*time.Second {
		t.Errorf("duration = %v, want 2s", clip.Duration)
	}
	// RMS of a sine is amp/sqrt(2).
	want := 0.5 / math.Sqrt2
	if math.Abs(clip.Amplitude-want) > 0.01 {
		t.Errorf("amplitude = %f, want ~%f", clip.Amplitude, want)
	}
}

func TestSilentClipHasZeroAmplitude(t *testing.T) {
	clip, err := NewClip(make([]byte, 16000), S16(8000, 1))
	if err != nil {
		t.Fatal(err)
	}
	if clip.Amplitude != 0 {
		t.Errorf("amplitude = %f, want 0", clip.Amplitude)
	}
}

func TestNewClipRejectsUnsupportedFormat(t *testing.T) {
	if _, err := NewClip(nil, Format{SampleRate: 8000, BitDepth: 24, Channels: 1}); err == nil {
		t.Error("expected error for 24-bit clip")
	}
}

func TestDecodeS16LEStereoAverages(t *testing.T) {
	pcm := EncodeS16LE([]float64{0.5, -0.5, 1, 0})
	mono := DecodeS16LE(pcm, 2)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if math.Abs(mono[0]) > 1e-4 {
		t.Errorf("mono[0] = %f, want 0", mono[0])
	}
	if math.Abs(mono[1]-0.5) > 1e-3 {
		t.Errorf("mono[1] = %f, want 0.5", mono[1])
	}
}

func TestEncodeS16LEClips(t *testing.T) {
	mono := DecodeS16LE(EncodeS16LE([]float64{2, -2}), 1)
	if mono[0] < 0.99 || mono[1] > -0.99 {
		t.Errorf("values not clipped to full scale: %v", mono)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("RMS(nil) should be 0")
	}
	if got := RMS([]float64{1, -1, 1, -1}); got != 1 {
		t.Errorf("RMS = %f, want 1", got)
	}
}

func TestDownsample(t *testing.T) {
	in := make([]float64, 44100)
	for i := range in {
		in[i] = 0.25
	}
	out := Downsample(in, 44100, 11025)
	if len(out) != 11025 {
		t.Fatalf("len = %d, want 11025", len(out))
	}
	if math.Abs(out[100]-0.25) > 1e-9 {
		t.Errorf("block average = %f", out[100])
	}
	if got := Downsample(in, 11025, 44100); len(got) != len(in) {
		t.Error("upsampling should return input unchanged")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	src := sine(1000, 11025, 1, 0.3)
	clip, err := NewClip(EncodeS16LE(src), S16(11025, 1))
	if err != nil {
		t.Fatal(err)
	}

	data, err := EncodeWAV(clip)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("missing RIFF header")
	}

	samples, sr, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if sr != 11025 {
		t.Errorf("sample rate = %d", sr)
	}
	if len(samples) != len(src) {
		t.Fatalf("len = %d, want %d", len(samples), len(src))
	}
	if math.Abs(samples[200]-src[200]) > 1e-3 {
		t.Errorf("sample mismatch: %f vs %f", samples[200], src[200])
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := WriteWAV(path, clip); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	fromFile, _, err := ReadWavAsFloat64(path)
	if err != nil {
		t.Fatalf("ReadWavAsFloat64: %v", err)
	}
	if len(fromFile) != len(src) {
		t.Errorf("file samples = %d, want %d", len(fromFile), len(src))
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not a wav file"))); err == nil {
		t.Error("expected error")
	}
}

func TestYTMetadataFallbacks(t *testing.T) {
	m := YTMetadata{Title: "Official Video", Track: "Song", Channel: "Band VEVO"}
	if m.SongTitle() != "Song" {
		t.Errorf("title = %q", m.SongTitle())
	}
	if m.SongArtist() != "Band VEVO" {
		t.Errorf("artist = %q", m.SongArtist())
	}
	if (YTMetadata{}).SongArtist() != "Unknown Artist" {
		t.Error("expected unknown artist fallback")
	}
}
