package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavPCMFormat = 1

// EncodeWAV wraps the clip's PCM in a WAV container.
func EncodeWAV(c *Clip) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil clip")
	}

	ws := &seekBuffer{}
	if err := writeWAV(ws, c); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteWAV writes the clip to path as a WAV file.
func WriteWAV(path string, c *Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}
	if err := writeWAV(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWAV(ws io.WriteSeeker, c *Clip) error {
	if c.Format.BitDepth != 16 {
		return ErrUnsupportedFormat
	}

	ch := c.Format.Channels
	ints := make([]int, 0, len(c.PCM)/2)
	for i := 0; i+1 < len(c.PCM); i += 2 {
		ints = append(ints, int(int16(uint16(c.PCM[i])|uint16(c.PCM[i+1])<<8)))
	}

	enc := wav.NewEncoder(ws, c.Format.SampleRate, c.Format.BitDepth, ch, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: ch, SampleRate: c.Format.SampleRate},
		Data:           ints,
		SourceBitDepth: c.Format.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// ReadWavAsFloat64 decodes a PCM WAV file to mono floats in [-1, 1] and
// returns them with the file's sample rate.
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	return DecodeWAV(f)
}

// DecodeWAV is ReadWavAsFloat64 over any seekable reader.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("wav file has no audio data")
	}

	channels := max(buf.Format.NumChannels, 1)
	depth := int(d.BitDepth)
	if depth == 0 {
		depth = buf.SourceBitDepth
	}
	if depth != 8 && depth != 16 && depth != 24 && depth != 32 {
		return nil, 0, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, depth)
	}
	scale := float64(int64(1) << (depth - 1))

	n := len(buf.Data) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			v := buf.Data[i*channels+ch]
			if depth == 8 {
				v -= 128
			}
			sum += float64(v) / scale
		}
		out[i] = sum / float64(channels)
	}

	return out, buf.Format.SampleRate, nil
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// patches chunk sizes after writing the data.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = int(abs)
	return abs, nil
}
