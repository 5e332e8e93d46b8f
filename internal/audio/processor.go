package audio

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/muzak/pkg/utils"
)

// DefaultConvertTimeout bounds an ffmpeg conversion when ctx has no deadline.
const DefaultConvertTimeout = 2 * time.Minute

type ConvertWAVConfig struct {
	SampleRate int // e.g. 11025, 22050, 44100
}

// ConvertToMonoWAV converts any audio file ffmpeg understands to a 16-bit
// mono PCM WAV in outputDir and returns its path.
func ConvertToMonoWAV(ctx context.Context, inputPath, outputDir string, cfg ConvertWAVConfig) (string, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 11025
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConvertTimeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".wav")
	tmpPath := outputPath + ".tmp.wav"
	defer utils.RemoveIfExists(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// LoadMono converts path to mono WAV at sampleRate inside workDir and
// returns the decoded samples. WAV input at the right rate is read directly.
func LoadMono(ctx context.Context, path, workDir string, sampleRate int) ([]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, sr, err := ReadWavAsFloat64(path)
		if err == nil && sr == sampleRate {
			return samples, nil
		}
		if err == nil && sr > sampleRate {
			return Downsample(samples, sr, sampleRate), nil
		}
	}

	wavPath, err := ConvertToMonoWAV(ctx, path, workDir, ConvertWAVConfig{SampleRate: sampleRate})
	if err != nil {
		return nil, err
	}
	defer utils.RemoveIfExists(wavPath)

	samples, _, err := ReadWavAsFloat64(wavPath)
	return samples, err
}
