package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/pkg/utils"
)

const (
	spectrogramWidth  = 2048
	spectrogramHeight = 512
)

func handleSpectrogram(args []string) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fmt.Println("Usage: muzak spectrogram <wav_file> [-o <out.png>]")
		os.Exit(1)
	}
	wavPath := args[0]

	specCmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	out := specCmd.String("o", "", "Output PNG (default: <wav_file>.png)")
	specCmd.Parse(args[1:])
	if *out == "" {
		*out = strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".png"
	}

	samples, sampleRate, err := audio.ReadWavAsFloat64(wavPath)
	if err != nil {
		fail("read WAV", err)
	}
	if len(samples) == 0 {
		fail("read WAV", fmt.Errorf("no samples in %s", wavPath))
	}
	fmt.Printf("Read %d samples at %d Hz\n", len(samples), sampleRate)

	if err := writeSpectrogram(*out, samples, sampleRate); err != nil {
		fail("write spectrogram", err)
	}
	fmt.Printf("✅ Saved spectrogram to %s\n", *out)
}

// writeSpectrogram renders a linear-magnitude FFT spectrogram on black.
func writeSpectrogram(path string, samples []float64, sampleRate int) error {
	img := spectrogram.NewImage128(image.Rect(0, 0, spectrogramWidth, spectrogramHeight))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(spectrogramHeight), // bins
		false,                     // hamming window
		false,                     // FFT, not DFT
		true,                      // magnitude
		false,                     // linear scale
	)

	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	return spectrogram.SavePng(img, path)
}
