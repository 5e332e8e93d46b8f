package fingerprint

import (
	"math"
	"slices"
)

// Peak is a spectral landmark, in both index and physical units.
type Peak struct {
	TimeIdx int     // frame index in the spectrogram
	FreqIdx int     // frequency bin index
	Time    float64 // seconds
	Freq    float64 // Hz
	MagDB   float64
}

const (
	freqNeighbour = 3 // +/- bins
	timeNeighbour = 1 // +/- frames
	minDbAboveAvg = 3.0
	dbFloor       = 1e-10
)

type band struct{ lo, hi int }

// logBands splits nBins into [0,10) followed by octave-wide bands.
func logBands(nBins int) []band {
	bands := []band{{0, min(10, nBins)}}
	for lo := 10; lo < nBins; lo *= 2 {
		hi := min(lo*2, nBins)
		bands = append(bands, band{lo, hi})
	}
	return bands
}

func toDB(mag float64) float64 {
	return 20 * math.Log10(mag+dbFloor)
}

// ExtractPeaks picks constellation points from a linear magnitude
// spectrogram: the strongest bin of each log-spaced band, kept when it is a
// local maximum and sufficiently above the frame's band average. Peaks come
// back ordered by time, then frequency.
func ExtractPeaks(spectrogram [][]float64, sampleRate int) []Peak {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return nil
	}

	nBins := len(spectrogram[0])
	bands := logBands(nBins)
	freqRes := float64(sampleRate) / float64(WindowSize)
	frameTime := float64(HopSize) / float64(sampleRate)

	peaks := make([]Peak, 0, len(spectrogram)*2)
	candidates := make([]int, len(bands))

	for t, frame := range spectrogram {
		var sumDB float64
		for i, b := range bands {
			best := b.lo
			for bin := b.lo; bin < b.hi; bin++ {
				if frame[bin] > frame[best] {
					best = bin
				}
			}
			candidates[i] = best
			sumDB += toDB(frame[best])
		}
		threshold := sumDB/float64(len(bands)) + minDbAboveAvg

		for _, bin := range candidates {
			mag := frame[bin]
			if mag <= 0 || toDB(mag) < threshold || !isLocalMax(spectrogram, t, bin) {
				continue
			}
			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: bin,
				Time:    float64(t) * frameTime,
				Freq:    float64(bin) * freqRes,
				MagDB:   toDB(mag),
			})
		}
	}

	slices.SortFunc(peaks, func(a, b Peak) int {
		if a.TimeIdx != b.TimeIdx {
			return a.TimeIdx - b.TimeIdx
		}
		return a.FreqIdx - b.FreqIdx
	})
	return peaks
}

func isLocalMax(spec [][]float64, t, bin int) bool {
	mag := spec[t][bin]
	for tt := max(t-timeNeighbour, 0); tt <= min(t+timeNeighbour, len(spec)-1); tt++ {
		row := spec[tt]
		for f := max(bin-freqNeighbour, 0); f <= min(bin+freqNeighbour, len(row)-1); f++ {
			if (tt != t || f != bin) && row[f] > mag {
				return false
			}
		}
	}
	return true
}
