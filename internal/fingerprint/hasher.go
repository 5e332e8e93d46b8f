package fingerprint

import "math"

const (
	// MaxFreqBits must hold WindowSize/2 bins.
	MaxFreqBits = 9
	// MaxDeltaBits holds pair deltas up to 16383 ms.
	MaxDeltaBits = 14

	// FanOut is how many later peaks each anchor pairs with.
	FanOut = 6

	MinDeltaMs = 10
	MaxDeltaMs = 15000
)

// Address is a packed landmark hash:
// [ anchor bin (9) | target bin (9) | delta ms (14) ].
type Address uint32

// createAddress packs an anchor/target pair. ok is false when the pair
// falls outside the representable or allowed range.
func createAddress(anchor, target Peak) (Address, bool) {
	deltaMs := math.Round((target.Time - anchor.Time) * 1000)
	if deltaMs < MinDeltaMs || deltaMs > MaxDeltaMs {
		return 0, false
	}

	const freqMask = 1<<MaxFreqBits - 1
	const deltaMask = 1<<MaxDeltaBits - 1
	if anchor.FreqIdx < 0 || anchor.FreqIdx > freqMask || target.FreqIdx < 0 || target.FreqIdx > freqMask {
		return 0, false
	}
	if int(deltaMs) > deltaMask {
		return 0, false
	}

	return Address(uint32(anchor.FreqIdx)<<(MaxDeltaBits+MaxFreqBits) |
		uint32(target.FreqIdx)<<MaxDeltaBits |
		uint32(deltaMs)), true
}

// Unpack splits an address into its parts.
func (a Address) Unpack() (anchorBin, targetBin, deltaMs int) {
	const freqMask = 1<<MaxFreqBits - 1
	const deltaMask = 1<<MaxDeltaBits - 1
	return int(a>>(MaxDeltaBits+MaxFreqBits)) & freqMask,
		int(a>>MaxDeltaBits) & freqMask,
		int(a) & deltaMask
}

func anchorMs(p Peak) uint32 {
	return uint32(math.Round(p.Time * 1000))
}

// pairs calls fn for every anchor/target pair under the fan-out policy.
// peaks must be sorted by time.
func pairs(peaks []Peak, fn func(addr Address, anchor Peak)) {
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			addr, ok := createAddress(anchor, peaks[j])
			if !ok {
				continue
			}
			fn(addr, anchor)
			paired++
		}
	}
}
