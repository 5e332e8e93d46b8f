package fingerprint

import (
	"math"
	"slices"
)

// Couple is one stored occurrence of a hash in a library song.
type Couple struct {
	SongID       string
	AnchorTimeMs uint32
}

// Match is a candidate song with its best aligned offset.
type Match struct {
	SongID   string
	OffsetMs int32 // library anchor time minus query anchor time
	Count    int
}

func sortByTime(peaks []Peak) []Peak {
	sorted := slices.Clone(peaks)
	slices.SortStableFunc(sorted, func(a, b Peak) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return sorted
}

// Fingerprint builds the hash table for a library song.
func Fingerprint(peaks []Peak, songID string) map[Address][]Couple {
	fp := make(map[Address][]Couple)
	pairs(sortByTime(peaks), func(addr Address, anchor Peak) {
		fp[addr] = append(fp[addr], Couple{SongID: songID, AnchorTimeMs: anchorMs(anchor)})
	})
	return fp
}

// Hashes returns the distinct addresses a query produces, in first-seen order.
func Hashes(peaks []Peak) []Address {
	seen := make(map[Address]bool)
	var out []Address
	pairs(sortByTime(peaks), func(addr Address, _ Peak) {
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	})
	return out
}

// QueryFingerprints votes every (song, offset) pair the query hashes hit in
// db and returns the best offset per song, strongest first.
func QueryFingerprints(queryPeaks []Peak, db map[Address][]Couple) []Match {
	votes := make(map[string]map[int32]int)

	pairs(sortByTime(queryPeaks), func(addr Address, anchor Peak) {
		qt := int32(anchorMs(anchor))
		for _, c := range db[addr] {
			m, ok := votes[c.SongID]
			if !ok {
				m = make(map[int32]int)
				votes[c.SongID] = m
			}
			m[int32(c.AnchorTimeMs)-qt]++
		}
	})

	matches := make([]Match, 0, len(votes))
	for songID, offsets := range votes {
		best := Match{SongID: songID}
		for off, n := range offsets {
			if n > best.Count || (n == best.Count && off < best.OffsetMs) {
				best.Count, best.OffsetMs = n, off
			}
		}
		matches = append(matches, best)
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if a.SongID < b.SongID {
			return -1
		}
		return 1
	})
	return matches
}

// Confidence scores an aligned vote count on a 0-100 scale against the
// smaller of the query and library hash counts. A logistic curve centred on
// a 15% overlap is boosted above 30% and damped below five votes.
func Confidence(matchCount, queryCount, libraryCount int) float64 {
	if matchCount <= 0 || queryCount <= 0 || libraryCount <= 0 {
		return 0
	}

	const (
		steepness = 20.0
		midpoint  = 0.15
	)

	ratio := float64(matchCount) / float64(min(queryCount, libraryCount))
	c := 100 / (1 + math.Exp(-steepness*(ratio-midpoint)))

	if ratio > 0.30 {
		c = math.Min(100, c+(ratio-0.30)*50)
	}
	if matchCount < 5 {
		c *= float64(matchCount) / 5
	}
	return c
}
