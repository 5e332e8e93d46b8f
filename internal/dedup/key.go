package dedup

import (
	"strings"
	"unicode"
)

// KeyOptions sets how many leading words of title and artist form the key.
// A zero count leaves that field out of the key.
type KeyOptions struct {
	TitleWords  int
	ArtistWords int
}

var (
	// LooseKey matches on the first word of title and artist.
	LooseKey = KeyOptions{TitleWords: 1, ArtistWords: 1}
	// StrictKey matches on the first three title words only.
	StrictKey = KeyOptions{TitleWords: 3}
)

// qualifierMarks start the release qualifier part of a title, as in
// "Song (Remix)", "Song [Live]", "Song, Pt. 1" or "Song - Radio Edit".
var qualifierMarks = []string{"(", "[", ",", " - "}

// NormalizeKey reduces a title/artist pair to the key used to recognize
// the same song across detections.
func NormalizeKey(title, artist string, opts KeyOptions) string {
	t := leadingWords(cutQualifier(title), opts.TitleWords)
	a := leadingWords(artist, opts.ArtistWords)
	return t + "|" + a
}

func cutQualifier(title string) string {
	cut := len(title)
	for _, mark := range qualifierMarks {
		if i := strings.Index(title, mark); i > 0 && i < cut {
			cut = i
		}
	}
	return title[:cut]
}

// Words lowercases s, drops punctuation and splits on whitespace.
func Words(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

func leadingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := Words(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
