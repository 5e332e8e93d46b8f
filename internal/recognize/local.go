package recognize

import (
	"context"
	"fmt"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/internal/fingerprint"
	"github.com/himanishpuri/muzak/internal/storage"
)

// Library is the fingerprint store used by LocalBackend.
type Library interface {
	RegisterSong(ctx context.Context, title, artist, youtubeID string, durationMs int) (string, error)
	StoreFingerprints(ctx context.Context, fp map[fingerprint.Address][]fingerprint.Couple) error
	GetCouplesByHashes(ctx context.Context, hashes []fingerprint.Address) (map[fingerprint.Address][]fingerprint.Couple, error)
	GetSongByID(ctx context.Context, songID string) (*storage.Song, error)
	GetFingerprintCount(ctx context.Context, songID string) (int, error)
}

// Candidate is one ranked local match.
type Candidate struct {
	SongID     string
	Title      string
	Artist     string
	YouTubeID  string
	Score      int
	OffsetMs   int32
	Confidence float64
}

// LocalBackend matches clips against fingerprints stored in sqlite.
type LocalBackend struct {
	lib           Library
	minConfidence float64
	log           Logger
}

// Logger is the subset of the logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// NewLocalBackend matches against lib. Matches scoring below minConfidence
// are reported as no match.
func NewLocalBackend(lib Library, minConfidence float64, log Logger) *LocalBackend {
	return &LocalBackend{lib: lib, minConfidence: minConfidence, log: log}
}

func (l *LocalBackend) Identify(ctx context.Context, clip *audio.Clip) (*Identification, error) {
	cands, err := l.Match(ctx, clip.Mono(), clip.Format.SampleRate)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 || cands[0].Confidence < l.minConfidence {
		return nil, nil
	}
	best := cands[0]
	return &Identification{Title: best.Title, Artist: best.Artist, Confidence: best.Confidence}, nil
}

// Match ranks library songs against mono samples, best first.
func (l *LocalBackend) Match(ctx context.Context, samples []float64, sampleRate int) ([]Candidate, error) {
	samples = audio.Downsample(samples, sampleRate, fingerprint.SampleRate)
	peaks, err := fingerprint.Peaks(samples, fingerprint.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting sample: %w", err)
	}

	hashes := fingerprint.Hashes(peaks)
	if len(hashes) == 0 {
		return nil, nil
	}

	db, err := l.lib.GetCouplesByHashes(ctx, hashes)
	if err != nil {
		return nil, err
	}
	l.log.Debugf("Retrieved couples for %d/%d hashes", len(db), len(hashes))

	matches := fingerprint.QueryFingerprints(peaks, db)
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		song, err := l.lib.GetSongByID(ctx, m.SongID)
		if err != nil {
			l.log.Warnf("Failed to get song %s: %v", m.SongID, err)
			continue
		}
		libCount, err := l.lib.GetFingerprintCount(ctx, m.SongID)
		if err != nil {
			libCount = len(hashes)
		}
		out = append(out, Candidate{
			SongID:     song.ID,
			Title:      song.Title,
			Artist:     song.Artist,
			YouTubeID:  song.YouTubeID,
			Score:      m.Count,
			OffsetMs:   m.OffsetMs,
			Confidence: fingerprint.Confidence(m.Count, len(hashes), libCount),
		})
	}
	return out, nil
}

// AddSong fingerprints mono samples and stores them under title/artist.
// It returns the song ID and the number of hashes stored.
func (l *LocalBackend) AddSong(ctx context.Context, samples []float64, sampleRate int, title, artist, youtubeID string) (string, int, error) {
	samples = audio.Downsample(samples, sampleRate, fingerprint.SampleRate)
	peaks, err := fingerprint.Peaks(samples, fingerprint.SampleRate)
	if err != nil {
		return "", 0, fmt.Errorf("fingerprinting song: %w", err)
	}

	durationMs := len(samples) * 1000 / fingerprint.SampleRate
	songID, err := l.lib.RegisterSong(ctx, title, artist, youtubeID, durationMs)
	if err != nil {
		return "", 0, err
	}

	if n, err := l.lib.GetFingerprintCount(ctx, songID); err == nil && n > 0 {
		return songID, n, nil
	}

	fp := fingerprint.Fingerprint(peaks, songID)
	if err := l.lib.StoreFingerprints(ctx, fp); err != nil {
		return "", 0, err
	}

	total := 0
	for _, cs := range fp {
		total += len(cs)
	}
	return songID, total, nil
}
