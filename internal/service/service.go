// Package service manages the local fingerprint library: ingesting songs
// from files or YouTube, matching files, listing and deleting songs.
package service

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/internal/fingerprint"
	"github.com/himanishpuri/muzak/internal/recognize"
	"github.com/himanishpuri/muzak/internal/storage"
	"github.com/himanishpuri/muzak/pkg/logger"
	"github.com/himanishpuri/muzak/pkg/utils"
)

type LibraryService struct {
	db      *storage.DBClient
	local   *recognize.LocalBackend
	log     *logger.Logger
	workDir string
}

// NewLibraryService opens the database at dbPath. Matches below
// minConfidence are still returned by MatchSong; the threshold only applies
// when the library backs the monitor.
func NewLibraryService(dbPath string, minConfidence float64) (*LibraryService, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger().WithPrefix("[library]")
	return &LibraryService{
		db:      db,
		local:   recognize.NewLocalBackend(db, minConfidence, log),
		log:     log,
		workDir: os.TempDir(),
	}, nil
}

// Backend exposes the library as a recognition backend.
func (s *LibraryService) Backend() *recognize.LocalBackend {
	return s.local
}

// DB returns the underlying client.
func (s *LibraryService) DB() *storage.DBClient {
	return s.db
}

// AddSong fingerprints an audio file and stores it.
func (s *LibraryService) AddSong(ctx context.Context, audioPath, title, artist, youtubeID string) (string, error) {
	s.log.Infof("Processing song: %s by %s", title, artist)

	samples, err := audio.LoadMono(ctx, audioPath, s.workDir, fingerprint.SampleRate)
	if err != nil {
		return "", fmt.Errorf("audio conversion failed: %w", err)
	}

	songID, hashes, err := s.local.AddSong(ctx, samples, fingerprint.SampleRate, title, artist, youtubeID)
	if err != nil {
		return "", err
	}

	s.log.Infof("Stored song %s with %d hashes", songID, hashes)
	return songID, nil
}

// AddYouTube downloads a video's audio and adds it. Blank title or artist
// fall back to the video metadata.
func (s *LibraryService) AddYouTube(ctx context.Context, url, title, artist string) (string, error) {
	if !utils.IsYouTubeURL(url) {
		return "", fmt.Errorf("not a YouTube URL: %s", url)
	}

	dir, err := os.MkdirTemp(s.workDir, "muzak-yt-")
	if err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	defer os.RemoveAll(dir)

	s.log.Infof("Downloading audio from %s", url)
	path, meta, err := audio.DownloadYouTubeAudio(ctx, url, dir)
	if err != nil {
		return "", err
	}

	youtubeID, err := utils.ExtractYouTubeID(url)
	if err != nil {
		s.log.Warnf("Failed to extract YouTube ID: %v", err)
		youtubeID = meta.ID
	}
	return s.AddSong(ctx, path, cmp.Or(title, meta.SongTitle()), cmp.Or(artist, meta.SongArtist()), youtubeID)
}

type MatchResult struct {
	SongID     string
	Title      string
	Artist     string
	YouTubeID  string
	Score      int
	OffsetMs   int32
	Confidence float64
}

// MatchSong ranks library songs against an audio file, best first.
func (s *LibraryService) MatchSong(ctx context.Context, audioPath string) ([]MatchResult, error) {
	s.log.Infof("Matching audio: %s", audioPath)

	samples, err := audio.LoadMono(ctx, audioPath, s.workDir, fingerprint.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}

	cands, err := s.local.Match(ctx, samples, fingerprint.SampleRate)
	if err != nil {
		return nil, err
	}

	results := make([]MatchResult, len(cands))
	for i, c := range cands {
		results[i] = MatchResult{
			SongID:     c.SongID,
			Title:      c.Title,
			Artist:     c.Artist,
			YouTubeID:  c.YouTubeID,
			Score:      c.Score,
			OffsetMs:   c.OffsetMs,
			Confidence: c.Confidence,
		}
	}
	s.log.Infof("Found %d candidate matches", len(results))
	return results, nil
}

func (s *LibraryService) GetSongByID(ctx context.Context, songID string) (*storage.Song, error) {
	return s.db.GetSongByID(ctx, songID)
}

func (s *LibraryService) ListSongs(ctx context.Context) ([]storage.Song, error) {
	return s.db.ListSongs(ctx)
}

// DeleteSong deletes a song and its fingerprints by ID
func (s *LibraryService) DeleteSong(ctx context.Context, songID string) error {
	return s.db.DeleteSongByID(ctx, songID)
}

func (s *LibraryService) Close() error {
	return s.db.Close()
}
