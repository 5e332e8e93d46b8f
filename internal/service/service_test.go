package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/internal/fingerprint"
)

// setupTestService creates a test service with a temporary database
func setupTestService(t *testing.T) *LibraryService {
	t.Helper()

	service, err := NewLibraryService(filepath.Join(t.TempDir(), "library.sqlite3"), 10)
	if err != nil {
		t.Fatalf("Failed to create test service: %v", err)
	}
	service.workDir = t.TempDir()
	t.Cleanup(func() { service.Close() })
	return service
}

func melody(seed uint32, seconds float64) []float64 {
	rate := fingerprint.SampleRate
	out := make([]float64, int(seconds*float64(rate)))
	state := seed
	var f1, f2 float64
	for i := range out {
		if i%(rate/4) == 0 {
			state = state*1664525 + 1013904223
			f1 = 200 + float64(state>>20%3000)
			state = state*1664525 + 1013904223
			f2 = 200 + float64(state>>20%3000)
		}
		x := float64(i) / float64(rate)
		out[i] = 0.4*math.Sin(2*math.Pi*f1*x) + 0.3*math.Sin(2*math.Pi*f2*x)
	}
	return out
}

// writeTestWAV writes samples as a mono WAV at the fingerprint rate.
func writeTestWAV(t *testing.T, name string, samples []float64) string {
	t.Helper()
	clip, err := audio.NewClip(audio.EncodeS16LE(samples), audio.S16(fingerprint.SampleRate, 1))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := audio.WriteWAV(path, clip); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	return path
}

func TestNewLibraryService(t *testing.T) {
	service := setupTestService(t)

	if service.db == nil || service.log == nil || service.Backend() == nil {
		t.Fatal("service not fully initialized")
	}
}

func TestAddMatchDelete(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	target := melody(42, 15)
	targetPath := writeTestWAV(t, "target.wav", target)
	decoyPath := writeTestWAV(t, "decoy.wav", melody(1234, 15))

	songID, err := service.AddSong(ctx, targetPath, "Sandstorm", "Darude", "y6120QOlsfU")
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	if _, err := service.AddSong(ctx, decoyPath, "Decoy", "Nobody", ""); err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}

	songs, err := service.ListSongs(ctx)
	if err != nil || len(songs) != 2 {
		t.Fatalf("ListSongs = %d songs, %v", len(songs), err)
	}

	song, err := service.GetSongByID(ctx, songID)
	if err != nil {
		t.Fatal(err)
	}
	if song.Title != "Sandstorm" || song.YouTubeID != "y6120QOlsfU" || song.DurationMs != 15000 {
		t.Errorf("song = %+v", song)
	}

	start := 300 * fingerprint.HopSize
	excerpt := writeTestWAV(t, "excerpt.wav", target[start:start+5*fingerprint.SampleRate])
	results, err := service.MatchSong(ctx, excerpt)
	if err != nil {
		t.Fatalf("MatchSong failed: %v", err)
	}
	if len(results) == 0 || results[0].SongID != songID {
		t.Fatalf("top result = %+v, want %s", results, songID)
	}
	if results[0].Confidence <= 0 || results[0].Confidence > 100 {
		t.Errorf("confidence = %f", results[0].Confidence)
	}

	if err := service.DeleteSong(ctx, songID); err != nil {
		t.Fatalf("DeleteSong failed: %v", err)
	}
	if _, err := service.GetSongByID(ctx, songID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("deleted song still found: %v", err)
	}

	results, err = service.MatchSong(ctx, excerpt)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.SongID == songID {
			t.Error("deleted song still matches")
		}
	}
}

func TestAddSongInvalidFile(t *testing.T) {
	service := setupTestService(t)

	if _, err := service.AddSong(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), "T", "A", ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAddSongCancelledContext(t *testing.T) {
	service := setupTestService(t)
	path := writeTestWAV(t, "song.wav", melody(7, 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := service.AddSong(ctx, path, "T", "A", ""); err == nil {
		t.Error("expected error for cancelled context")
	}
}
