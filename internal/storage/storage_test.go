package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/muzak/internal/fingerprint"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) *DBClient {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_muzak.sqlite3")
	client, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewDBClientCreatesNestedPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", customPath)
	}
}

func TestInsertAndCountDetections(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	n, err := client.CountDetections(ctx)
	if err != nil || n != 0 {
		t.Fatalf("empty count = %d, %v", n, err)
	}

	d := &Detection{Title: "Song X", Artist: "Artist Y", Amplitude: 0.12, Source: "Mic A"}
	if err := client.InsertDetection(ctx, d); err != nil {
		t.Fatalf("InsertDetection: %v", err)
	}
	if d.ID == 0 || d.UUID == "" {
		t.Errorf("ids not assigned: %+v", d)
	}
	if d.Timestamp.IsZero() {
		t.Error("timestamp not defaulted")
	}

	if err := client.InsertDetection(ctx, &Detection{Title: "Other", Artist: "Band"}); err != nil {
		t.Fatal(err)
	}

	n, err = client.CountDetections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestInsertDetectionRejectsEmptyTitle(t *testing.T) {
	client := setupTestDB(t)
	if err := client.InsertDetection(context.Background(), &Detection{Artist: "x"}); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestInsertDetectionStoresUnusualText(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	title := `Don't Stop "Believin'"; DROP TABLE detections; --`
	if err := client.InsertDetection(ctx, &Detection{Title: title, Artist: "Journey"}); err != nil {
		t.Fatal(err)
	}
	rows, err := client.RecentDetections(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Title != title {
		t.Errorf("round trip mismatch: %+v", rows)
	}
}

func TestRecentDetectionsNewestFirst(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	for i, title := range []string{"first", "second", "third"} {
		d := &Detection{Title: title, Artist: "a", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := client.InsertDetection(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := client.RecentDetections(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Title != "third" || rows[1].Title != "second" {
		t.Errorf("unexpected order: %+v", rows)
	}

	all, _ := client.RecentDetections(ctx, 0)
	if len(all) != 3 {
		t.Errorf("all = %d rows, want 3", len(all))
	}
}

func TestRegisterSongIdempotent(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	id1, err := client.RegisterSong(ctx, "Duplicate Song", "Duplicate Artist", "", 120000)
	if err != nil {
		t.Fatalf("Failed to register song first time: %v", err)
	}
	id2, err := client.RegisterSong(ctx, "Duplicate Song", "Duplicate Artist", "yt2", 120000)
	if err != nil {
		t.Fatalf("Failed to register song second time: %v", err)
	}
	if id1 != id2 {
		t.Errorf("Expected same song ID, got %s and %s", id1, id2)
	}

	song, err := client.GetSongByID(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if song.YouTubeID != "yt2" {
		t.Errorf("YouTubeID = %q, want yt2", song.YouTubeID)
	}

	songs, _ := client.ListSongs(ctx)
	if len(songs) != 1 {
		t.Errorf("Expected 1 song, found %d", len(songs))
	}
}

func TestFingerprintsStoreQueryDelete(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	id1, _ := client.RegisterSong(ctx, "Song 1", "Artist 1", "", 1000)
	id2, _ := client.RegisterSong(ctx, "Song 2", "Artist 2", "", 1000)

	const shared fingerprint.Address = 99999
	fp := map[fingerprint.Address][]fingerprint.Couple{
		shared: {
			{SongID: id1, AnchorTimeMs: 1000},
			{SongID: id1, AnchorTimeMs: 2000},
			{SongID: id2, AnchorTimeMs: 1500},
		},
		12345: {{SongID: id1, AnchorTimeMs: 3000}},
	}
	if err := client.StoreFingerprints(ctx, fp); err != nil {
		t.Fatalf("StoreFingerprints: %v", err)
	}

	got, err := client.GetCouplesByHashes(ctx, []fingerprint.Address{shared, 88888})
	if err != nil {
		t.Fatal(err)
	}
	if len(got[shared]) != 3 {
		t.Errorf("shared bucket = %d couples, want 3", len(got[shared]))
	}
	if _, ok := got[88888]; ok {
		t.Error("unknown hash should be absent")
	}

	if n, _ := client.GetFingerprintCount(ctx, id1); n != 3 {
		t.Errorf("song 1 fingerprints = %d, want 3", n)
	}

	if err := client.DeleteSongByID(ctx, id1); err != nil {
		t.Fatalf("DeleteSongByID: %v", err)
	}
	if n, _ := client.GetFingerprintCount(ctx, id1); n != 0 {
		t.Errorf("fingerprints left after delete: %d", n)
	}
	if n, _ := client.GetFingerprintCount(ctx, id2); n != 1 {
		t.Errorf("other song's fingerprints touched: %d", n)
	}
	if err := client.DeleteSongByID(ctx, id1); err == nil {
		t.Error("deleting a missing song should fail")
	}
}

func TestStoreFingerprintsLargeBatch(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	id, _ := client.RegisterSong(ctx, "Large Batch", "Batch Artist", "", 300000)

	fp := make(map[fingerprint.Address][]fingerprint.Couple)
	hashes := make([]fingerprint.Address, 0, 2500)
	for i := 1; i <= 2500; i++ {
		h := fingerprint.Address(i)
		fp[h] = []fingerprint.Couple{{SongID: id, AnchorTimeMs: uint32(i * 100)}}
		hashes = append(hashes, h)
	}
	if err := client.StoreFingerprints(ctx, fp); err != nil {
		t.Fatalf("StoreFingerprints: %v", err)
	}

	got, err := client.GetCouplesByHashes(ctx, hashes)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2500 {
		t.Errorf("buckets = %d, want 2500", len(got))
	}
}

func TestNilClientMethods(t *testing.T) {
	var c *DBClient
	ctx := context.Background()

	if err := c.InsertDetection(ctx, &Detection{Title: "x"}); !errors.Is(err, ErrNilClient) {
		t.Errorf("InsertDetection err = %v", err)
	}
	if _, err := c.CountDetections(ctx); !errors.Is(err, ErrNilClient) {
		t.Errorf("CountDetections err = %v", err)
	}
	if _, err := c.RegisterSong(ctx, "a", "b", "", 0); !errors.Is(err, ErrNilClient) {
		t.Errorf("RegisterSong err = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil client: %v", err)
	}
}

func TestCloseTwice(t *testing.T) {
	client, err := NewDBClientWithPath(filepath.Join(t.TempDir(), "close.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
