package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/internal/fingerprint"
	"github.com/himanishpuri/muzak/internal/recognize"
	"github.com/himanishpuri/muzak/internal/service"
)

func setupTestServer(t *testing.T) (*service.LibraryService, *httptest.Server) {
	t.Helper()

	svc, err := service.NewLibraryService(filepath.Join(t.TempDir(), "library.sqlite3"), 0)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	server := NewServer(svc, &ServerConfig{Port: 0, DBPath: "test", TempDir: t.TempDir()})
	ts := httptest.NewServer(server.routes())
	t.Cleanup(ts.Close)
	return svc, ts
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

func clipOf(t *testing.T, samples []float64) *audio.Clip {
	t.Helper()
	clip, err := audio.NewClip(audio.EncodeS16LE(samples), audio.S16(fingerprint.SampleRate, 1))
	if err != nil {
		t.Fatal(err)
	}
	return clip
}

func addSong(t *testing.T, svc *service.LibraryService, samples []float64, title, artist string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.wav")
	if err := audio.WriteWAV(path, clipOf(t, samples)); err != nil {
		t.Fatal(err)
	}
	id, err := svc.AddSong(context.Background(), path, title, artist, "")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}
	return id
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestSongLifecycle(t *testing.T) {
	svc, ts := setupTestServer(t)
	id := addSong(t, svc, melody(3, 6), "Song", "Band")

	resp, err := http.Get(ts.URL + "/api/songs")
	if err != nil {
		t.Fatal(err)
	}
	var list ListSongsResponse
	decode(t, resp, &list)
	if list.Count != 1 || list.Songs[0].ID != id || list.Songs[0].Title != "Song" {
		t.Fatalf("list = %+v", list)
	}

	resp, err = http.Get(ts.URL + "/api/songs/" + id)
	if err != nil {
		t.Fatal(err)
	}
	var song SongDTO
	decode(t, resp, &song)
	if song.Artist != "Band" || song.DurationMs != 6000 {
		t.Errorf("song = %+v", song)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/songs/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var del DeleteSongResponse
	decode(t, resp, &del)
	if resp.StatusCode != http.StatusOK || del.ID != id {
		t.Errorf("delete = %d %+v", resp.StatusCode, del)
	}

	resp, err = http.Get(ts.URL + "/api/songs/" + id)
	if err != nil {
		t.Fatal(err)
	}
	var e ErrorResponse
	decode(t, resp, &e)
	if resp.StatusCode != http.StatusNotFound || e.Code != http.StatusNotFound {
		t.Errorf("after delete = %d %+v", resp.StatusCode, e)
	}
}

func TestAddSongYouTubeValidation(t *testing.T) {
	_, ts := setupTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", "{", http.StatusBadRequest},
		{"missing url", `{"title":"x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/songs/youtube", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMatchRequiresAudio(t *testing.T) {
	_, ts := setupTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("sample_rate", "8000")
	w.Close()

	resp, err := http.Post(ts.URL+"/api/match", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/match")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRemoteBackendAgainstServer(t *testing.T) {
	svc, ts := setupTestServer(t)
	target := melody(42, 15)
	addSong(t, svc, target, "Sandstorm", "Darude")
	addSong(t, svc, melody(99, 15), "Decoy", "Nobody")

	backend := recognize.NewRemoteBackend(ts.URL, 5, nil)
	start := 300 * fingerprint.HopSize
	id, err := backend.Identify(context.Background(), clipOf(t, target[start:start+5*fingerprint.SampleRate]))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id == nil || id.Title != "Sandstorm" || id.Artist != "Darude" {
		t.Fatalf("identification = %+v", id)
	}
}
