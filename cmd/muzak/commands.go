package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/internal/capture"
	"github.com/himanishpuri/muzak/internal/config"
	"github.com/himanishpuri/muzak/internal/device"
	"github.com/himanishpuri/muzak/internal/recognize"
	"github.com/himanishpuri/muzak/internal/service"
	"github.com/himanishpuri/muzak/internal/storage"
	"github.com/himanishpuri/muzak/pkg/logger"
)

func openStore(cfg *config.Config) *storage.DBClient {
	db, err := storage.NewDBClientWithPath(cfg.Storage.DBPath)
	if err != nil {
		fail("open database", err)
	}
	return db
}

func handleCount() {
	cfg := loadConfig()
	db := openStore(cfg)
	defer db.Close()

	n, err := db.CountDetections(context.Background())
	if err != nil {
		fail("count detections", err)
	}
	fmt.Println(n)
}

// historyEntry is the record shape consumed by the reporting server.
type historyEntry struct {
	Timestamp string  `json:"timestamp"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Amplitude float64 `json:"amplitude"`
}

func handleHistory(args []string) {
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := historyCmd.Int("n", 20, "Number of detections to show (0 for all)")
	asJSON := historyCmd.Bool("json", false, "Print a JSON array")
	historyCmd.Parse(args)

	cfg := loadConfig()
	db := openStore(cfg)
	defer db.Close()

	detections, err := db.RecentDetections(context.Background(), *limit)
	if err != nil {
		fail("read history", err)
	}

	if *asJSON {
		entries := make([]historyEntry, len(detections))
		for i, d := range detections {
			entries[i] = historyEntry{
				Timestamp: d.Timestamp.Format("2006-01-02 15:04:05"),
				Title:     d.Title,
				Artist:    d.Artist,
				Amplitude: d.Amplitude,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fail("encode history", err)
		}
		return
	}

	if len(detections) == 0 {
		fmt.Println("📭 No detections yet")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tARTIST\tTITLE\tAMPLITUDE")
	for _, d := range detections {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\n", d.Timestamp.Format("2006-01-02 15:04:05"), d.Artist, d.Title, d.Amplitude)
	}
	w.Flush()
}

func handleDevices() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	devices, err := capture.NewCommand(cfg.Capture.SampleRate, cfg.Capture.Channels).Devices(ctx)
	if errors.Is(err, capture.ErrNoSources) {
		fmt.Println("📭 No capture sources found")
		return
	}
	if err != nil {
		fail("list capture sources", err)
	}

	reg := device.NewRegistry(cfg.Capture.Sources)
	names := make([]string, len(devices))
	fmt.Printf("🎙️ Found %d capture source(s):\n\n", len(devices))
	for i, d := range devices {
		names[i] = d.Name
		rank := "-"
		if r := reg.Rank(d.Name); r >= 0 {
			rank = fmt.Sprintf("%d", r)
		}
		fmt.Printf("%d. %s\n   ID: %s | Preference: %s\n", i+1, d.Name, d.ID, rank)
	}

	if src, ok := device.Resolve(cfg.Capture.Sources, names, -1); ok {
		fmt.Printf("\n✅ Monitor would start with %q\n", src.Name)
	}
}

func handleMatch(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: muzak match <audio_file>")
		os.Exit(1)
	}
	audioPath := args[0]
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if cfg.Recognition.Backend == config.BackendLocal {
		matchLocal(ctx, cfg, audioPath)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🔍 Analyzing audio file...")
	samples, err := audio.LoadMono(ctx, audioPath, os.TempDir(), cfg.Capture.SampleRate)
	if err != nil {
		fail("read audio", err)
	}
	clip, err := audio.NewClip(audio.EncodeS16LE(samples), audio.S16(cfg.Capture.SampleRate, 1))
	if err != nil {
		fail("encode audio", err)
	}

	backend := recognize.NewRemoteBackend(cfg.Recognition.URL, cfg.Recognition.MinConfidence, nil)
	res := recognize.NewAdapter(backend, config.Seconds(cfg.Recognition.TimeoutSeconds)).Recognize(ctx, clip)
	log.Infof("Recognition result: %s", res.Kind)

	switch res.Kind {
	case recognize.Match:
		fmt.Printf("\n✅ \"%s\" by %s (confidence %.1f%%)\n", res.Title, res.Artist, res.Confidence)
	case recognize.NoMatch:
		fmt.Println("\n❌ No match")
	default:
		fmt.Printf("\n❌ Recognition failed: %v\n", res.Err)
		os.Exit(1)
	}
}

func matchLocal(ctx context.Context, cfg *config.Config, audioPath string) {
	svc, err := service.NewLibraryService(cfg.Storage.DBPath, cfg.Recognition.MinConfidence)
	if err != nil {
		fail("open library", err)
	}
	defer svc.Close()

	fmt.Println("🔍 Analyzing audio file...")
	fmt.Println("   Generating fingerprints and searching the library")

	results, err := svc.MatchSong(ctx, audioPath)
	if err != nil {
		fail("match song", err)
	}
	if len(results) == 0 {
		fmt.Println("\n❌ No matches found in library")
		return
	}

	fmt.Printf("\n✅ Found %d match(es)!\n\n🎵 Top Matches:\n\n", len(results))
	shown := min(len(results), 10)
	for i, r := range results[:shown] {
		fmt.Printf("%d. \"%s\" by %s\n", i+1, r.Title, r.Artist)
		fmt.Printf("   Score: %d | Confidence: %.1f%% | Offset: %dms\n", r.Score, r.Confidence, r.OffsetMs)
		if r.YouTubeID != "" {
			fmt.Printf("   YouTube: https://youtube.com/watch?v=%s\n", r.YouTubeID)
		}
		fmt.Println()
	}
	if len(results) > shown {
		fmt.Printf("... and %d more matches\n", len(results)-shown)
	}
}
