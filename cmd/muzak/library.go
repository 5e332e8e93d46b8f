package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/himanishpuri/muzak/internal/service"
	"github.com/himanishpuri/muzak/pkg/logger"
	"github.com/himanishpuri/muzak/pkg/utils"
)

func handleLibrary(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: muzak library <add|list|delete> ...")
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		handleLibraryAdd(args[1:])
	case "list":
		handleLibraryList()
	case "delete":
		handleLibraryDelete(args[1:])
	default:
		fmt.Printf("Unknown library command: %s\n", args[0])
		os.Exit(1)
	}
}

func openLibrary() *service.LibraryService {
	cfg := loadConfig()
	fmt.Println("🔧 Initializing library...")
	svc, err := service.NewLibraryService(cfg.Storage.DBPath, cfg.Recognition.MinConfidence)
	if err != nil {
		fail("open library", err)
	}
	return svc
}

func handleLibraryAdd(args []string) {
	log := logger.GetLogger()

	// Separate the audio file path from flags
	var audioPath string
	var flagArgs []string
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && audioPath == "" {
			audioPath = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}

	addCmd := flag.NewFlagSet("library add", flag.ExitOnError)
	title := addCmd.String("title", "", "Song title (required unless using --youtube-url)")
	artist := addCmd.String("artist", "", "Artist name (required unless using --youtube-url)")
	youtube := addCmd.String("youtube", "", "YouTube ID (optional)")
	youtubeURL := addCmd.String("youtube-url", "", "YouTube URL to download and add (alternative to audio file)")
	addCmd.Parse(flagArgs)

	switch {
	case *youtubeURL != "" && audioPath != "":
		fmt.Println("Error: cannot specify both audio file and --youtube-url")
		os.Exit(1)
	case *youtubeURL == "" && audioPath == "":
		fmt.Println("Error: audio file path or --youtube-url required")
		fmt.Println("Usage: muzak library add <audio_file> --title <title> --artist <artist> [--youtube <id>]")
		fmt.Println("   OR: muzak library add --youtube-url <url> [--title <title>] [--artist <artist>]")
		os.Exit(1)
	case *youtubeURL == "" && (*title == "" || *artist == ""):
		fmt.Println("Error: --title and --artist are required")
		os.Exit(1)
	case audioPath != "" && !utils.FileExists(audioPath):
		fmt.Printf("Error: audio file not found: %s\n", audioPath)
		os.Exit(1)
	}

	svc := openLibrary()
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var songID string
	var err error
	if *youtubeURL != "" {
		fmt.Println("📥 Downloading audio from YouTube...")
		fmt.Println("   This may take a few moments depending on video length")
		songID, err = svc.AddYouTube(ctx, *youtubeURL, *title, *artist)
	} else {
		fmt.Println("🎵 Processing audio file...")
		fmt.Println("   This may take a few moments for large files")
		songID, err = svc.AddSong(ctx, audioPath, *title, *artist, *youtube)
	}
	if err != nil {
		fail("add song", err)
	}

	song, err := svc.GetSongByID(ctx, songID)
	if err != nil {
		fail("read back song", err)
	}

	fmt.Println("\n✅ Successfully added song to library!")
	fmt.Printf("   ID:      %s\n", song.ID)
	fmt.Printf("   Title:   %s\n", song.Title)
	fmt.Printf("   Artist:  %s\n", song.Artist)
	if song.YouTubeID != "" {
		fmt.Printf("   YouTube: %s\n", song.YouTubeID)
	}
	log.Infof("Added song %s ('%s' by '%s')", song.ID, song.Title, song.Artist)
}

func handleLibraryList() {
	svc := openLibrary()
	defer svc.Close()

	songs, err := svc.ListSongs(context.Background())
	if err != nil {
		fail("list songs", err)
	}
	if len(songs) == 0 {
		fmt.Println("\n📭 No songs in library")
		return
	}

	fmt.Printf("\n📚 Found %d song(s):\n\n", len(songs))
	for i, song := range songs {
		fmt.Printf("%d. \"%s\" by %s (ID: %s)\n", i+1, song.Title, song.Artist, song.ID)
		if song.YouTubeID != "" {
			fmt.Printf("   YouTube: https://youtube.com/watch?v=%s\n", song.YouTubeID)
		}
		if song.DurationMs > 0 {
			duration := song.DurationMs / 1000
			fmt.Printf("   Duration: %d:%02d\n", duration/60, duration%60)
		}
		fmt.Println()
	}
}

func handleLibraryDelete(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: muzak library delete <song_id>")
		os.Exit(1)
	}
	songID := args[0]

	svc := openLibrary()
	defer svc.Close()
	ctx := context.Background()

	song, err := svc.GetSongByID(ctx, songID)
	if err != nil {
		fmt.Printf("❌ Song not found (ID: %s)\n", songID)
		log.Warnf("Song %s not found: %v", songID, err)
		os.Exit(1)
	}
	if err := svc.DeleteSong(ctx, songID); err != nil {
		fail("delete song", err)
	}

	fmt.Printf("\n✅ Successfully deleted song:\n")
	fmt.Printf("   ID:     %s\n", song.ID)
	fmt.Printf("   Title:  %s\n", song.Title)
	fmt.Printf("   Artist: %s\n", song.Artist)
	log.Infof("Deleted song %s ('%s' by '%s')", song.ID, song.Title, song.Artist)
}
