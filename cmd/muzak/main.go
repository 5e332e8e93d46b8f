package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/himanishpuri/muzak/internal/config"
	"github.com/himanishpuri/muzak/pkg/logger"
)

// Global flags
var (
	configPath string
	dbPath     string
	logLevel   string
)

func init() {
	flag.StringVar(&configPath, "config", config.Path(), "Path to the JSON config file (env: MUZAK_CONFIG)")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite database file (env: MUZAK_DB_PATH)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: MUZAK_LOG_LEVEL)")
	flag.Usage = printUsage
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	printBanner()

	command, args := "monitor", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}
	log.Debugf("Executing command: %s", command)

	switch command {
	case "monitor":
		handleMonitor(args)
	case "count":
		handleCount()
	case "history":
		handleHistory(args)
	case "devices":
		handleDevices()
	case "match":
		handleMatch(args)
	case "library":
		handleLibrary(args)
	case "spectrogram":
		handleSpectrogram(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies global flag overrides.
// Validation is left to the commands that need a complete config.
func loadConfig() *config.Config {
	log := logger.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		log.Errorf("Config load failed: %v", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}

	level := logLevel
	if level == "" && os.Getenv(logger.EnvLevel) == "" {
		level = cfg.LogLevel
	}
	if level != "" {
		lvl, err := logger.ParseLevel(level)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		logger.SetLevel(lvl)
	}
	return cfg
}

func fail(what string, err error) {
	fmt.Printf("❌ Failed to %s: %v\n", what, err)
	logger.Errorf("Failed to %s: %v", what, err)
	os.Exit(1)
}

func printBanner() {
	banner := `
 _ __ ___  _   _ ______ _| | __
| '_ ' _ \| | | |_  / _' | |/ /
| | | | | | |_| |/ / (_| |   <
|_| |_| |_|\__,_/___\__,_|_|\_\

      What's playing, logged
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println("muzak - listens to an audio input and logs the songs it hears")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --config <path>     JSON config file (env: MUZAK_CONFIG, default: muzak.json)")
	fmt.Println("  --db <path>         SQLite database (env: MUZAK_DB_PATH, default: muzak.sqlite3)")
	fmt.Println("  --log-level <lvl>   debug, info, warn or error (env: MUZAK_LOG_LEVEL)")
	fmt.Println("\nUsage:")
	fmt.Println("  muzak [global-options] [monitor] [--skip-on-enter]")
	fmt.Println("  muzak [global-options] count")
	fmt.Println("  muzak [global-options] history [-n <count>] [-json]")
	fmt.Println("  muzak [global-options] devices")
	fmt.Println("  muzak [global-options] match <audio_file>")
	fmt.Println("  muzak [global-options] library add <audio_file> --title <title> --artist <artist> [--youtube <id>]")
	fmt.Println("  muzak [global-options] library add --youtube-url <url> [--title <title>] [--artist <artist>]")
	fmt.Println("  muzak [global-options] library list")
	fmt.Println("  muzak [global-options] library delete <song_id>")
	fmt.Println("  muzak [global-options] spectrogram <wav_file> [-o <out.png>]")
	fmt.Println("\nExamples:")
	fmt.Println("  # Monitor the default input, press Enter to sample immediately")
	fmt.Println("  MUZAK_SOURCES=\"USB Audio Device\" muzak monitor --skip-on-enter")
	fmt.Println()
	fmt.Println("  # Last 20 detections as JSON")
	fmt.Println("  muzak history -n 20 -json")
	fmt.Println()
	fmt.Println("  # Build a local library from YouTube")
	fmt.Println("  muzak library add --youtube-url \"https://youtube.com/watch?v=dQw4w9WgXcQ\"")
}
