package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/himanishpuri/muzak/pkg/utils"
)

// YTMetadata contains metadata extracted from a YouTube video.
type YTMetadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Track    string  `json:"track"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// SongTitle prefers the track name over the video title.
func (m YTMetadata) SongTitle() string {
	if t := strings.TrimSpace(m.Track); t != "" {
		return t
	}
	return strings.TrimSpace(m.Title)
}

// SongArtist falls back from artist to channel to uploader.
func (m YTMetadata) SongArtist() string {
	for _, s := range []string{m.Artist, m.Channel, m.Uploader} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "Unknown Artist"
}

// DownloadYouTubeAudio fetches the best audio stream of a single video into
// outputDir and returns the downloaded file and the video metadata.
func DownloadYouTubeAudio(ctx context.Context, youtubeURL, outputDir string) (string, *YTMetadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res, err := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		NoWarnings().
		Run(ctx, youtubeURL)
	if err != nil {
		return "", nil, fmt.Errorf("yt-dlp metadata extraction failed: %w", err)
	}

	var meta YTMetadata
	if err := json.Unmarshal([]byte(res.Stdout), &meta); err != nil {
		return "", nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
	}
	if strings.TrimSpace(meta.ID) == "" {
		return "", nil, errors.New("missing video ID in yt-dlp output")
	}

	_, err = ytdlp.New().
		Format("bestaudio").
		NoPlaylist().
		NoWarnings().
		Output(filepath.Join(outputDir, meta.ID+".%(ext)s")).
		Run(ctx, youtubeURL)
	if err != nil {
		return "", nil, fmt.Errorf("yt-dlp download failed: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(outputDir, meta.ID+".*"))
	if err != nil || len(matches) == 0 {
		return "", nil, fmt.Errorf("downloaded audio file not found for video %s", meta.ID)
	}
	return matches[0], &meta, nil
}
