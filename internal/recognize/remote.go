package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/himanishpuri/muzak/internal/audio"
)

const matchPath = "/api/match"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// RemoteBackend posts WAV-encoded clips to a fingerprint matching server.
type RemoteBackend struct {
	baseURL       string
	minConfidence float64
	client        *http.Client
}

// NewRemoteBackend targets the server at baseURL. Best matches scoring
// below minConfidence (0-100) are reported as no match.
func NewRemoteBackend(baseURL string, minConfidence float64, client *http.Client) *RemoteBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteBackend{
		baseURL:       strings.TrimRight(baseURL, "/"),
		minConfidence: minConfidence,
		client:        client,
	}
}

type matchResponse struct {
	Matches []struct {
		SongID     string  `json:"song_id"`
		Title      string  `json:"title"`
		Artist     string  `json:"artist"`
		Score      int     `json:"score"`
		Confidence float64 `json:"confidence"`
	} `json:"matches"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

func (r *RemoteBackend) Identify(ctx context.Context, clip *audio.Clip) (*Identification, error) {
	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return nil, fmt.Errorf("encoding sample: %w", err)
	}

	body, contentType, err := multipartBody(wav, clip)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+matchPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call recognition service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("recognition service returned status %d", resp.StatusCode)
	}

	var parsed matchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("recognition service error: %s", parsed.Error)
	}

	if len(parsed.Matches) == 0 {
		return nil, nil
	}
	best := parsed.Matches[0]
	for _, m := range parsed.Matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	if best.Confidence < r.minConfidence {
		return nil, nil
	}
	return &Identification{Title: best.Title, Artist: best.Artist, Confidence: best.Confidence}, nil
}

func multipartBody(wav []byte, clip *audio.Clip) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("audio", "sample.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}

	fields := map[string]int{
		"sample_rate": clip.Format.SampleRate,
		"bit_depth":   clip.Format.BitDepth,
		"channels":    clip.Format.Channels,
		"duration_ms": int(clip.Duration.Milliseconds()),
	}
	for k, v := range fields {
		if err := w.WriteField(k, strconv.Itoa(v)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
