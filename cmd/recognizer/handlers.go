package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/himanishpuri/muzak/internal/service"
	"github.com/himanishpuri/muzak/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service *service.LibraryService
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    int
	DBPath  string
	TempDir string
}

func NewServer(svc *service.LibraryService, config *ServerConfig) *Server {
	return &Server{
		service: svc,
		config:  config,
		log:     logger.GetLogger().WithPrefix("[http]"),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func toSongDTO(id, title, artist, youtubeID string, durationMs int) SongDTO {
	return SongDTO{ID: id, Title: title, Artist: artist, YouTubeID: youtubeID, DurationMs: durationMs}
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}

	dtos := make([]SongDTO, len(songs))
	for i, song := range songs {
		dtos[i] = toSongDTO(song.ID, song.Title, song.Artist, song.YouTubeID, song.DurationMs)
	}
	s.respondJSON(w, http.StatusOK, ListSongsResponse{Songs: dtos, Count: len(dtos)})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	songID := r.PathValue("id")
	song, err := s.service.GetSongByID(r.Context(), songID)
	if err != nil {
		s.songLookupError(w, songID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toSongDTO(song.ID, song.Title, song.Artist, song.YouTubeID, song.DurationMs))
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	songID := r.PathValue("id")
	if err := s.service.DeleteSong(r.Context(), songID); err != nil {
		s.songLookupError(w, songID, err)
		return
	}

	s.log.Infof("Deleted song %s", songID)
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{Message: "Song deleted successfully", ID: songID})
}

func (s *Server) songLookupError(w http.ResponseWriter, songID string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song with ID %s not found", songID))
		return
	}
	s.log.Errorf("Song %s: %v", songID, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to access song")
}

func (s *Server) handleAddSongYouTube(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req AddSongYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	songID, err := s.service.AddYouTube(ctx, req.YouTubeURL, req.Title, req.Artist)
	if err != nil {
		s.log.Errorf("Failed to add YouTube song: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add song: %v", err))
		return
	}
	song, err := s.service.GetSongByID(ctx, songID)
	if err != nil {
		s.songLookupError(w, songID, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toSongDTO(song.ID, song.Title, song.Artist, song.YouTubeID, song.DurationMs))
}

// handleMatch handles POST /api/match with a multipart "audio" file.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("query_%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename)))
	if err := saveUpload(tempFile, file); err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer os.Remove(tempFile)

	matches, err := s.service.MatchSong(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Failed to match song: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to match song: %v", err))
		return
	}

	dtos := make([]MatchResultDTO, len(matches))
	for i, m := range matches {
		dtos[i] = MatchResultDTO{
			SongID:     m.SongID,
			Title:      m.Title,
			Artist:     m.Artist,
			YouTubeID:  m.YouTubeID,
			Score:      m.Score,
			OffsetMs:   m.OffsetMs,
			Confidence: m.Confidence,
		}
	}
	s.log.Infof("Match complete: found %d matches", len(dtos))
	s.respondJSON(w, http.StatusOK, MatchResponse{Matches: dtos, Count: len(dtos)})
}

func saveUpload(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
