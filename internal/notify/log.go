package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/himanishpuri/muzak/pkg/utils"
)

// LogSink prints events to the console logger.
type LogSink struct {
	log Logger
}

func NewLogSink(log Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Name() string { return "console" }

func (s *LogSink) Detection(_ context.Context, ev Event) error {
	s.log.Infof("🎵 %s - %s (amplitude %.4f)", ev.Artist, ev.Title, ev.Amplitude)
	return nil
}

func (s *LogSink) Notice(_ context.Context, n Notice) error {
	s.log.Warnf("%s", n.Message)
	return nil
}

// FileSink appends one JSON object per line to a file.
type FileSink struct {
	path string
}

func NewFileSink(path string) *FileSink { return &FileSink{path: path} }

func (s *FileSink) Name() string { return "jsonl" }

func (s *FileSink) Detection(_ context.Context, ev Event) error {
	return s.append(map[string]any{
		"event":      "detection",
		"timestamp":  ev.Timestamp.UTC().Format(timeLayout),
		"title":      ev.Title,
		"artist":     ev.Artist,
		"amplitude":  ev.Amplitude,
		"source":     ev.Source,
		"confidence": ev.Confidence,
	})
}

func (s *FileSink) Notice(_ context.Context, n Notice) error {
	return s.append(map[string]any{
		"event":     n.Kind,
		"timestamp": n.Timestamp.UTC().Format(timeLayout),
		"message":   n.Message,
	})
}

func (s *FileSink) append(entry map[string]any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	if err := utils.EnsureParentDir(s.path); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}
