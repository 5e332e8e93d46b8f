// Package config loads and validates the monitor configuration.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrInvalidConfig marks configuration errors. They are fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment overrides.
const (
	EnvConfigPath    = "MUZAK_CONFIG"
	EnvDBPath        = "MUZAK_DB_PATH"
	EnvRecognizerURL = "MUZAK_RECOGNIZER_URL"
	EnvSources       = "MUZAK_SOURCES"
)

// Configuration defaults.
const (
	DefaultConfigFile         = "muzak.json"
	DefaultDBPath             = "muzak.sqlite3"
	DefaultSegmentSeconds     = 8.0
	DefaultSampleRate         = 44100
	DefaultChannels           = 1
	DefaultThreshold          = 0.01
	DefaultZeroCeiling        = 3
	DefaultEmptyCeiling       = 6
	DefaultBaseInterval       = 10.0
	DefaultMaxInterval        = 60.0
	DefaultSameSongMax        = 30.0
	DefaultIncrement          = 5.0
	DefaultNoDeviceRetry      = 30.0
	DefaultDedupWindow        = 60.0
	DefaultKeyMode            = KeyModeLoose
	DefaultProbeAddress       = "1.1.1.1:53"
	DefaultProbeTimeout       = 3.0
	DefaultConnectivityWindow = 30.0
	DefaultConnectivityRetry  = 30.0
	DefaultRecognizeTimeout   = 20.0
	DefaultBackend            = BackendRemote
	DefaultMinConfidence      = 20.0
	DefaultNotifyTimeout      = 10.0
	DefaultEmailSMTPPort      = 587
	DefaultEmailFromName      = "muzak"
)

// Dedup key modes.
const (
	KeyModeLoose  = "loose"
	KeyModeStrict = "strict"
)

// Recognition backends.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// CaptureConfig controls which inputs are sampled and how.
type CaptureConfig struct {
	Sources        []string `json:"sources,omitempty"`
	SegmentSeconds float64  `json:"segment_seconds,omitempty"`
	SampleRate     int      `json:"sample_rate,omitempty"`
	Channels       int      `json:"channels,omitempty"`
}

// SamplingConfig holds gating thresholds and polling intervals.
type SamplingConfig struct {
	Threshold            float64 `json:"threshold,omitempty"`
	ZeroCeiling          int     `json:"zero_ceiling,omitempty"`
	EmptyCeiling         int     `json:"empty_ceiling,omitempty"`
	BaseIntervalSeconds  float64 `json:"base_interval_seconds,omitempty"`
	MaxIntervalSeconds   float64 `json:"max_interval_seconds,omitempty"`
	SameSongMaxSeconds   float64 `json:"same_song_max_seconds,omitempty"`
	IncrementSeconds     float64 `json:"increment_seconds,omitempty"`
	NoDeviceRetrySeconds float64 `json:"no_device_retry_seconds,omitempty"`
}

// DedupConfig tunes the duplicate-detection heuristic.
type DedupConfig struct {
	WindowSeconds float64 `json:"window_seconds,omitempty"`
	KeyMode       string  `json:"key_mode,omitempty"`
	TitleWords    int     `json:"title_words,omitempty"`
	ArtistWords   int     `json:"artist_words,omitempty"`
}

// NetworkConfig controls the connectivity probe.
type NetworkConfig struct {
	ProbeAddress        string  `json:"probe_address,omitempty"`
	ProbeTimeoutSeconds float64 `json:"probe_timeout_seconds,omitempty"`
	CacheWindowSeconds  float64 `json:"cache_window_seconds,omitempty"`
	RetryDelaySeconds   float64 `json:"retry_delay_seconds,omitempty"`
}

// RecognitionConfig selects and tunes the recognition backend.
type RecognitionConfig struct {
	Backend        string  `json:"backend,omitempty"`
	URL            string  `json:"url,omitempty"`
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
	MinConfidence  float64 `json:"min_confidence,omitempty"`
}

// StorageConfig locates the database.
type StorageConfig struct {
	DBPath string `json:"db_path,omitempty"`
}

// EmailConfig contains SMTP settings for email notifications.
type EmailConfig struct {
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	FromName   string `json:"from_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Recipients string `json:"recipients,omitempty"`
}

// NotificationsConfig lists the optional detection sinks.
type NotificationsConfig struct {
	WebhookURL     string      `json:"webhook_url,omitempty"`
	LogPath        string      `json:"log_path,omitempty"`
	Email          EmailConfig `json:"email,omitempty"`
	TimeoutSeconds float64     `json:"timeout_seconds,omitempty"`
}

// Config holds all monitor configuration.
type Config struct {
	LogLevel      string              `json:"log_level,omitempty"`
	Capture       CaptureConfig       `json:"capture"`
	Sampling      SamplingConfig      `json:"sampling"`
	Dedup         DedupConfig         `json:"dedup"`
	Network       NetworkConfig       `json:"network"`
	Recognition   RecognitionConfig   `json:"recognition"`
	Storage       StorageConfig       `json:"storage"`
	Notifications NotificationsConfig `json:"notifications,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Path returns the config file location from MUZAK_CONFIG or the default.
func Path() string {
	return cmp.Or(os.Getenv(EnvConfigPath), DefaultConfigFile)
}

// Load reads the JSON config at path. A missing file yields defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	c := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	c.applyEnv()
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvRecognizerURL); v != "" {
		c.Recognition.URL = v
	}
	if v := os.Getenv(EnvSources); v != "" {
		c.Capture.Sources = SplitList(v)
	}
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	c.Capture.SegmentSeconds = cmp.Or(c.Capture.SegmentSeconds, DefaultSegmentSeconds)
	c.Capture.SampleRate = cmp.Or(c.Capture.SampleRate, DefaultSampleRate)
	c.Capture.Channels = cmp.Or(c.Capture.Channels, DefaultChannels)

	s := &c.Sampling
	s.Threshold = cmp.Or(s.Threshold, DefaultThreshold)
	s.ZeroCeiling = cmp.Or(s.ZeroCeiling, DefaultZeroCeiling)
	s.EmptyCeiling = cmp.Or(s.EmptyCeiling, DefaultEmptyCeiling)
	s.BaseIntervalSeconds = cmp.Or(s.BaseIntervalSeconds, DefaultBaseInterval)
	s.MaxIntervalSeconds = cmp.Or(s.MaxIntervalSeconds, DefaultMaxInterval)
	s.SameSongMaxSeconds = cmp.Or(s.SameSongMaxSeconds, DefaultSameSongMax)
	s.IncrementSeconds = cmp.Or(s.IncrementSeconds, DefaultIncrement)
	s.NoDeviceRetrySeconds = cmp.Or(s.NoDeviceRetrySeconds, DefaultNoDeviceRetry)

	c.Dedup.WindowSeconds = cmp.Or(c.Dedup.WindowSeconds, DefaultDedupWindow)
	c.Dedup.KeyMode = strings.ToLower(cmp.Or(c.Dedup.KeyMode, DefaultKeyMode))

	n := &c.Network
	n.ProbeAddress = cmp.Or(n.ProbeAddress, DefaultProbeAddress)
	n.ProbeTimeoutSeconds = cmp.Or(n.ProbeTimeoutSeconds, DefaultProbeTimeout)
	n.CacheWindowSeconds = cmp.Or(n.CacheWindowSeconds, DefaultConnectivityWindow)
	n.RetryDelaySeconds = cmp.Or(n.RetryDelaySeconds, DefaultConnectivityRetry)

	r := &c.Recognition
	r.Backend = strings.ToLower(cmp.Or(r.Backend, DefaultBackend))
	r.TimeoutSeconds = cmp.Or(r.TimeoutSeconds, DefaultRecognizeTimeout)
	r.MinConfidence = cmp.Or(r.MinConfidence, DefaultMinConfidence)

	c.Storage.DBPath = cmp.Or(c.Storage.DBPath, DefaultDBPath)

	c.Notifications.TimeoutSeconds = cmp.Or(c.Notifications.TimeoutSeconds, DefaultNotifyTimeout)
	c.Notifications.Email.Port = cmp.Or(c.Notifications.Email.Port, DefaultEmailSMTPPort)
	c.Notifications.Email.FromName = cmp.Or(c.Notifications.Email.FromName, DefaultEmailFromName)
}

// Validate reports the first configuration problem, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Capture.SegmentSeconds <= 0 {
		return invalid("capture.segment_seconds must be positive")
	}
	if c.Capture.SampleRate <= 0 {
		return invalid("capture.sample_rate must be positive")
	}
	if c.Capture.Channels < 1 || c.Capture.Channels > 2 {
		return invalid("capture.channels must be 1 or 2, got %d", c.Capture.Channels)
	}
	seen := make(map[string]bool, len(c.Capture.Sources))
	for _, name := range c.Capture.Sources {
		if strings.TrimSpace(name) == "" {
			return invalid("capture.sources contains an empty name")
		}
		if seen[name] {
			return invalid("capture.sources lists %q twice", name)
		}
		seen[name] = true
	}

	s := c.Sampling
	if s.Threshold < 0 || s.Threshold > 1 {
		return invalid("sampling.threshold must be within [0, 1], got %g", s.Threshold)
	}
	if s.ZeroCeiling < 1 || s.EmptyCeiling < 1 {
		return invalid("sampling ceilings must be at least 1")
	}
	for name, v := range map[string]float64{
		"base_interval_seconds":   s.BaseIntervalSeconds,
		"max_interval_seconds":    s.MaxIntervalSeconds,
		"same_song_max_seconds":   s.SameSongMaxSeconds,
		"increment_seconds":       s.IncrementSeconds,
		"no_device_retry_seconds": s.NoDeviceRetrySeconds,
	} {
		if v < 0 {
			return invalid("sampling.%s must not be negative", name)
		}
	}
	if s.MaxIntervalSeconds < s.BaseIntervalSeconds {
		return invalid("sampling.max_interval_seconds (%g) is below the base interval (%g)", s.MaxIntervalSeconds, s.BaseIntervalSeconds)
	}
	if s.SameSongMaxSeconds < s.BaseIntervalSeconds {
		return invalid("sampling.same_song_max_seconds (%g) is below the base interval (%g)", s.SameSongMaxSeconds, s.BaseIntervalSeconds)
	}

	if c.Dedup.WindowSeconds < 0 {
		return invalid("dedup.window_seconds must not be negative")
	}
	if c.Dedup.KeyMode != KeyModeLoose && c.Dedup.KeyMode != KeyModeStrict {
		return invalid("dedup.key_mode must be %q or %q, got %q", KeyModeLoose, KeyModeStrict, c.Dedup.KeyMode)
	}
	if c.Dedup.TitleWords < 0 || c.Dedup.ArtistWords < 0 {
		return invalid("dedup word windows must not be negative")
	}

	if c.Network.CacheWindowSeconds < 0 || c.Network.RetryDelaySeconds < 0 {
		return invalid("network durations must not be negative")
	}

	switch c.Recognition.Backend {
	case BackendRemote:
		if c.Recognition.URL == "" {
			return invalid("recognition.url is required for the remote backend")
		}
	case BackendLocal:
	default:
		return invalid("recognition.backend must be %q or %q, got %q", BackendRemote, BackendLocal, c.Recognition.Backend)
	}
	if c.Recognition.TimeoutSeconds <= 0 {
		return invalid("recognition.timeout_seconds must be positive")
	}

	return nil
}

// Seconds converts a config value in seconds to a Duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
