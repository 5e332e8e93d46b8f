// Package notify delivers detections and operator notices to the
// configured sinks.
package notify

import (
	"context"
	"time"

	"github.com/himanishpuri/muzak/internal/config"
	"github.com/himanishpuri/muzak/pkg/logger"
)

// Event is an accepted detection.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Amplitude  float64   `json:"amplitude"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Notice kinds.
const (
	NoticeNothingDetected = "nothing_detected"
	NoticeNoDevice        = "no_device"
	NoticeOffline         = "offline"
)

// Notice is an operator-facing message that is not a detection.
type Notice struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Sink receives events. Errors are reported to the Dispatcher, which logs
// them.
type Sink interface {
	Name() string
	Detection(ctx context.Context, ev Event) error
	Notice(ctx context.Context, n Notice) error
}

// Logger is the subset of the logger used here.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Dispatcher fans events out to sinks, one at a time, each bounded by
// timeout. A failing sink never stops the others.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     Logger
}

// NewDispatcher returns a Dispatcher over sinks.
func NewDispatcher(log Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: timeout, log: log}
}

// FromConfig builds the console sink plus every sink cfg enables.
func FromConfig(cfg config.NotificationsConfig, log *logger.Logger) *Dispatcher {
	sinks := []Sink{NewLogSink(log)}
	if cfg.LogPath != "" {
		sinks = append(sinks, NewFileSink(cfg.LogPath))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, nil))
	}
	if email := EmailConfigFrom(cfg.Email); email.Configured() {
		sinks = append(sinks, NewEmailSink(email))
	}
	return NewDispatcher(log, config.Seconds(cfg.TimeoutSeconds), sinks...)
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Detection delivers ev to every sink.
func (d *Dispatcher) Detection(ctx context.Context, ev Event) {
	d.each(ctx, "detection", func(ctx context.Context, s Sink) error { return s.Detection(ctx, ev) })
}

// Notice delivers n to every sink.
func (d *Dispatcher) Notice(ctx context.Context, n Notice) {
	d.each(ctx, "notice", func(ctx context.Context, s Sink) error { return s.Notice(ctx, n) })
}

func (d *Dispatcher) each(ctx context.Context, what string, fn func(context.Context, Sink) error) {
	for _, s := range d.sinks {
		if err := d.call(ctx, s, fn); err != nil {
			d.log.Warnf("%s %s failed: %v", s.Name(), what, err)
		}
	}
}

func (d *Dispatcher) call(ctx context.Context, s Sink, fn func(context.Context, Sink) error) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return fn(ctx, s)
}
