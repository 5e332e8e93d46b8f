// Package monitor runs the sampling loop: wait, check connectivity,
// capture, gate on amplitude, recognize, deduplicate, persist and report.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/muzak/internal/audio"
	"github.com/himanishpuri/muzak/internal/capture"
	"github.com/himanishpuri/muzak/internal/config"
	"github.com/himanishpuri/muzak/internal/dedup"
	"github.com/himanishpuri/muzak/internal/device"
	"github.com/himanishpuri/muzak/internal/notify"
	"github.com/himanishpuri/muzak/internal/recognize"
	"github.com/himanishpuri/muzak/internal/sample"
	"github.com/himanishpuri/muzak/internal/storage"
	"github.com/himanishpuri/muzak/pkg/logger"
)

// Recognizer identifies one clip.
type Recognizer interface {
	Recognize(ctx context.Context, clip *audio.Clip) recognize.Result
}

// Store persists detections.
type Store interface {
	InsertDetection(ctx context.Context, d *storage.Detection) error
	CountDetections(ctx context.Context) (int64, error)
	Close() error
}

// Probe reports whether the network is reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// Notifier reports detections and notices. It handles its own failures.
type Notifier interface {
	Detection(ctx context.Context, ev notify.Event)
	Notice(ctx context.Context, n notify.Notice)
}

// Logger is the subset of the logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Settings are the loop's tunables.
type Settings struct {
	Preferred         []string
	Segment           time.Duration
	Threshold         float64
	ZeroCeiling       int
	NoDeviceRetry     time.Duration
	ConnectivityRetry time.Duration
	Dedup             dedup.Settings
}

// SettingsFrom maps the configuration onto loop settings.
func SettingsFrom(cfg *config.Config) Settings {
	s := cfg.Sampling
	key := dedup.LooseKey
	if cfg.Dedup.KeyMode == config.KeyModeStrict {
		key = dedup.StrictKey
	}
	if cfg.Dedup.TitleWords > 0 || cfg.Dedup.ArtistWords > 0 {
		key = dedup.KeyOptions{TitleWords: cfg.Dedup.TitleWords, ArtistWords: cfg.Dedup.ArtistWords}
	}

	return Settings{
		Preferred:         cfg.Capture.Sources,
		Segment:           config.Seconds(cfg.Capture.SegmentSeconds),
		Threshold:         s.Threshold,
		ZeroCeiling:       s.ZeroCeiling,
		NoDeviceRetry:     config.Seconds(s.NoDeviceRetrySeconds),
		ConnectivityRetry: config.Seconds(cfg.Network.RetryDelaySeconds),
		Dedup: dedup.Settings{
			Base:         config.Seconds(s.BaseIntervalSeconds),
			Increment:    config.Seconds(s.IncrementSeconds),
			SameSongMax:  config.Seconds(s.SameSongMaxSeconds),
			Max:          config.Seconds(s.MaxIntervalSeconds),
			Window:       config.Seconds(cfg.Dedup.WindowSeconds),
			EmptyCeiling: s.EmptyCeiling,
			Key:          key,
		},
	}
}

// Stats are session counters.
type Stats struct {
	Iterations      int
	Accepted        int
	Suppressed      int
	Silent          int
	Empty           int
	Failovers       int
	PersistFailures int
}

// State is a snapshot of the loop state.
type State struct {
	Dedup       dedup.State
	Zeros       int
	SourceIndex int
	Source      string
}

// Monitor is the control loop. Step and Run must be called from one
// goroutine; Stats and State are safe from any.
type Monitor struct {
	set      Settings
	capturer capture.Capturer
	rec      Recognizer
	store    Store
	probe    Probe
	notifier Notifier
	log      Logger
	clock    Clock
	skip     <-chan struct{}

	registry  *device.Registry
	evaluator *sample.Evaluator
	dedup     *dedup.Controller
	backoff   *Backoff

	sources     int
	unavailable int
	offline     bool
	noDevice    bool
	nextWait    time.Duration

	stateMu sync.Mutex
	stats   Stats
	state   State

	shutdownOnce sync.Once
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithLogger(l Logger) Option { return func(m *Monitor) { m.log = l } }

func WithClock(c Clock) Option { return func(m *Monitor) { m.clock = c } }

// WithSkip makes a receive on ch cut the current wait short.
func WithSkip(ch <-chan struct{}) Option { return func(m *Monitor) { m.skip = ch } }

func WithNotifier(n Notifier) Option { return func(m *Monitor) { m.notifier = n } }

// WithProbe enables the connectivity check. Without it the network is
// assumed reachable.
func WithProbe(p Probe) Option { return func(m *Monitor) { m.probe = p } }

// New builds a Monitor at its initial state: no active source, interval at
// base, counters zero.
func New(set Settings, capturer capture.Capturer, rec Recognizer, store Store, opts ...Option) *Monitor {
	m := &Monitor{
		set:       set,
		capturer:  capturer,
		rec:       rec,
		store:     store,
		log:       logger.GetLogger().WithPrefix("[monitor]"),
		clock:     realClock{},
		registry:  device.NewRegistry(set.Preferred),
		evaluator: sample.NewEvaluator(set.Threshold, set.ZeroCeiling),
		dedup:     dedup.New(set.Dedup),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.NewDispatcher(m.log, 0, notify.NewLogSink(m.log))
	}
	m.backoff = NewBackoff(max(set.Dedup.Base, time.Second), max(set.Dedup.Max, set.Dedup.Base))
	m.nextWait = set.Dedup.Base
	m.snapshot()
	return m
}

// Stats returns the session counters.
func (m *Monitor) Stats() Stats {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.stats
}

// State returns the current loop state.
func (m *Monitor) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Monitor) count(fn func(*Stats)) {
	m.stateMu.Lock()
	fn(&m.stats)
	m.stateMu.Unlock()
}

func (m *Monitor) snapshot() {
	src, _ := m.registry.Active()
	m.stateMu.Lock()
	m.state = State{
		Dedup:       m.dedup.State(),
		Zeros:       m.evaluator.Zeros(),
		SourceIndex: m.registry.Index(),
		Source:      src.Name,
	}
	m.stateMu.Unlock()
}

// Run waits and steps until ctx is cancelled, then runs the shutdown hook.
// It returns nil on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.Shutdown()
	m.log.Infof("Monitoring started (preferred sources: %v)", m.set.Preferred)

	for {
		if !m.wait(ctx, m.nextWait) {
			return nil
		}
		m.nextWait = m.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Shutdown logs the session tally and closes the store. Only the first
// call has an effect.
func (m *Monitor) Shutdown() {
	m.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		st := m.Stats()
		total, err := m.store.CountDetections(ctx)
		if err != nil {
			m.log.Warnf("Failed to count detections: %v", err)
		}
		m.log.Infof("Session: %d samples, %d accepted, %d suppressed, %d silent, %d failovers; %d detections stored",
			st.Iterations, st.Accepted, st.Suppressed, st.Silent, st.Failovers, total)

		if err := m.store.Close(); err != nil {
			m.log.Warnf("Failed to close store: %v", err)
		}
	})
}

// wait sleeps for d unless cancelled or skipped. It reports whether the
// loop should continue.
func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	m.log.Debugf("Next sample in %s", d)

	select {
	case <-ctx.Done():
		return false
	case <-m.skip:
		m.log.Debugf("Wait skipped")
		return true
	case <-m.clock.After(d):
		return true
	}
}

// Step runs one iteration and returns the wait before the next one.
func (m *Monitor) Step(ctx context.Context) time.Duration {
	defer m.snapshot()
	m.count(func(s *Stats) { s.Iterations++ })

	if !m.online(ctx) {
		return m.set.ConnectivityRetry
	}

	src, ok := m.registry.Active()
	if !ok {
		if src, ok = m.failover(ctx); !ok {
			return m.set.NoDeviceRetry
		}
	}

	clip, err := m.capturer.Capture(ctx, src.Name, m.set.Segment)
	switch {
	case ctx.Err() != nil:
		return 0
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return m.deviceUnavailable(ctx, src, err)
	case err != nil:
		wait := m.backoff.Next()
		m.log.Warnf("Capture from %q failed, retrying in %s: %v", src.Name, wait, err)
		return wait
	}
	m.backoff.Reset()
	m.unavailable = 0

	verdict := m.evaluator.Observe(clip.Amplitude)
	switch verdict.Class {
	case sample.Zero:
		m.count(func(s *Stats) { s.Silent++ })
		if verdict.Failover {
			m.log.Warnf("Source %q returned digital silence %d times in a row", src.Name, m.set.ZeroCeiling)
			m.failover(ctx)
		} else {
			m.log.Debugf("Zero amplitude from %q (%d in a row)", src.Name, verdict.Zeros)
		}
		return m.dedup.Interval()
	case sample.Silent:
		m.count(func(s *Stats) { s.Silent++ })
		m.log.Debugf("Sample below threshold (%.4f < %.4f), skipping recognition", clip.Amplitude, m.set.Threshold)
		return m.dedup.Interval()
	}

	res := m.rec.Recognize(ctx, clip)
	if res.Kind != recognize.Match {
		return m.empty(ctx, res)
	}
	return m.match(ctx, res, src, clip.Amplitude)
}

func (m *Monitor) online(ctx context.Context) bool {
	if m.probe == nil {
		return true
	}
	if err := m.probe.Check(ctx); err != nil {
		m.log.Warnf("No connectivity, retrying in %s: %v", m.set.ConnectivityRetry, err)
		if !m.offline {
			m.offline = true
			m.notifier.Notice(ctx, notify.Notice{Timestamp: m.clock.Now(), Kind: notify.NoticeOffline, Message: "Network unreachable"})
		}
		return false
	}
	if m.offline {
		m.log.Infof("Connectivity restored")
		m.offline = false
	}
	return true
}

// failover enumerates sources and moves to the next one. The zero counter
// is reset whether or not a source was found.
func (m *Monitor) failover(ctx context.Context) (device.Source, bool) {
	m.evaluator.Reset()

	available, err := m.capturer.ListSources(ctx)
	if err != nil && !errors.Is(err, capture.ErrNoSources) {
		m.log.Warnf("Failed to list capture sources: %v", err)
	}
	m.sources = len(available)

	prev, hadActive := m.registry.Active()
	next, ok := m.registry.Failover(available)
	if hadActive {
		m.count(func(s *Stats) { s.Failovers++ })
	}

	if !ok {
		m.log.Warnf("No capture sources available, retrying in %s", m.set.NoDeviceRetry)
		if !m.noDevice {
			m.noDevice = true
			m.notifier.Notice(ctx, notify.Notice{Timestamp: m.clock.Now(), Kind: notify.NoticeNoDevice, Message: "No capture sources available"})
		}
		return device.Source{}, false
	}
	m.noDevice = false

	switch {
	case !hadActive:
		m.log.Infof("🎙️ Using source %q (rank %d)", next.Name, next.Rank)
	case prev.Name != next.Name:
		m.log.Infof("🎙️ Switched source %q -> %q (rank %d)", prev.Name, next.Name, next.Rank)
	default:
		m.log.Warnf("No alternative to source %q", next.Name)
	}
	return next, true
}

func (m *Monitor) deviceUnavailable(ctx context.Context, src device.Source, err error) time.Duration {
	m.log.Warnf("Source %q unavailable: %v", src.Name, err)
	m.unavailable++

	next, ok := m.failover(ctx)
	if !ok || next.Name == src.Name || m.unavailable >= m.sources {
		m.log.Warnf("All capture sources exhausted, retrying in %s", m.set.NoDeviceRetry)
		m.unavailable = 0
		return m.set.NoDeviceRetry
	}
	return 0
}

func (m *Monitor) empty(ctx context.Context, res recognize.Result) time.Duration {
	m.count(func(s *Stats) { s.Empty++ })
	if res.Kind == recognize.NoResult {
		m.log.Warnf("Recognition failed: %v", res.Err)
	} else {
		m.log.Debugf("No match")
	}

	out := m.dedup.Empty()
	if out.Notice {
		m.notifier.Notice(ctx, notify.Notice{
			Timestamp: m.clock.Now(),
			Kind:      notify.NoticeNothingDetected,
			Message:   fmt.Sprintf("Nothing detected in %d consecutive samples", m.set.Dedup.EmptyCeiling),
		})
	}
	return out.Interval
}

func (m *Monitor) match(ctx context.Context, res recognize.Result, src device.Source, amplitude float64) time.Duration {
	now := m.clock.Now()
	dec := m.dedup.Match(res.Title, res.Artist, now)
	if dec.Outcome == dedup.Suppressed {
		m.count(func(s *Stats) { s.Suppressed++ })
		m.log.Debugf("Still playing: %s - %s", res.Artist, res.Title)
		return dec.Interval
	}
	m.count(func(s *Stats) { s.Accepted++ })

	det := &storage.Detection{
		Timestamp:  now,
		Title:      res.Title,
		Artist:     res.Artist,
		Amplitude:  amplitude,
		Source:     src.Name,
		Confidence: res.Confidence,
	}
	if err := m.store.InsertDetection(ctx, det); err != nil {
		m.count(func(s *Stats) { s.PersistFailures++ })
		m.log.Errorf("Failed to store detection %s - %s: %v", res.Artist, res.Title, err)
	}

	m.notifier.Detection(ctx, notify.Event{
		Timestamp:  now,
		Title:      res.Title,
		Artist:     res.Artist,
		Amplitude:  amplitude,
		Source:     src.Name,
		Confidence: res.Confidence,
	})
	return dec.Interval
}
