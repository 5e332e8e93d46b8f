// Package capture records short PCM segments from system audio inputs using
// the platform's command-line tools.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/muzak/internal/audio"
)

var (
	// ErrDeviceUnavailable means the source produced no audio at all.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrNoSources means enumeration found no inputs.
	ErrNoSources = errors.New("no capture sources found")
)

// Capturer lists inputs and records from them.
type Capturer interface {
	ListSources(ctx context.Context) ([]string, error)
	Capture(ctx context.Context, source string, d time.Duration) (*audio.Clip, error)
}

// Device is an enumerated input: ID is what the tool takes, Name is what
// users put in their preferred list.
type Device struct {
	ID   string
	Name string
}

// runFunc executes a command and returns its stdout and stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Command captures by running arecord or ffmpeg.
type Command struct {
	format   audio.Format
	platform platformConfig
	run      runFunc

	mu      sync.Mutex
	devices map[string]string // name -> id
}

// Option configures a Command.
type Option func(*Command)

// WithRunner replaces process execution, for tests.
func WithRunner(run runFunc) Option {
	return func(c *Command) { c.run = run }
}

// withPlatform overrides the detected platform.
func withPlatform(p platformConfig) Option {
	return func(c *Command) { c.platform = p }
}

// NewCommand returns a capturer producing S16LE audio at the given rate.
func NewCommand(sampleRate, channels int, opts ...Option) *Command {
	c := &Command{
		format:   audio.S16(sampleRate, channels),
		platform: currentPlatform(),
		run:      execRun,
		devices:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Devices enumerates inputs with their tool IDs.
func (c *Command) Devices(ctx context.Context) ([]Device, error) {
	list := c.platform.list
	stdout, stderr, err := c.run(ctx, list.command[0], list.command[1:]...)
	// ffmpeg exits non-zero after listing; only give up on no output.
	output := string(stdout) + string(stderr)
	if err != nil && strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("listing devices with %s: %w", list.command[0], err)
	}

	devices := uniqueNames(parseDeviceList(output, list))
	if len(devices) == 0 {
		return nil, ErrNoSources
	}

	c.mu.Lock()
	c.devices = make(map[string]string, len(devices))
	for _, d := range devices {
		c.devices[d.Name] = d.ID
	}
	c.mu.Unlock()
	return devices, nil
}

// ListSources returns the display names of all inputs.
func (c *Command) ListSources(ctx context.Context) ([]string, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names, nil
}

func (c *Command) deviceID(source string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.devices[source]; ok {
		return id
	}
	return source
}

// Capture records d of audio from source. A source that yields nothing is
// reported as ErrDeviceUnavailable; a silent recording is not an error.
func (c *Command) Capture(ctx context.Context, source string, d time.Duration) (*audio.Clip, error) {
	if d <= 0 {
		return nil, errors.New("capture duration must be positive")
	}

	runCtx, cancel := context.WithTimeout(ctx, d+15*time.Second)
	defer cancel()

	seconds := int(math.Ceil(d.Seconds()))
	args := c.platform.captureArgs(c.deviceID(source), c.format, seconds)
	stdout, stderr, err := c.run(runCtx, c.platform.command, args...)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("capture tool unavailable: %w", err)
	}

	frame := c.format.BytesPerFrame()
	pcm := stdout[:len(stdout)-len(stdout)%frame]
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrDeviceUnavailable, source, describe(err, stderr))
	}

	expected := c.format.SampleRate * frame * seconds
	if err != nil && len(pcm) < expected/2 {
		return nil, fmt.Errorf("short capture from %s (%d of %d bytes): %s", source, len(pcm), expected, describe(err, stderr))
	}

	return audio.NewClip(pcm, c.format)
}

func describe(err error, stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	switch {
	case err != nil && msg != "":
		return fmt.Sprintf("%v (%s)", err, msg)
	case err != nil:
		return err.Error()
	case msg != "":
		return msg
	}
	return "no audio data"
}

// uniqueNames suffixes repeated display names with " #2", " #3", ...
func uniqueNames(devices []Device) []Device {
	seen := make(map[string]int, len(devices))
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		seen[d.Name]++
		if n := seen[d.Name]; n > 1 {
			d.Name = fmt.Sprintf("%s #%d", d.Name, n)
		}
		out = append(out, d)
	}
	return out
}
