package capture

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/himanishpuri/muzak/internal/audio"
)

// listConfig defines how to list audio devices for a platform.
type listConfig struct {
	command []string

	// startMarker and stopMarker bound the audio section of the output.
	startMarker string
	stopMarker  string

	pattern *regexp.Regexp
	parse   func(matches []string) *Device
}

type platformConfig struct {
	command     string
	list        listConfig
	captureArgs func(device string, f audio.Format, seconds int) []string
}

func parseDeviceList(output string, cfg listConfig) []Device {
	var devices []Device
	inSection := cfg.startMarker == ""

	for _, line := range strings.Split(output, "\n") {
		if cfg.startMarker != "" && strings.Contains(line, cfg.startMarker) {
			inSection = true
			continue
		}
		if cfg.stopMarker != "" && strings.Contains(line, cfg.stopMarker) {
			inSection = false
			continue
		}
		if !inSection || strings.Contains(line, "Alternative name") {
			continue
		}

		if m := cfg.pattern.FindStringSubmatch(line); m != nil {
			if d := cfg.parse(m); d != nil {
				devices = append(devices, *d)
			}
		}
	}
	return devices
}

var alsaList = listConfig{
	command: []string{"arecord", "-l"},
	pattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\],\s+device\s+(\d+):`),
	parse: func(m []string) *Device {
		return &Device{
			ID:   "plughw:CARD=" + m[2] + ",DEV=" + m[4],
			Name: strings.TrimSpace(m[3]),
		}
	},
}

var avfoundationList = listConfig{
	command:     []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
	startMarker: "AVFoundation audio devices:",
	stopMarker:  "AVFoundation video devices:",
	pattern:     regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
	parse: func(m []string) *Device {
		return &Device{ID: ":" + m[1], Name: strings.TrimSpace(m[2])}
	},
}

var dshowList = listConfig{
	command:     []string{"ffmpeg", "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
	startMarker: "DirectShow audio devices",
	stopMarker:  "DirectShow video devices",
	pattern:     regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"`),
	parse: func(m []string) *Device {
		name := strings.TrimSpace(m[1])
		return &Device{ID: "audio=" + name, Name: name}
	},
}

func arecordArgs(device string, f audio.Format, seconds int) []string {
	return []string{
		"-D", device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(f.SampleRate),
		"-c", strconv.Itoa(f.Channels),
		"-d", strconv.Itoa(seconds),
		"-t", "raw",
		"-q",
		"-",
	}
}

func ffmpegArgs(inputFormat string) func(string, audio.Format, int) []string {
	return func(device string, f audio.Format, seconds int) []string {
		return []string{
			"-f", inputFormat,
			"-i", device,
			"-t", strconv.Itoa(seconds),
			"-nostdin",
			"-hide_banner",
			"-loglevel", "error",
			"-vn",
			"-f", "s16le",
			"-ac", strconv.Itoa(f.Channels),
			"-ar", strconv.Itoa(f.SampleRate),
			"pipe:1",
		}
	}
}

var (
	linuxPlatform   = platformConfig{command: "arecord", list: alsaList, captureArgs: arecordArgs}
	darwinPlatform  = platformConfig{command: "ffmpeg", list: avfoundationList, captureArgs: ffmpegArgs("avfoundation")}
	windowsPlatform = platformConfig{command: "ffmpeg", list: dshowList, captureArgs: ffmpegArgs("dshow")}
)
