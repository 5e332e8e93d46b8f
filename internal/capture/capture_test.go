package capture

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/muzak/internal/audio"
)

const arecordOutput = `**** List of CAPTURE Hardware Devices ****
card 0: PCH [HDA Intel PCH], device 0: ALC3246 Analog [ALC3246 Analog]
  Subdevices: 1/1
  Subdevice #0: subdevice #0
card 1: Device [USB Audio Device], device 0: USB Audio [USB Audio]
  Subdevices: 1/1
card 2: Device_1 [USB Audio Device], device 0: USB Audio [USB Audio]
`

const avfoundationOutput = `[AVFoundation indev @ 0x7f] AVFoundation video devices:
[AVFoundation indev @ 0x7f] [0] FaceTime HD Camera
[AVFoundation indev @ 0x7f] AVFoundation audio devices:
[AVFoundation indev @ 0x7f] [0] MacBook Pro Microphone
[AVFoundation indev @ 0x7f] [1] BlackHole 2ch
: Input/output error
`

const dshowOutput = `[dshow @ 0000] DirectShow video devices
[dshow @ 0000]  "Integrated Camera"
[dshow @ 0000] DirectShow audio devices
[dshow @ 0000]  "Microphone (Realtek Audio)"
[dshow @ 0000]     Alternative name "@device_cm_{33D9A762}"
[dshow @ 0000]  "Line In (USB Audio)"
`

func TestParseDeviceLists(t *testing.T) {
	tests := []struct {
		name   string
		output string
		cfg    listConfig
		want   []Device
	}{
		{"alsa", arecordOutput, alsaList, []Device{
			{ID: "plughw:CARD=PCH,DEV=0", Name: "HDA Intel PCH"},
			{ID: "plughw:CARD=Device,DEV=0", Name: "USB Audio Device"},
			{ID: "plughw:CARD=Device_1,DEV=0", Name: "USB Audio Device"},
		}},
		{"avfoundation", avfoundationOutput, avfoundationList, []Device{
			{ID: ":0", Name: "MacBook Pro Microphone"},
			{ID: ":1", Name: "BlackHole 2ch"},
		}},
		{"dshow", dshowOutput, dshowList, []Device{
			{ID: "audio=Microphone (Realtek Audio)", Name: "Microphone (Realtek Audio)"},
			{ID: "audio=Line In (USB Audio)", Name: "Line In (USB Audio)"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDeviceList(tt.output, tt.cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d devices %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("device %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUniqueNames(t *testing.T) {
	got := uniqueNames([]Device{{ID: "a", Name: "USB"}, {ID: "b", Name: "USB"}, {ID: "c", Name: "Mic"}})
	if got[0].Name != "USB" || got[1].Name != "USB #2" || got[2].Name != "Mic" {
		t.Errorf("unexpected names: %+v", got)
	}
}

type fakeRun struct {
	stdout, stderr []byte
	err            error
	calls          [][]string
}

func (f *fakeRun) run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.stdout, f.stderr, f.err
}

func TestListSourcesMapsNamesToIDs(t *testing.T) {
	fr := &fakeRun{stdout: []byte(arecordOutput)}
	c := NewCommand(44100, 1, WithRunner(fr.run), withPlatform(linuxPlatform))

	names, err := c.ListSources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"HDA Intel PCH", "USB Audio Device", "USB Audio Device #2"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %q", names)
	}

	fr.stdout = audio.EncodeS16LE(make([]float64, 44100))
	if _, err := c.Capture(context.Background(), "USB Audio Device #2", time.Second); err != nil {
		t.Fatal(err)
	}
	last := fr.calls[len(fr.calls)-1]
	if last[0] != "arecord" || last[2] != "plughw:CARD=Device_1,DEV=0" {
		t.Errorf("capture command = %q", last)
	}
}

func TestListSourcesEmpty(t *testing.T) {
	fr := &fakeRun{stdout: []byte("**** List of CAPTURE Hardware Devices ****\n")}
	c := NewCommand(44100, 1, WithRunner(fr.run), withPlatform(linuxPlatform))
	if _, err := c.ListSources(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Errorf("err = %v, want ErrNoSources", err)
	}
}

func TestCaptureSilenceIsNotAnError(t *testing.T) {
	fr := &fakeRun{stdout: make([]byte, 2*8000)}
	c := NewCommand(8000, 1, WithRunner(fr.run), withPlatform(linuxPlatform))

	clip, err := c.Capture(context.Background(), "default", time.Second)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if clip.Amplitude != 0 {
		t.Errorf("amplitude = %f", clip.Amplitude)
	}
	if clip.Duration != time.Second {
		t.Errorf("duration = %v", clip.Duration)
	}
}

func TestCaptureNoDataIsDeviceUnavailable(t *testing.T) {
	fr := &fakeRun{stderr: []byte("arecord: main:828: audio open error: No such device"), err: errors.New("exit status 1")}
	c := NewCommand(8000, 1, WithRunner(fr.run), withPlatform(linuxPlatform))

	_, err := c.Capture(context.Background(), "USB", time.Second)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if !strings.Contains(err.Error(), "No such device") {
		t.Errorf("stderr not surfaced: %v", err)
	}
}

func TestCaptureShortReadIsTransient(t *testing.T) {
	fr := &fakeRun{stdout: make([]byte, 100), err: errors.New("signal: killed")}
	c := NewCommand(8000, 1, WithRunner(fr.run), withPlatform(linuxPlatform))

	_, err := c.Capture(context.Background(), "USB", time.Second)
	if err == nil || errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want transient error", err)
	}
}

func TestCaptureMissingToolIsTransient(t *testing.T) {
	fr := &fakeRun{err: &exec.Error{Name: "arecord", Err: exec.ErrNotFound}}
	c := NewCommand(8000, 1, WithRunner(fr.run), withPlatform(linuxPlatform))

	_, err := c.Capture(context.Background(), "USB", time.Second)
	if err == nil || errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want transient error", err)
	}
}

func TestCaptureCancelled(t *testing.T) {
	fr := &fakeRun{}
	c := NewCommand(8000, 1, WithRunner(fr.run), withPlatform(darwinPlatform))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Capture(ctx, ":0", time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("avfoundation")(":1", audio.S16(44100, 2), 8)
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f avfoundation", "-i :1", "-t 8", "-ac 2", "-ar 44100", "pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}
