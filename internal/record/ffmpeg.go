package record

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ffmpegBackend captures through ffmpeg. On Linux it tries each input format
// in turn so a missing PulseAudio server falls through to ALSA.
type ffmpegBackend struct {
	formats      []string
	defaultInput string
	listDevices  func(ctx context.Context) (string, error)
}

func newFFMPEGLinuxBackend() Backend {
	return &ffmpegBackend{formats: []string{"pulse", "alsa"}, defaultInput: "default", listDevices: listLinuxDevices}
}

func newFFMPEGMacOSBackend() Backend {
	return &ffmpegBackend{formats: []string{"avfoundation"}, defaultInput: ":0", listDevices: listAVFoundationDevices}
}

func (b *ffmpegBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

func (b *ffmpegBackend) Start(ctx context.Context, opts Options) (Stream, error) {
	var errs []error
	for _, format := range b.formats {
		stream, err := startProcess(ctx, opts, "ffmpeg", b.args(format, opts)...)
		if err == nil {
			return stream, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", format, err))
	}
	return nil, errors.Join(errs...)
}

func (b *ffmpegBackend) args(format string, opts Options) []string {
	input := opts.Input
	if input == "" {
		input = b.defaultInput
	}
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", format, "-i", input,
		"-ac", strconv.Itoa(opts.channels()),
		"-ar", strconv.Itoa(opts.sampleRate()),
		"-f", "s16le", "-acodec", "pcm_s16le",
		"pipe:1",
	}
}

func (b *ffmpegBackend) ListDevices(ctx context.Context) (string, error) {
	return b.listDevices(ctx)
}

func listLinuxDevices(ctx context.Context) (string, error) {
	var sections []string

	if commandAvailable("pactl") {
		if out, err := commandOutput(ctx, "pactl", "list", "short", "sources"); err == nil {
			sections = append(sections, "PulseAudio/PipeWire sources:\n"+out)
		} else {
			sections = append(sections, "PulseAudio/PipeWire sources: "+err.Error())
		}
	}

	if commandAvailable("arecord") {
		if out, err := commandOutput(ctx, "arecord", "-L"); err == nil {
			sections = append(sections, "ALSA devices:\n"+out)
		} else {
			sections = append(sections, "ALSA devices: "+err.Error())
		}
	}

	if len(sections) == 0 {
		return "", errors.New("no device listing command available")
	}

	return strings.Join(sections, "\n\n"), nil
}

// ffmpeg exits non-zero after listing avfoundation devices, so only empty
// output is an error.
func listAVFoundationDevices(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	out, _ := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return "", fmt.Errorf("ffmpeg returned no device output")
	}
	return trimmed, nil
}
