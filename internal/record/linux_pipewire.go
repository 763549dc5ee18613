package record

import (
	"context"
	"errors"
	"strconv"
)

type pipewireBackend struct{}

func newPipeWireBackend() Backend {
	return &pipewireBackend{}
}

func (b *pipewireBackend) Name() string {
	return "pw-record"
}

func (b *pipewireBackend) Available() bool {
	return commandAvailable("pw-record")
}

func (b *pipewireBackend) Start(ctx context.Context, opts Options) (Stream, error) {
	return startProcess(ctx, opts, "pw-record", pipewireArgs(opts)...)
}

func pipewireArgs(opts Options) []string {
	args := []string{"--rate", strconv.Itoa(opts.sampleRate()), "--channels", strconv.Itoa(opts.channels()), "--format", "s16"}
	if opts.Input != "" {
		args = append(args, "--target", opts.Input)
	}
	return append(args, "-")
}

func (b *pipewireBackend) ListDevices(ctx context.Context) (string, error) {
	if commandAvailable("pw-cli") {
		return commandOutput(ctx, "pw-cli", "ls", "Node")
	}

	if out, err := commandOutput(ctx, "pw-record", "--list-targets"); err == nil {
		return out, nil
	}

	if commandAvailable("pactl") {
		return commandOutput(ctx, "pactl", "list", "short", "sources")
	}

	return "", errors.New("no pipewire device listing command available")
}
