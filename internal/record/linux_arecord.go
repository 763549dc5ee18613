package record

import (
	"context"
	"strconv"
)

type alsaBackend struct{}

func newALSARecorderBackend() Backend {
	return &alsaBackend{}
}

func (b *alsaBackend) Name() string {
	return "arecord"
}

func (b *alsaBackend) Available() bool {
	return commandAvailable("arecord")
}

func (b *alsaBackend) Start(ctx context.Context, opts Options) (Stream, error) {
	return startProcess(ctx, opts, "arecord", alsaArgs(opts)...)
}

func alsaArgs(opts Options) []string {
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(opts.sampleRate()), "-c", strconv.Itoa(opts.channels())}
	if opts.Input != "" {
		args = append(args, "-D", opts.Input)
	}
	return append(args, "-")
}

func (b *alsaBackend) ListDevices(ctx context.Context) (string, error) {
	return commandOutput(ctx, "arecord", "-L")
}
