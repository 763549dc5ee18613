package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/audio"
)

var (
	ErrNoBackendAvailable = errors.New("no recording backend available")
	ErrAlreadyRecording   = errors.New("recording already in progress")
	ErrNotRecording       = errors.New("no recording in progress")
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

type Options struct {
	SampleRate int
	Channels   int
	// Input is a backend-specific device name; empty selects the default source.
	Input  string
	Logger *zap.Logger
}

func (o Options) sampleRate() int {
	if o.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return o.SampleRate
}

func (o Options) channels() int {
	if o.Channels <= 0 {
		return DefaultChannels
	}
	return o.Channels
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Stream is a running capture. Stop returns the interleaved s16le samples
// gathered since Start; Abort discards them. Failed yields one error if the
// capture dies before either is called.
type Stream interface {
	Stop(ctx context.Context) ([]byte, error)
	Abort()
	Failed() <-chan error
}

type Backend interface {
	Name() string
	Available() bool
	Start(ctx context.Context, opts Options) (Stream, error)
	ListDevices(ctx context.Context) (string, error)
}

// Audio describes a finished capture written to disk.
type Audio struct {
	Path     string
	Backend  string
	Bytes    int
	Duration time.Duration
	Level    audio.Level
}

// Recorder owns at most one active stream. Begin tries the configured
// backends in priority order; End encodes the buffered samples as WAV.
type Recorder struct {
	backends  []Backend
	preferred string
	opts      Options

	mu      sync.Mutex
	active  Stream
	backend string
	started time.Time
}

func NewRecorder(backends []Backend, preferred string, opts Options) *Recorder {
	return &Recorder{backends: backends, preferred: preferred, opts: opts}
}

func (r *Recorder) Begin(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}

	stream, name, err := startWithFallback(ctx, r.backends, r.preferred, r.opts)
	if err != nil {
		return err
	}

	r.active = stream
	r.backend = name
	r.started = time.Now()
	r.opts.logger().Debug("recording started", zap.String("backend", name), zap.Int("sample_rate", r.opts.sampleRate()), zap.Int("channels", r.opts.channels()))
	return nil
}

// End stops the active stream and writes it to path. The stream is released
// even when encoding fails.
func (r *Recorder) End(ctx context.Context, path string) (Audio, error) {
	r.mu.Lock()
	stream, name, started := r.active, r.backend, r.started
	r.active = nil
	r.mu.Unlock()

	if stream == nil {
		return Audio{}, ErrNotRecording
	}

	pcm, err := stream.Stop(ctx)
	if err != nil {
		return Audio{}, fmt.Errorf("%s: %w", name, err)
	}

	if err := writeWAVFile(path, pcm, r.opts.sampleRate(), r.opts.channels()); err != nil {
		return Audio{}, err
	}

	bytesPerSecond := r.opts.sampleRate() * r.opts.channels() * 2
	result := Audio{
		Path:     path,
		Backend:  name,
		Bytes:    len(pcm),
		Duration: time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSecond),
		Level:    audio.MeasurePCM16(pcm),
	}
	r.opts.logger().Debug("recording stopped",
		zap.String("backend", name),
		zap.Duration("wall", time.Since(started)),
		zap.Duration("audio", result.Duration),
		zap.Float64("rms_dbfs", result.Level.RMSdBFS),
		zap.Float64("peak_dbfs", result.Level.PeakdBFS),
	)
	return result, nil
}

// Abort discards the active stream, if any.
func (r *Recorder) Abort() {
	r.mu.Lock()
	stream := r.active
	r.active = nil
	r.mu.Unlock()

	if stream != nil {
		stream.Abort()
	}
}

// Failed reports a device or recorder process that died mid-recording. It is
// nil while no stream is active.
func (r *Recorder) Failed() <-chan error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.Failed()
}

func writeWAVFile(path string, pcm []byte, sampleRate, channels int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := audio.WritePCM16WAV(f, pcm, sampleRate, channels); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

func startWithFallback(ctx context.Context, backends []Backend, preferred string, opts Options) (Stream, string, error) {
	ordered, err := orderBackends(backends, preferred)
	if err != nil {
		return nil, "", err
	}

	var errs []error
	for _, backend := range ordered {
		if !backend.Available() {
			continue
		}

		stream, err := backend.Start(ctx, opts)
		if err == nil {
			return stream, backend.Name(), nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, "", err
		}

		opts.logger().Debug("recording backend failed to start", zap.String("backend", backend.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	if len(errs) == 0 {
		return nil, "", ErrNoBackendAvailable
	}
	return nil, "", fmt.Errorf("start recording: %w", errors.Join(errs...))
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

// orderBackends moves the preferred backend to the front and keeps the rest
// as fallbacks.
func orderBackends(backends []Backend, preferred string) ([]Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred == "" || preferred == "auto" {
		return backends, nil
	}

	ordered := make([]Backend, 0, len(backends))
	for _, backend := range backends {
		if backend.Name() == preferred {
			ordered = append(ordered, backend)
		}
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}
	for _, backend := range backends {
		if backend.Name() != preferred {
			ordered = append(ordered, backend)
		}
	}

	return ordered, nil
}

func DefaultBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{newPulseBackend(), newPipeWireBackend(), newALSARecorderBackend(), newFFMPEGLinuxBackend()}
	case "darwin":
		return []Backend{newFFMPEGMacOSBackend()}
	default:
		return nil
	}
}

// BackendNames lists the backends known on this OS, in priority order.
func BackendNames() []string {
	names := []string{"auto"}
	for _, backend := range DefaultBackends(runtime.GOOS) {
		names = append(names, backend.Name())
	}
	return names
}

func NewBackend(preferred string) (Backend, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return SelectBackend(backends, preferred)
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}
