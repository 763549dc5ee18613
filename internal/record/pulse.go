package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// pulseBackend records in-process over the PulseAudio native protocol, which
// PipeWire also serves through pipewire-pulse.
type pulseBackend struct{}

func newPulseBackend() Backend {
	return &pulseBackend{}
}

func (b *pulseBackend) Name() string {
	return "pulse"
}

func (b *pulseBackend) Available() bool {
	if os.Getenv("PULSE_SERVER") != "" {
		return true
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(runtimeDir, "pulse", "native"))
	return err == nil
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("voxdict"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

func (b *pulseBackend) Start(ctx context.Context, opts Options) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := resolveSource(client, opts.Input)
	if err != nil {
		client.Close()
		return nil, err
	}

	layout := pulse.RecordMono
	if opts.channels() == 2 {
		layout = pulse.RecordStereo
	}

	s := &pulseStream{client: client, failed: make(chan error, 1), quit: make(chan struct{})}
	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		layout,
		pulse.RecordSampleRate(opts.sampleRate()),
		pulse.RecordMediaName("voxdict dictation"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	s.stream = stream
	stream.Start()
	go s.watch(pulseWatchInterval)
	return s, nil
}

func resolveSource(client *pulse.Client, input string) (*pulse.Source, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "default" {
		source, err := client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("read default source: %w", err)
		}
		return source, nil
	}

	source, err := client.SourceByID(input)
	if err != nil {
		return nil, fmt.Errorf("resolve source %q: %w", input, err)
	}
	return source, nil
}

func (b *pulseBackend) ListDevices(_ context.Context) (string, error) {
	client, err := newPulseClient()
	if err != nil {
		return "", err
	}
	defer client.Close()

	sources, err := client.ListSources()
	if err != nil {
		return "", fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		return "", errors.New("pulse server reported no sources")
	}

	defaultID := ""
	if source, err := client.DefaultSource(); err == nil {
		defaultID = source.ID()
	}

	lines := make([]string, 0, len(sources))
	for _, source := range sources {
		marker := " "
		if source.ID() == defaultID {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s\t%s", marker, source.ID(), source.Name()))
	}
	return strings.Join(lines, "\n"), nil
}

const pulseWatchInterval = 100 * time.Millisecond

type pulseStream struct {
	client *pulse.Client
	stream *pulse.RecordStream
	failed chan error
	quit   chan struct{}

	mu      sync.Mutex
	pcm     []byte
	stopped bool
}

// watch polls the record stream because the client only exposes a lost
// server or a failed writer as state.
func (s *pulseStream) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if err := s.streamError(); err != nil {
				s.failed <- err
				return
			}
		}
	}
}

func (s *pulseStream) streamError() error {
	if err := s.stream.Error(); err != nil {
		return fmt.Errorf("pulse record stream: %w", err)
	}
	if s.stream.Closed() {
		return errors.New("pulse record stream closed by the server")
	}
	return nil
}

func (s *pulseStream) Failed() <-chan error {
	return s.failed
}

func (s *pulseStream) onPCM(buffer []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.EOF
	}
	s.pcm = append(s.pcm, buffer...)
	return len(buffer), nil
}

func (s *pulseStream) Stop(_ context.Context) ([]byte, error) {
	lost := s.streamError()
	s.close()
	if lost != nil {
		return nil, lost
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pcm, nil
}

func (s *pulseStream) Abort() {
	s.close()

	s.mu.Lock()
	s.pcm = nil
	s.mu.Unlock()
}

func (s *pulseStream) close() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.quit)

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	s.client.Close()
}

// writerFunc adapts a callback to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
