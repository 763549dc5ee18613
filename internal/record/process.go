package record

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	// startupGrace is how long a capture process must stay alive before it
	// counts as started; device errors make recorders exit well within it.
	startupGrace = 150 * time.Millisecond
	stopTimeout  = 2 * time.Second
)

// processStream captures raw PCM from an external recorder writing to stdout.
// Stop sends SIGINT like a user pressing Ctrl-C, then SIGKILL after
// stopTimeout.
type processStream struct {
	name     string
	cmd      *exec.Cmd
	pcm      bytes.Buffer
	stderr   bytes.Buffer
	done     chan struct{}
	failed   chan error
	stopping atomic.Bool
	err      error
	logger   *zap.Logger
}

func startProcess(ctx context.Context, opts Options, name string, args ...string) (*processStream, error) {
	s := &processStream{
		name:   name,
		cmd:    exec.Command(name, args...),
		done:   make(chan struct{}),
		failed: make(chan error, 1),
		logger: opts.logger(),
	}
	s.cmd.Stdout = &s.pcm
	s.cmd.Stderr = &s.stderr

	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	go func() {
		s.err = s.cmd.Wait()
		close(s.done)
		if !s.stopping.Load() {
			s.failed <- s.failure("stopped while recording")
		}
	}()

	timer := time.NewTimer(startupGrace)
	defer timer.Stop()

	select {
	case <-s.done:
		return nil, s.failure("exited during startup")
	case <-ctx.Done():
		s.Abort()
		return nil, ctx.Err()
	case <-timer.C:
		return s, nil
	}
}

func (s *processStream) Stop(ctx context.Context) ([]byte, error) {
	s.stopping.Store(true)
	select {
	case <-s.done:
		if s.err != nil {
			return nil, s.failure("exited before stop")
		}
		return pcmPayload(s.pcm.Bytes()), nil
	default:
	}

	signalSent := s.cmd.Process.Signal(os.Interrupt) == nil
	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-s.done:
	case <-timer.C:
		s.logger.Warn("recording process ignored interrupt; killing", zap.String("backend", s.name))
		_ = s.cmd.Process.Kill()
		<-s.done
	case <-ctx.Done():
		s.Abort()
		return nil, ctx.Err()
	}

	if s.err != nil {
		if signalSent || stoppedBySignal(s.err) {
			s.logger.Debug("recording process exited after stop signal", zap.String("backend", s.name), zap.Error(s.err))
		} else {
			return nil, s.failure("failed")
		}
	}

	return pcmPayload(s.pcm.Bytes()), nil
}

func (s *processStream) Abort() {
	s.stopping.Store(true)
	select {
	case <-s.done:
		return
	default:
	}
	_ = s.cmd.Process.Kill()
	<-s.done
}

func (s *processStream) Failed() <-chan error {
	return s.failed
}

func (s *processStream) failure(what string) error {
	cause := "exit status 0"
	if s.err != nil {
		cause = s.err.Error()
	}
	msg := strings.TrimSpace(s.stderr.String())
	if msg != "" {
		return fmt.Errorf("%s %s: %s (%s)", s.name, what, cause, msg)
	}
	return fmt.Errorf("%s %s: %s", s.name, what, cause)
}

func stoppedBySignal(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && status.Signaled()
}

// pcmPayload strips a RIFF header when a recorder insists on writing one to a
// pipe. Streamed headers carry placeholder sizes, so everything after the
// data chunk id is taken as samples.
func pcmPayload(raw []byte) []byte {
	if len(raw) < 12 || string(raw[:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return raw
	}

	offset := 12
	for offset+8 <= len(raw) {
		id := string(raw[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		offset += 8
		if id == "data" {
			return raw[offset:]
		}
		offset += size + size%2
	}
	return nil
}
