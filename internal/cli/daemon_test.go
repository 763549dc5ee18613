//go:build unix

package cli

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxdict/internal/ipc"
	"github.com/fmueller/voxdict/internal/record"
	"github.com/fmueller/voxdict/internal/session"
)

type fakeCapture struct {
	mu     sync.Mutex
	active bool
}

func (f *fakeCapture) Begin(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return record.ErrAlreadyRecording
	}
	f.active = true
	return nil
}

func (f *fakeCapture) End(_ context.Context, path string) (record.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return record.Audio{}, record.ErrNotRecording
	}
	f.active = false
	return record.Audio{Path: path, Backend: "fake"}, os.WriteFile(path, []byte("RIFF"), 0o600)
}

func (f *fakeCapture) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}

func (f *fakeCapture) Failed() <-chan error { return nil }

type daemon struct {
	socket  string
	workDir string
	stop    func()
}

func startDaemon(t *testing.T, app *appState, args ...string) *daemon {
	t.Helper()

	env, err := app.envFn()
	require.NoError(t, err)

	app.captureFn = func() session.Capture { return &fakeCapture{} }
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := runAppContext(ctx, app, append([]string{"run", "--no-progress", "--sound=false"}, args...))
		done <- err
	}()

	var stopped bool
	cancel := func() {
		if stopped {
			return
		}
		stopped = true
		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
	t.Cleanup(cancel)

	d := &daemon{socket: env.SocketPath(), workDir: env.WorkDir(""), stop: cancel}
	require.Eventually(t, func() bool {
		alive, _ := ipc.Probe(context.Background(), d.socket, time.Second)
		return alive
	}, 5*time.Second, 10*time.Millisecond)
	return d
}

func (d *daemon) send(t *testing.T, command string) ipc.Response {
	t.Helper()
	resp, err := ipc.Send(context.Background(), d.socket, ipc.Request{Command: command}, time.Second)
	require.NoError(t, err)
	return resp
}

func (d *daemon) waitForState(t *testing.T, state string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return d.send(t, ipc.CommandStatus).State == state
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDaemonDictatesOverIPC(t *testing.T) {
	engine := &fakeEngine{text: "こんにちは世界"}
	clip := &fakeClipboard{}
	app := newTestApp(t, engine, clip)
	d := startDaemon(t, app, "--keep-newline")

	require.True(t, d.send(t, ipc.CommandToggle).OK)
	d.waitForState(t, "recording")
	require.True(t, d.send(t, ipc.CommandToggle).OK)

	require.Eventually(t, func() bool { return len(clip.copied()) == 1 }, 5*time.Second, 10*time.Millisecond)
	d.waitForState(t, "idle")
	require.Equal(t, []string{"こんにちは世界\n"}, clip.copied())

	entries, err := os.ReadDir(d.workDir)
	require.NoError(t, err)
	require.Empty(t, entries)

	d.stop()
	_, err = os.Stat(d.socket)
	require.True(t, errors.Is(err, os.ErrNotExist), "socket should be removed, got %v", err)
}

func TestDaemonCancelAndStatus(t *testing.T) {
	engine := &fakeEngine{text: "unused"}
	app := newTestApp(t, engine, &fakeClipboard{})
	d := startDaemon(t, app)

	resp := d.send(t, ipc.CommandCancel)
	require.False(t, resp.OK)
	require.Equal(t, "nothing to cancel", resp.Error)

	require.True(t, d.send(t, ipc.CommandToggle).OK)
	d.waitForState(t, "recording")
	require.True(t, d.send(t, ipc.CommandCancel).OK)
	d.waitForState(t, "idle")
	require.Empty(t, engine.calls())
}

func TestSecondDaemonFailsFast(t *testing.T) {
	app := newTestApp(t, &fakeEngine{}, &fakeClipboard{})
	startDaemon(t, app)

	second := newTestApp(t, &fakeEngine{}, &fakeClipboard{})
	second.envFn = app.envFn
	_, _, err := runApp(t, second, []string{"run", "--no-progress", "--sound=false"})
	require.ErrorIs(t, err, ipc.ErrAlreadyRunning)
}
