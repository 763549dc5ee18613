package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxdict/internal/clipboard"
	"github.com/fmueller/voxdict/internal/platform"
	"github.com/fmueller/voxdict/internal/whisper"
)

// testEnv keeps every path a command touches inside the test. The runtime
// dir is short because unix socket paths are limited to ~100 bytes.
func testEnv(t *testing.T) platform.Env {
	t.Helper()

	home := t.TempDir()
	runtimeDir, err := os.MkdirTemp("", "vd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(runtimeDir) })

	return platform.Env{
		OS:            "linux",
		Home:          home,
		XDGConfigHome: filepath.Join(home, "config"),
		XDGDataHome:   filepath.Join(home, "data"),
		XDGRuntimeDir: runtimeDir,
		TempDir:       filepath.Join(home, "tmp"),
		UID:           os.Getuid(),
	}
}

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeClipboard) copied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeEngine struct {
	text string
	err  error

	mu       sync.Mutex
	requests []whisper.TranscriptionRequest
}

func (f *fakeEngine) Transcribe(_ context.Context, req whisper.TranscriptionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if err := os.WriteFile(req.OutputBase+".txt", []byte(f.text), 0o600); err != nil {
		return "", err
	}
	return f.text, f.err
}

func (f *fakeEngine) calls() []whisper.TranscriptionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]whisper.TranscriptionRequest(nil), f.requests...)
}

// newTestApp returns an app whose engine, clipboard and environment are fakes.
func newTestApp(t *testing.T, engine *fakeEngine, clip *fakeClipboard) *appState {
	t.Helper()

	env := testEnv(t)
	app := newAppState()
	app.envFn = func() (platform.Env, error) { return env, nil }
	app.prepareFn = func(context.Context) (whisper.Engine, whisper.TranscriptionRequest, error) {
		return engine, whisper.TranscriptionRequest{ModelPath: "/models/ggml-small.bin", Language: app.cfg.Language}, nil
	}
	app.clipboardFn = func() (clipboard.Clipboard, error) { return clip, nil }
	return app
}

func runApp(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runAppContext(context.Background(), app, args)
}

func runAppContext(ctx context.Context, app *appState, args []string) (stdout string, stderr string, err error) {
	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetContext(ctx)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(t, newTestApp(t, &fakeEngine{}, &fakeClipboard{}), args)
}
