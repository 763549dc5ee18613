package clipboard

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are unix only")
	}

	path := filepath.Join(t.TempDir(), "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCommandClipboardWritesStdin(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "cat > \"$1\"\n")
	out := filepath.Join(t.TempDir(), "clipboard.txt")

	c := NewCommandClipboard([]string{script, out})
	require.NoError(t, c.SetText(context.Background(), "音声入力のテスト"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "音声入力のテスト", string(data))
}

func TestCommandClipboardReportsStderr(t *testing.T) {
	t.Parallel()

	c := NewCommandClipboard([]string{writeScript(t, "echo 'no display' >&2\nexit 1\n")})
	err := c.SetText(context.Background(), "x")
	require.ErrorContains(t, err, "no display")
}

func TestCommandClipboardWithoutArgv(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewCommandClipboard(nil).SetText(context.Background(), "x"), ErrUnavailable)
}

func TestDetectPrefersExplicitArgv(t *testing.T) {
	t.Parallel()

	c, err := Detect([]string{"my-copy", "--primary"})
	require.NoError(t, err)
	require.Equal(t, "my-copy", c.(*CommandClipboard).Name())
}

func TestDetectFindsWlCopyOnPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux clipboard helpers only")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wl-copy"), []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	c, err := Detect(nil)
	require.NoError(t, err)
	require.Equal(t, "wl-copy", c.(*CommandClipboard).Name())
}

func TestCommandPasterReportsFailure(t *testing.T) {
	t.Parallel()

	p := NewCommandPaster([]string{writeScript(t, "echo 'compositor refused' >&2\nexit 2\n")})
	require.ErrorContains(t, p.Paste(context.Background()), "compositor refused")
	require.Error(t, NewCommandPaster(nil).Paste(context.Background()))
}

func TestDetectPasterPrefersExplicitArgv(t *testing.T) {
	t.Parallel()

	p := DetectPaster([]string{"hyprctl", "dispatch", "sendshortcut", "CTRL,V,"})
	require.IsType(t, &CommandPaster{}, p)
}

func TestPasteCandidatesPerPlatform(t *testing.T) {
	t.Parallel()

	require.Equal(t, "osascript", pasteCandidates("darwin")[0][0])
	require.Equal(t, "wtype", pasteCandidates("linux")[0][0])
}
