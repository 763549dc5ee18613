package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildInfo(settings map[string]string) *debug.BuildInfo {
	info := &debug.BuildInfo{}
	for key, value := range settings {
		info.Settings = append(info.Settings, debug.BuildSetting{Key: key, Value: value})
	}
	return info
}

func TestResolveVersion_NoBuildInfo(t *testing.T) {
	t.Parallel()
	require.Equal(t, "1.0.0", resolveVersion("1.0.0", "", nil))
}

func TestResolveVersion_EmptyBaseFallsBackToZero(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0.0.0", resolveVersion("", "", nil))
}

func TestResolveVersion_LinkerCommitWins(t *testing.T) {
	t.Parallel()
	info := buildInfo(map[string]string{"vcs.revision": "ffffffffffff"})
	require.Equal(t, "1.0.0-gabcdef1", resolveVersion("1.0.0", "abcdef1234", info))
}

func TestResolveVersion_VCSRevision(t *testing.T) {
	t.Parallel()
	info := buildInfo(map[string]string{"vcs.revision": "0123456789abcdef"})
	require.Equal(t, "1.0.0-g0123456", resolveVersion("1.0.0", "", info))
}

func TestResolveVersion_DirtyTree(t *testing.T) {
	t.Parallel()
	info := buildInfo(map[string]string{"vcs.revision": "0123456789abcdef", "vcs.modified": "true"})
	require.Equal(t, "1.0.0-g0123456-dirty", resolveVersion("1.0.0", "", info))
}

func TestResolveVersion_ShortRevisionKept(t *testing.T) {
	t.Parallel()
	require.Equal(t, "2.1.0-gabc", resolveVersion("2.1.0", "abc", nil))
}
