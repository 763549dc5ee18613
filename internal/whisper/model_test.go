package whisper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModelDefaultNamedModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	resolved, err := ResolveModel("", modelDir)
	require.NoError(t, err)
	require.Equal(t, DefaultModel, resolved.Name)
	require.Equal(t, filepath.Join(modelDir, "ggml-small.bin"), resolved.Path)
	require.True(t, resolved.NeedsDownload)
	require.False(t, resolved.IsCustomPath)
}

func TestResolveModelExistingNamedModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	modelPath := filepath.Join(modelDir, "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("ok"), 0o644))

	resolved, err := ResolveModel("tiny", modelDir)
	require.NoError(t, err)
	require.Equal(t, "tiny", resolved.Name)
	require.Equal(t, modelPath, resolved.Path)
	require.False(t, resolved.NeedsDownload)
}

func TestResolveModelCustomPath(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "custom.bin")
	require.NoError(t, os.WriteFile(custom, []byte("x"), 0o644))

	resolved, err := ResolveModel(custom, t.TempDir())
	require.NoError(t, err)
	require.True(t, resolved.IsCustomPath)
	require.Equal(t, custom, resolved.Path)
}

func TestResolveModelUnknownModel(t *testing.T) {
	t.Parallel()

	_, err := ResolveModel("super-huge", t.TempDir())
	require.Error(t, err)
}

func TestRegistryChecksumsAreHexDigestsWhenPinned(t *testing.T) {
	t.Parallel()

	for _, name := range ModelNames() {
		model, ok := LookupModel(name)
		require.True(t, ok)
		require.NotEmpty(t, model.Size, name)
		if model.SHA256 == "" {
			continue
		}
		require.Regexpf(t, `^[0-9a-f]{64}$`, model.SHA256, "model %s", name)
	}
}

func TestResolveModelTurboUsesServerDigest(t *testing.T) {
	t.Parallel()

	resolved, err := ResolveModel("large-v3-turbo", t.TempDir())
	require.NoError(t, err)
	require.Empty(t, resolved.SHA256)
	require.True(t, resolved.NeedsDownload)
	require.Contains(t, resolved.URL, "ggml-large-v3-turbo.bin")
}

func TestResolveModelNamedRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := ResolveModel("tiny", " ")
	require.ErrorContains(t, err, "model directory")
}

func TestResolveModelMissingCustomPath(t *testing.T) {
	t.Parallel()

	_, err := ResolveModel(filepath.Join(t.TempDir(), "gone.bin"), t.TempDir())
	require.ErrorContains(t, err, "does not exist")
}
