package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func testFetcher() *Fetcher {
	f := NewFetcher(nil, true)
	f.Backoff = time.Millisecond
	return f
}

func TestFetchWithPinnedChecksum(t *testing.T) {
	t.Parallel()

	payload := []byte("ggml model bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, userAgent, r.UserAgent())
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "models", "ggml-tiny.bin")
	err := testFetcher().Fetch(context.Background(), Request{URL: server.URL, Destination: destination, SHA256: digest(payload)})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(destination)
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)
	require.NoFileExists(t, destination+".part")
}

func TestFetchUsesLinkedEtagWhenNotPinned(t *testing.T) {
	t.Parallel()

	payload := []byte("turbo")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Linked-Etag", `"`+digest([]byte("something else"))+`"`)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "ggml-large-v3-turbo.bin")
	err := testFetcher().Fetch(context.Background(), Request{URL: server.URL, Destination: destination})
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.NoFileExists(t, destination)
	require.NoFileExists(t, destination+".part")
}

func TestFetchChecksumMismatchIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("corrupt"))
	}))
	defer server.Close()

	err := testFetcher().Fetch(context.Background(), Request{
		URL:         server.URL,
		Destination: filepath.Join(t.TempDir(), "m.bin"),
		SHA256:      digest([]byte("expected")),
	})
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.EqualValues(t, 1, hits.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	payload := []byte("eventually")
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "m.bin")
	require.NoError(t, testFetcher().Fetch(context.Background(), Request{URL: server.URL, Destination: destination, SHA256: digest(payload)}))
	require.EqualValues(t, 3, hits.Load())
}

func TestFetchRequiresURLAndDestination(t *testing.T) {
	t.Parallel()

	require.Error(t, testFetcher().Fetch(context.Background(), Request{Destination: "x"}))
	require.Error(t, testFetcher().Fetch(context.Background(), Request{URL: "http://example.invalid"}))
}

func TestLinkedDigest(t *testing.T) {
	t.Parallel()

	sum := digest([]byte("x"))
	header := http.Header{}
	require.Empty(t, LinkedDigest(header))

	header.Set("X-Linked-Etag", `"`+sum+`"`)
	require.Equal(t, sum, LinkedDigest(header))

	header.Set("X-Linked-Etag", `W/"`+sum+`"`)
	require.Equal(t, sum, LinkedDigest(header))

	header.Set("X-Linked-Etag", `"abc123"`)
	require.Empty(t, LinkedDigest(header))
}

func TestVerifyFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin")
	payload := []byte("voxdict")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	require.NoError(t, VerifyFileChecksum(path, digest(payload)))
	require.NoError(t, VerifyFileChecksum(path, ""))
	require.ErrorIs(t, VerifyFileChecksum(path, "deadbeef"), ErrChecksumMismatch)
}
