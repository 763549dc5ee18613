package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const userAgent = "voxdict/1"

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")

	digestPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// Request describes one model download. When SHA256 is empty the digest
// advertised in the server's X-Linked-Etag header is used instead, which is
// how Hugging Face exposes LFS object hashes.
type Request struct {
	URL         string
	Destination string
	SHA256      string
	Label       string
}

type Fetcher struct {
	Client     *http.Client
	Logger     *zap.Logger
	Retries    int
	NoProgress bool
	// Backoff is the base delay between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
}

func NewFetcher(logger *zap.Logger, noProgress bool) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		Client:     &http.Client{Timeout: 30 * time.Minute},
		Logger:     logger,
		Retries:    3,
		NoProgress: noProgress,
		Backoff:    300 * time.Millisecond,
	}
}

// Fetch downloads req.URL into req.Destination through a .part file that is
// renamed into place only after the digest matches.
func (f *Fetcher) Fetch(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return errors.New("download URL is required")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return errors.New("destination path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	retries := max(f.Retries, 1)
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			f.Logger.Warn("retrying download", zap.Int("attempt", attempt), zap.Int("max", retries), zap.String("url", req.URL), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * f.Backoff):
			}
		}

		lastErr = f.fetchOnce(ctx, req)
		if lastErr == nil || errors.Is(lastErr, ErrChecksumMismatch) || ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, req Request) (err error) {
	partPath := req.Destination + ".part"
	part, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	defer func() {
		_ = part.Close()
		if err != nil {
			_ = os.Remove(partPath)
		}
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	expected := strings.ToLower(strings.TrimSpace(req.SHA256))
	if expected == "" {
		expected = LinkedDigest(resp.Header)
	}

	hash := sha256.New()
	sink := io.MultiWriter(part, hash)
	bar := f.progress(req, resp.ContentLength)
	if bar != nil {
		sink = io.MultiWriter(part, hash, bar)
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if expected != "" && actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	if expected == "" {
		f.Logger.Warn("download has no published digest; integrity not verified", zap.String("url", req.URL))
	}

	if err := part.Sync(); err != nil {
		return fmt.Errorf("sync partial file: %w", err)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(partPath, req.Destination); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}

	f.Logger.Info("download complete", zap.String("path", req.Destination), zap.String("sha256", actual))
	return nil
}

func (f *Fetcher) progress(req Request, contentLength int64) *progressbar.ProgressBar {
	if f.NoProgress || contentLength <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}

	label := req.Label
	if label == "" {
		label = filepath.Base(req.Destination)
	}
	return progressbar.NewOptions64(
		contentLength,
		progressbar.OptionSetDescription("downloading "+label),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

// LinkedDigest extracts a sha256 digest from X-Linked-Etag, returning "" when
// the header is absent or is not a sha256 hex string.
func LinkedDigest(header http.Header) string {
	value := strings.Trim(strings.TrimSpace(header.Get("X-Linked-Etag")), `"`)
	value = strings.TrimPrefix(strings.ToLower(value), "w/")
	value = strings.Trim(value, `"`)
	if digestPattern.MatchString(value) {
		return value
	}
	return ""
}

func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedSHA256))
	if expected == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}

	if actual := hex.EncodeToString(hash.Sum(nil)); actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}
