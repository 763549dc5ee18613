package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	artifactPrefix = "voxdict-"
	audioFileName  = "audio.wav"
)

// Workspace hands out one private directory per session under root. A
// directory that could not be removed is retried on the next Acquire.
type Workspace struct {
	root   string
	remove func(string) error
	logger *zap.Logger

	mu      sync.Mutex
	pending []string
}

type WorkspaceOption func(*Workspace)

// WithRemover replaces os.RemoveAll, which lets tests count deletions.
func WithRemover(remove func(string) error) WorkspaceOption {
	return func(w *Workspace) { w.remove = remove }
}

func NewWorkspace(root string, logger *zap.Logger, opts ...WorkspaceOption) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", root, err)
	}

	w := &Workspace{root: root, remove: os.RemoveAll, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Sweep deletes artifacts left behind by a previous process that died
// mid-session. It runs once at daemon start, before any session exists.
func (w *Workspace) Sweep() (int, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return 0, fmt.Errorf("read workspace: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), artifactPrefix) {
			continue
		}
		path := filepath.Join(w.root, entry.Name())
		if err := w.remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		w.logger.Info("removed stale session artifacts", zap.Int("count", removed), zap.String("root", w.root))
	}
	return removed, errors.Join(errs...)
}

func (w *Workspace) Acquire(sessionID string) (*Artifact, error) {
	w.retryPending()

	dir := filepath.Join(w.root, artifactPrefix+sessionID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Artifact{dir: dir, workspace: w}, nil
}

func (w *Workspace) retryPending() {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, dir := range pending {
		if err := w.remove(dir); err != nil {
			w.logger.Warn("artifact still not removable", zap.String("path", dir), zap.Error(err))
			w.deferRemoval(dir)
		}
	}
}

func (w *Workspace) deferRemoval(dir string) {
	w.mu.Lock()
	w.pending = append(w.pending, dir)
	w.mu.Unlock()
}

// Artifact is a session's scratch directory: the captured WAV and the
// engine's text side file both live inside it.
type Artifact struct {
	dir       string
	workspace *Workspace
	once      sync.Once
	err       error
}

func (a *Artifact) Dir() string {
	return a.dir
}

func (a *Artifact) AudioPath() string {
	return filepath.Join(a.dir, audioFileName)
}

// OutputBase is the prefix the engine appends ".txt" to.
func (a *Artifact) OutputBase() string {
	return strings.TrimSuffix(a.AudioPath(), filepath.Ext(audioFileName))
}

// Release deletes the directory. Only the first call attempts removal.
func (a *Artifact) Release() error {
	a.once.Do(func() {
		if err := a.workspace.remove(a.dir); err != nil {
			a.workspace.deferRemoval(a.dir)
			a.err = fail(KindArtifactCleanup, err)
		}
	})
	return a.err
}

// newSessionID returns a time-ordered id so artifact names sort by start.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
