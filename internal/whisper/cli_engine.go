package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 2 * time.Minute
	defaultGracePeriod = 2 * time.Second
	probeTimeout       = 5 * time.Second
	stderrTailBytes    = 2048
)

type EngineOptions struct {
	// Timeout bounds one Transcribe call; the process group is terminated
	// once it elapses.
	Timeout time.Duration
	// GracePeriod is the wait between SIGTERM and SIGKILL.
	GracePeriod time.Duration
	// Mode forces an output mode; OutputAuto probes the binary once.
	Mode   OutputMode
	Logger *zap.Logger
}

// CLIEngine runs whisper.cpp's whisper-cli as a child process per request.
type CLIEngine struct {
	executable  string
	timeout     time.Duration
	gracePeriod time.Duration
	logger      *zap.Logger

	probeOnce sync.Once
	mode      atomic.Int32
}

func NewCLIEngine(executable string, opts EngineOptions) *CLIEngine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &CLIEngine{
		executable:  executable,
		timeout:     opts.Timeout,
		gracePeriod: opts.GracePeriod,
		logger:      opts.Logger,
	}
	if opts.Mode != OutputAuto {
		e.mode.Store(int32(opts.Mode))
		e.probeOnce.Do(func() {})
	}
	return e
}

func (e *CLIEngine) Executable() string {
	return e.executable
}

// OutputMode returns the cached output mode, probing the binary on first use.
func (e *CLIEngine) OutputMode(ctx context.Context) OutputMode {
	e.probeOnce.Do(func() {
		mode := probeOutputMode(ctx, e.executable)
		e.mode.Store(int32(mode))
		e.logger.Debug("probed whisper output mode", zap.String("engine", e.executable), zap.Stringer("mode", mode))
	})
	return OutputMode(e.mode.Load())
}

// probeOutputMode inspects the help text for text-file output support. Any
// probe failure selects stdout, which every whisper-cli build supports.
func probeOutputMode(ctx context.Context, executable string) OutputMode {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, executable, "--help")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// whisper-cli builds differ on the exit code of --help; only the text matters.
	_ = cmd.Run()

	if supportsTextOutput(out.String()) {
		return OutputTextFile
	}
	return OutputStdout
}

func supportsTextOutput(help string) bool {
	return strings.Contains(help, "-otxt") || strings.Contains(help, "--output-txt")
}

func (e *CLIEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return "", errors.New("model path is required")
	}
	if err := ensureExecutable(e.executable); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	mode := e.OutputMode(ctx)
	outBase := req.OutputBase
	if outBase == "" {
		outBase = strings.TrimSuffix(req.AudioPath, filepath.Ext(req.AudioPath))
	}
	args := buildArgs(req, mode, outBase)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	terminateProcessGroup(cmd, e.gracePeriod)

	e.logger.Debug("running whisper engine", zap.String("engine", e.executable), zap.Strings("args", args), zap.Stringer("mode", mode))
	started := time.Now()
	if err := cmd.Run(); err != nil {
		return "", e.classifyRunError(ctx, runCtx, err, stderr.String())
	}
	e.logger.Debug("whisper engine finished", zap.Duration("elapsed", time.Since(started)))

	if mode == OutputTextFile {
		content, err := os.ReadFile(outBase + ".txt")
		if err == nil {
			return cleanTranscript(string(content)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read whisper output: %w", err)
		}
		// The build accepted -otxt but wrote nothing; stop asking for it.
		e.mode.Store(int32(OutputStdout))
		e.logger.Warn("whisper engine produced no text file; falling back to stdout", zap.String("expected", outBase+".txt"))
	}

	return cleanTranscript(stdout.String()), nil
}

// BlankAudioToken is what whisper-cli prints for audio without speech.
const BlankAudioToken = "[BLANK_AUDIO]"

func cleanTranscript(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.EqualFold(text, BlankAudioToken) {
		return ""
	}
	return text
}

func buildArgs(req TranscriptionRequest, mode OutputMode, outBase string) []string {
	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-nt"}

	lang := strings.TrimSpace(req.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	if req.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(req.Threads))
	}
	if mode == OutputTextFile {
		args = append(args, "-otxt", "-of", outBase)
	}

	return args
}

func (e *CLIEngine) classifyRunError(parent, runCtx context.Context, err error, stderrText string) error {
	if parent.Err() != nil {
		return fmt.Errorf("whisper engine interrupted: %w", parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s: %v", ErrLaunch, e.executable, err)
	}

	errText := tail(strings.TrimSpace(stderrText), stderrTailBytes)
	result := &ExitError{Code: exitErr.ExitCode(), Stderr: errText}
	switch {
	case isMissingSharedLibraryError(errText):
		result.Hint = fmt.Sprintf("whisper engine at %s is missing required shared libraries; rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", e.executable)
	case isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()):
		result.Hint = "whisper engine crashed with an illegal CPU instruction; set engine.path to a whisper-cli built for this CPU"
	}
	return result
}

func tail(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-limit:]
}
