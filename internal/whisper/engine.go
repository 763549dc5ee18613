package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLaunch means the engine binary could not be started at all.
	ErrLaunch = errors.New("whisper engine could not be launched")
	// ErrTimeout means the engine ran past its deadline and was terminated.
	ErrTimeout = errors.New("whisper engine timed out")
)

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
	Prompt    string
	Threads   int
	// OutputBase is the path prefix for the engine's text side file. It must
	// live inside the caller's artifact directory; empty derives it from
	// AudioPath.
	OutputBase string
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// OutputMode selects how transcript text is retrieved from the engine.
type OutputMode int

const (
	OutputAuto OutputMode = iota
	OutputTextFile
	OutputStdout
)

func (m OutputMode) String() string {
	switch m {
	case OutputTextFile:
		return "txt"
	case OutputStdout:
		return "stdout"
	default:
		return "auto"
	}
}

func ParseOutputMode(value string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return OutputAuto, nil
	case "txt", "text", "text-file":
		return OutputTextFile, nil
	case "stdout":
		return OutputStdout, nil
	default:
		return OutputAuto, fmt.Errorf("unknown engine output mode %q (want auto|txt|stdout)", value)
	}
}

// ExitError reports a non-zero engine exit along with its diagnostic output.
type ExitError struct {
	Code   int
	Stderr string
	Hint   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("whisper engine exited with code %d", e.Code)
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	if e.Stderr != "" {
		msg += " (" + e.Stderr + ")"
	}
	return msg
}
