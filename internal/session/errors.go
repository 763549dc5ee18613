package session

import (
	"errors"
	"fmt"

	"github.com/fmueller/voxdict/internal/whisper"
)

type Kind int

const (
	KindCapture Kind = iota + 1
	KindEngineLaunch
	KindEngineTimeout
	KindEngineExit
	KindDelivery
	KindArtifactCleanup
	KindWorkspace
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindEngineLaunch:
		return "engine-launch"
	case KindEngineTimeout:
		return "engine-timeout"
	case KindEngineExit:
		return "engine-exit"
	case KindDelivery:
		return "delivery"
	case KindArtifactCleanup:
		return "artifact-cleanup"
	case KindWorkspace:
		return "workspace"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Failure ties a session error to the stage that produced it.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Reason is the short text shown to the user in an Error status.
func (f *Failure) Reason() string {
	switch f.Kind {
	case KindCapture:
		return "recording failed: " + f.Err.Error()
	case KindEngineLaunch:
		return "transcription engine unavailable: " + f.Err.Error()
	case KindEngineTimeout:
		return "transcription timed out"
	case KindEngineExit:
		var exitErr *whisper.ExitError
		if errors.As(f.Err, &exitErr) {
			if exitErr.Hint != "" {
				return fmt.Sprintf("transcription failed (exit %d): %s", exitErr.Code, exitErr.Hint)
			}
			return fmt.Sprintf("transcription failed (exit %d)", exitErr.Code)
		}
		return "transcription failed: " + f.Err.Error()
	case KindDelivery:
		return "clipboard unavailable: " + f.Err.Error()
	case KindWorkspace:
		return "temporary directory unusable: " + f.Err.Error()
	default:
		return f.Err.Error()
	}
}

func fail(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func classifyEngineError(err error) *Failure {
	switch {
	case errors.Is(err, whisper.ErrTimeout):
		return fail(KindEngineTimeout, err)
	case errors.Is(err, whisper.ErrLaunch):
		return fail(KindEngineLaunch, err)
	default:
		// Anything else, unreadable output included, leaves no transcript.
		return fail(KindEngineExit, err)
	}
}
