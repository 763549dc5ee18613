package session

// StatusKind is the presentation-facing signal emitted on every change.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusRecording
	StatusTranscribing
	StatusCopied
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "idle"
	case StatusRecording:
		return "recording"
	case StatusTranscribing:
		return "transcribing"
	case StatusCopied:
		return "copied"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

type Status struct {
	Kind      StatusKind
	SessionID string
	// Reason is set for StatusError.
	Reason string
	// Chars is the delivered transcript length for StatusCopied.
	Chars  int
	Pasted bool
}

func (s Status) String() string {
	if s.Kind == StatusError && s.Reason != "" {
		return "error: " + s.Reason
	}
	return s.Kind.String()
}

// StatusSink receives statuses in emission order. Publish must not block the
// caller for long; slow sinks sit behind a dispatcher.
type StatusSink interface {
	Publish(Status)
}

type StatusFunc func(Status)

func (f StatusFunc) Publish(s Status) { f(s) }

type discardStatus struct{}

func (discardStatus) Publish(Status) {}
