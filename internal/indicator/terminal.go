package indicator

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/fmueller/voxdict/internal/session"
)

// StderrIsTerminal reports whether a spinner on stderr would be seen.
func StderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// TerminalSink shows a spinner while recording or transcribing when the
// daemon runs in the foreground of a terminal.
type TerminalSink struct {
	enabled bool
	writer  io.Writer

	mu   sync.Mutex
	stop func()
}

func NewTerminalSink(enabled bool, w io.Writer) *TerminalSink {
	if w == nil {
		w = os.Stderr
	}
	return &TerminalSink{enabled: enabled, writer: w}
}

func (t *TerminalSink) Publish(s session.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		t.stop()
		t.stop = nil
	}

	switch s.Kind {
	case session.StatusRecording:
		t.stop = StartSpinner(t.enabled, t.writer, "Recording... (toggle again to stop)")
	case session.StatusTranscribing:
		t.stop = StartSpinner(t.enabled, t.writer, "Transcribing...")
	}
}

// Close stops a spinner left running at shutdown.
func (t *TerminalSink) Close() {
	t.Publish(session.Status{Kind: session.StatusIdle})
}

// StartSpinner animates description on w until the returned func is called.
// A disabled spinner returns a no-op.
func StartSpinner(enabled bool, w io.Writer, description string) func() {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
