package indicator

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fmueller/voxdict/internal/session"
)

type collectSink struct {
	mu    sync.Mutex
	kinds []session.StatusKind
}

func (c *collectSink) Publish(s session.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, s.Kind)
}

func (c *collectSink) snapshot() []session.StatusKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.StatusKind(nil), c.kinds...)
}

func TestDispatcherPreservesOrderAcrossSinks(t *testing.T) {
	t.Parallel()

	first, second := &collectSink{}, &collectSink{}
	d := NewDispatcher(nil, first, second)

	want := []session.StatusKind{session.StatusRecording, session.StatusTranscribing, session.StatusCopied, session.StatusIdle}
	for _, kind := range want {
		d.Publish(session.Status{Kind: kind})
	}
	d.Close()

	require.Equal(t, want, first.snapshot())
	require.Equal(t, want, second.snapshot())

	d.Publish(session.Status{Kind: session.StatusRecording})
	require.Len(t, first.snapshot(), 4)
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	t.Parallel()

	after := &collectSink{}
	boom := session.StatusFunc(func(session.Status) { panic("sink bug") })
	d := NewDispatcher(zap.NewNop(), boom, after)

	d.Publish(session.Status{Kind: session.StatusError, Reason: "x"})
	d.Publish(session.Status{Kind: session.StatusIdle})
	d.Close()

	require.Equal(t, []session.StatusKind{session.StatusError, session.StatusIdle}, after.snapshot())
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))

	sink.Publish(session.Status{Kind: session.StatusCopied, SessionID: "s1", Chars: 12, Pasted: true})
	sink.Publish(session.Status{Kind: session.StatusError, SessionID: "s2", Reason: "transcription timed out"})

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "transcript copied", entries[0].Message)
	require.EqualValues(t, 12, entries[0].ContextMap()["chars"])
	require.Equal(t, "transcription timed out", entries[1].ContextMap()["reason"])
}

type fakeDesktop struct {
	notes []string
	tones []tone
	err   error
}

func newTestNotifySink(opts NotifyOptions, f *fakeDesktop) *NotifySink {
	n := NewNotifySink(opts)
	n.notify = func(_, message string) error {
		f.notes = append(f.notes, message)
		return f.err
	}
	n.beep = func(t tone) error {
		f.tones = append(f.tones, t)
		return f.err
	}
	return n
}

func TestNotifySinkCuesAndNotifications(t *testing.T) {
	t.Parallel()

	f := &fakeDesktop{}
	n := newTestNotifySink(NotifyOptions{Sound: true, Notify: true}, f)

	n.Publish(session.Status{Kind: session.StatusRecording})
	n.Publish(session.Status{Kind: session.StatusTranscribing})
	n.Publish(session.Status{Kind: session.StatusCopied, Chars: 5})
	n.Publish(session.Status{Kind: session.StatusIdle})
	n.Publish(session.Status{Kind: session.StatusError, Reason: "clipboard unavailable"})

	require.Equal(t, []tone{startTone, stopTone, errorTone}, f.tones)
	require.Equal(t, []string{"Copied 5 characters", "clipboard unavailable"}, f.notes)
}

func TestNotifySinkRespectsDisabledFeedback(t *testing.T) {
	t.Parallel()

	f := &fakeDesktop{err: errors.New("no notification daemon")}
	n := newTestNotifySink(NotifyOptions{}, f)

	n.Publish(session.Status{Kind: session.StatusRecording})
	n.Publish(session.Status{Kind: session.StatusCopied, Chars: 1, Pasted: true})
	require.Empty(t, f.tones)
	require.Empty(t, f.notes)

	n = newTestNotifySink(NotifyOptions{Notify: true}, f)
	n.Publish(session.Status{Kind: session.StatusCopied, Chars: 1, Pasted: true})
	require.Equal(t, []string{"Pasted 1 characters"}, f.notes)
}

func TestTerminalSinkDisabledWritesNothing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewTerminalSink(false, &buf)
	sink.Publish(session.Status{Kind: session.StatusRecording})
	sink.Publish(session.Status{Kind: session.StatusTranscribing})
	sink.Close()
	require.Empty(t, buf.String())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

func TestTerminalSinkSpinsWhileRecording(t *testing.T) {
	t.Parallel()

	out := &lockedBuffer{}
	sink := NewTerminalSink(true, out)
	sink.Publish(session.Status{Kind: session.StatusRecording})
	require.Eventually(t, func() bool { return bytes.Contains([]byte(out.String()), []byte("Recording")) }, time.Second, 10*time.Millisecond)

	sink.Publish(session.Status{Kind: session.StatusIdle})
	sink.Close()
}
