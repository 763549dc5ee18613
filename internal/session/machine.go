package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/clipboard"
	"github.com/fmueller/voxdict/internal/ipc"
	"github.com/fmueller/voxdict/internal/record"
	"github.com/fmueller/voxdict/internal/whisper"
)

const (
	DefaultQueueSize   = 16
	DefaultSilenceDBFS = -65.0
)

var (
	ErrQueueFull      = errors.New("event queue full")
	ErrNotRecording   = errors.New("nothing to cancel")
	ErrAlreadyRunning = errors.New("machine already running")
)

// Capture is the recorder as seen by a session. Failed delivers an error when
// the device dies mid-recording.
type Capture interface {
	Begin(ctx context.Context) error
	End(ctx context.Context, path string) (record.Audio, error)
	Abort()
	Failed() <-chan error
}

type Deliverer interface {
	Deliver(ctx context.Context, text string) (clipboard.Delivered, error)
}

type Config struct {
	// Request carries the model, language hint, prompt and threads. Audio
	// paths are filled in per session.
	Request whisper.TranscriptionRequest
	// MaxDuration auto-stops a recording; zero disables the safeguard.
	MaxDuration time.Duration
	QueueSize   int
	// SilenceDBFS is the level below which a capture is logged as silent.
	SilenceDBFS float64
}

type Deps struct {
	Capture   Capture
	Engine    whisper.Engine
	Delivery  Deliverer
	Workspace *Workspace
	Status    StatusSink
	Logger    *zap.Logger
}

type signal int

const (
	signalToggle signal = iota
	signalCancel
)

// intent is a queued signal plus the state its sender saw. A stop aimed at a
// recording that already ended must not start the next one.
type intent struct {
	signal signal
	seen   State
}

type result struct {
	sessionID string
	failure   *Failure
	delivered clipboard.Delivered
	cancelled bool
}

type activeSession struct {
	id       string
	stop     chan struct{}
	abort    chan struct{}
	release  context.CancelFunc
	stopping bool
	timer    *time.Timer
}

// Machine owns the dictation state. Toggle and Cancel only enqueue; the Run
// loop is the single writer of the state, and readers get a snapshot.
type Machine struct {
	cfg       Config
	capture   Capture
	engine    whisper.Engine
	delivery  Deliverer
	workspace *Workspace
	status    StatusSink
	logger    *zap.Logger

	signals  chan intent
	results  chan result
	autoStop chan string
	done     chan struct{}
	running  atomic.Bool

	state  atomic.Int32
	active *activeSession

	mu         sync.Mutex
	lastReason string
}

func NewMachine(cfg Config, deps Deps) (*Machine, error) {
	switch {
	case deps.Capture == nil:
		return nil, errors.New("capture is required")
	case deps.Engine == nil:
		return nil, errors.New("engine is required")
	case deps.Delivery == nil:
		return nil, errors.New("delivery is required")
	case deps.Workspace == nil:
		return nil, errors.New("workspace is required")
	}
	if deps.Status == nil {
		deps.Status = discardStatus{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SilenceDBFS == 0 {
		cfg.SilenceDBFS = DefaultSilenceDBFS
	}

	return &Machine{
		cfg:       cfg,
		capture:   deps.Capture,
		engine:    deps.Engine,
		delivery:  deps.Delivery,
		workspace: deps.Workspace,
		status:    deps.Status,
		logger:    deps.Logger,
		signals:   make(chan intent, cfg.QueueSize),
		results:   make(chan result, 1),
		autoStop:  make(chan string, 1),
		done:      make(chan struct{}),
	}, nil
}

func (m *Machine) State() State {
	return State(m.state.Load())
}

// LastError is the reason of the most recent failed session, if any.
func (m *Machine) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReason
}

// Toggle starts or stops a recording. It never blocks.
func (m *Machine) Toggle() {
	if err := m.submit(signalToggle); err != nil {
		m.logger.Info("toggle dropped", zap.Error(err))
	}
}

// Cancel discards the current recording without transcribing it.
func (m *Machine) Cancel() {
	if err := m.submit(signalCancel); err != nil {
		m.logger.Info("cancel dropped", zap.Error(err))
	}
}

func (m *Machine) submit(sig signal) error {
	seen := m.State()
	switch {
	case sig == signalToggle && seen == StateTranscribing:
		return ErrBusy
	case sig == signalCancel && seen != StateRecording:
		return ErrNotRecording
	}

	select {
	case m.signals <- intent{signal: sig, seen: seen}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Handle answers control requests from the IPC server.
func (m *Machine) Handle(_ context.Context, req ipc.Request) ipc.Response {
	var err error
	switch req.Command {
	case ipc.CommandToggle:
		err = m.submit(signalToggle)
	case ipc.CommandCancel:
		err = m.submit(signalCancel)
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: m.State().String(), Message: m.LastError()}
	default:
		err = fmt.Errorf("unknown command %q", req.Command)
	}

	if err != nil {
		return ipc.Response{State: m.State().String(), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: m.State().String()}
}

// Run processes events until ctx is cancelled. A session still in flight at
// shutdown is aborted and its artifacts released before Run returns.
func (m *Machine) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case in := <-m.signals:
			switch in.signal {
			case signalToggle:
				m.onToggle(ctx, in.seen)
			case signalCancel:
				m.onCancel()
			}
		case id := <-m.autoStop:
			m.onAutoStop(id)
		case res := <-m.results:
			m.onFinished(res)
		}
	}
}

func (m *Machine) shutdown() {
	s := m.active
	if s == nil {
		return
	}

	m.logger.Info("shutting down; aborting active session", zap.String("session", s.id))
	if !s.stopping {
		close(s.abort)
		s.stopping = true
	}
	s.release()
	for res := range m.results {
		if res.sessionID == s.id {
			m.onFinished(res)
			return
		}
	}
}

func (m *Machine) onToggle(ctx context.Context, seen State) {
	current := m.State()
	if s := m.active; current == StateRecording && s != nil && s.stopping {
		m.logger.Debug("toggle ignored while session winds down", zap.String("session", s.id))
		return
	}
	if seen != StateIdle && current == StateIdle {
		m.logger.Info("toggle ignored; its session already ended", zap.Stringer("seen", seen))
		return
	}

	next, err := Transition(current, EventToggle)
	if err != nil {
		m.logger.Info("toggle ignored", zap.Stringer("state", current), zap.Error(err))
		return
	}

	switch next {
	case StateRecording:
		m.startSession(ctx)
	case StateTranscribing:
		m.stopRecording(EventToggle)
	}
}

func (m *Machine) onAutoStop(id string) {
	s := m.active
	if s == nil || s.id != id || s.stopping || m.State() != StateRecording {
		return
	}
	m.logger.Info("recording reached maximum duration", zap.String("session", id), zap.Duration("max", m.cfg.MaxDuration))
	m.stopRecording(EventAutoStop)
}

func (m *Machine) onCancel() {
	s := m.active
	if s == nil || s.stopping || m.State() != StateRecording {
		return
	}
	m.logger.Info("recording cancelled", zap.String("session", s.id))
	s.stopping = true
	s.stopTimer()
	close(s.abort)
}

func (m *Machine) startSession(ctx context.Context) {
	sessionCtx, release := context.WithCancel(ctx)
	s := &activeSession{
		id:      newSessionID(),
		stop:    make(chan struct{}),
		abort:   make(chan struct{}),
		release: release,
	}
	m.active = s
	m.setState(StateRecording)
	m.publish(Status{Kind: StatusRecording, SessionID: s.id})

	if m.cfg.MaxDuration > 0 {
		id := s.id
		s.timer = time.AfterFunc(m.cfg.MaxDuration, func() {
			select {
			case m.autoStop <- id:
			case <-m.done:
			}
		})
	}

	go m.runSession(sessionCtx, s)
}

func (m *Machine) stopRecording(event Event) {
	s := m.active
	next, err := Transition(m.State(), event)
	if err != nil || s == nil {
		m.logger.Warn("stop ignored", zap.Error(err))
		return
	}
	s.stopping = true
	s.stopTimer()
	close(s.stop)
	m.setState(next)
	m.publish(Status{Kind: StatusTranscribing, SessionID: s.id})
}

func (m *Machine) onFinished(res result) {
	s := m.active
	if s == nil || s.id != res.sessionID {
		m.logger.Warn("result for unknown session", zap.String("session", res.sessionID))
		return
	}

	next, err := Transition(m.State(), EventFinished)
	if err != nil {
		m.logger.Error("unexpected finish", zap.Error(err))
		next = StateIdle
	}
	s.stopTimer()
	s.release()
	m.active = nil
	m.setState(next)

	switch {
	case res.failure != nil:
		reason := res.failure.Reason()
		m.mu.Lock()
		m.lastReason = reason
		m.mu.Unlock()
		m.logger.Error("session failed", zap.String("session", s.id), zap.Stringer("kind", res.failure.Kind), zap.Error(res.failure.Err))
		m.publish(Status{Kind: StatusError, SessionID: s.id, Reason: reason})
	case res.delivered.Copied:
		m.mu.Lock()
		m.lastReason = ""
		m.mu.Unlock()
		m.publish(Status{
			Kind:      StatusCopied,
			SessionID: s.id,
			Chars:     utf8.RuneCountInString(res.delivered.Text),
			Pasted:    res.delivered.Pasted,
		})
	}
	m.publish(Status{Kind: StatusIdle, SessionID: s.id})
}

// runSession drives one recording from capture to delivery. Whatever happens,
// the artifact is released before the loop hears that the session finished.
func (m *Machine) runSession(ctx context.Context, s *activeSession) {
	res := result{sessionID: s.id}
	logger := m.logger.With(zap.String("session", s.id))

	var artifact *Artifact
	capturing := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session panicked", zap.Any("panic", r), zap.Stack("stack"))
			res.failure = fail(KindInternal, fmt.Errorf("panic: %v", r))
		}
		if capturing {
			m.capture.Abort()
		}
		if artifact != nil {
			if err := artifact.Release(); err != nil {
				logger.Warn("session artifacts not removed; retrying on next session", zap.String("dir", artifact.Dir()), zap.Error(err))
			}
		}
		m.results <- res
	}()

	var err error
	artifact, err = m.workspace.Acquire(s.id)
	if err != nil {
		res.failure = fail(KindWorkspace, err)
		return
	}

	if err := m.capture.Begin(ctx); err != nil {
		res.failure = fail(KindCapture, err)
		return
	}
	capturing = true

	select {
	case <-s.stop:
	case err := <-m.capture.Failed():
		res.failure = fail(KindCapture, err)
		return
	case <-s.abort:
		res.cancelled = true
		return
	case <-ctx.Done():
		res.cancelled = true
		return
	}

	capturing = false
	captured, err := m.capture.End(ctx, artifact.AudioPath())
	if err != nil {
		res.failure = fail(KindCapture, err)
		return
	}
	logger.Debug("captured audio",
		zap.String("backend", captured.Backend),
		zap.Duration("duration", captured.Duration),
		zap.Float64("rms_dbfs", captured.Level.RMSdBFS),
	)
	if captured.Level.Silent(m.cfg.SilenceDBFS) {
		logger.Info("captured audio is near silent", zap.Float64("peak_dbfs", captured.Level.PeakdBFS))
	}

	req := m.cfg.Request
	req.AudioPath = artifact.AudioPath()
	req.OutputBase = artifact.OutputBase()

	started := time.Now()
	text, err := m.engine.Transcribe(ctx, req)
	if err != nil {
		res.failure = classifyEngineError(err)
		return
	}
	logger.Debug("transcribed", zap.Duration("elapsed", time.Since(started)), zap.Int("chars", utf8.RuneCountInString(text)))

	delivered, err := m.delivery.Deliver(ctx, text)
	if err != nil {
		res.failure = fail(KindDelivery, err)
		return
	}
	res.delivered = delivered
}

func (m *Machine) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Machine) publish(s Status) {
	m.status.Publish(s)
}

func (s *activeSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
