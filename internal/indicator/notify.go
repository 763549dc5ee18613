package indicator

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/session"
)

const notifyTitle = "voxdict"

type tone struct {
	freq   float64
	millis int
}

var (
	startTone = tone{freq: 880, millis: 90}
	stopTone  = tone{freq: 660, millis: 90}
	errorTone = tone{freq: 220, millis: 250}
)

type NotifyOptions struct {
	Sound  bool
	Notify bool
	Logger *zap.Logger
}

// NotifySink plays a cue when recording starts and stops and raises a desktop
// notification for results.
type NotifySink struct {
	opts   NotifyOptions
	notify func(title, message string) error
	beep   func(t tone) error
}

func NewNotifySink(opts NotifyOptions) *NotifySink {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &NotifySink{
		opts: opts,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func(t tone) error {
			return beeep.Beep(t.freq, t.millis)
		},
	}
}

func (n *NotifySink) Publish(s session.Status) {
	switch s.Kind {
	case session.StatusRecording:
		n.cue(startTone)
	case session.StatusTranscribing:
		n.cue(stopTone)
	case session.StatusCopied:
		message := fmt.Sprintf("Copied %d characters", s.Chars)
		if s.Pasted {
			message = fmt.Sprintf("Pasted %d characters", s.Chars)
		}
		n.show(message)
	case session.StatusError:
		n.cue(errorTone)
		n.show(s.Reason)
	}
}

func (n *NotifySink) cue(t tone) {
	if !n.opts.Sound {
		return
	}
	if err := n.beep(t); err != nil {
		n.opts.Logger.Debug("sound cue failed", zap.Error(err))
	}
}

func (n *NotifySink) show(message string) {
	if !n.opts.Notify || message == "" {
		return
	}
	if err := n.notify(notifyTitle, message); err != nil {
		n.opts.Logger.Debug("desktop notification failed", zap.Error(err))
	}
}
