// Package session runs the dictation state machine: one owner goroutine
// moves between idle, recording and transcribing while capture,
// transcription and delivery run in a per-session worker.
package session

import (
	"errors"
	"fmt"
)

type State int32

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Event string

const (
	// EventToggle is the hotkey press.
	EventToggle Event = "toggle"
	// EventAutoStop ends a recording that reached the configured maximum.
	EventAutoStop Event = "auto-stop"
	// EventFinished is reported by the session worker once its artifacts are
	// released, whatever the outcome.
	EventFinished Event = "finished"
)

// ErrBusy marks a toggle that arrived while a transcription is in flight.
// Such toggles are dropped, never queued.
var ErrBusy = errors.New("transcription in progress")

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		if event == EventToggle {
			return StateRecording, nil
		}
	case StateRecording:
		switch event {
		case EventToggle, EventAutoStop:
			return StateTranscribing, nil
		case EventFinished:
			return StateIdle, nil
		}
	case StateTranscribing:
		switch event {
		case EventToggle:
			return current, ErrBusy
		case EventFinished:
			return StateIdle, nil
		}
	default:
		return current, fmt.Errorf("unknown state %d", int32(current))
	}
	return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, event)
}
