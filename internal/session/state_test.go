package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from  State
		event Event
		want  State
		err   error
	}{
		{StateIdle, EventToggle, StateRecording, nil},
		{StateRecording, EventToggle, StateTranscribing, nil},
		{StateRecording, EventAutoStop, StateTranscribing, nil},
		{StateRecording, EventFinished, StateIdle, nil},
		{StateTranscribing, EventToggle, StateTranscribing, ErrBusy},
		{StateTranscribing, EventFinished, StateIdle, nil},
	}

	for _, tc := range cases {
		got, err := Transition(tc.from, tc.event)
		if tc.err != nil {
			require.ErrorIs(t, err, tc.err)
		} else {
			require.NoError(t, err)
		}
		require.Equal(t, tc.want, got, "%s --(%s)-->", tc.from, tc.event)
	}
}

func TestTransitionRejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		from  State
		event Event
	}{
		{StateIdle, EventFinished},
		{StateIdle, EventAutoStop},
		{StateTranscribing, EventAutoStop},
		{State(9), EventToggle},
	} {
		got, err := Transition(tc.from, tc.event)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrBusy)
		require.Equal(t, tc.from, got)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "recording", StateRecording.String())
	require.Equal(t, "transcribing", StateTranscribing.String())
	require.Equal(t, "state(7)", State(7).String())
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "copied", Status{Kind: StatusCopied}.String())
	require.Equal(t, "error: transcription timed out", Status{Kind: StatusError, Reason: "transcription timed out"}.String())
	require.Equal(t, "error", Status{Kind: StatusError}.String())
}
