package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateTranscribing, next)

	next, err = Transition(next, EventTranscribed)
	require.NoError(t, err)
	require.Equal(t, StateSummarizing, next)

	next, err = Transition(next, EventSummarized)
	require.NoError(t, err)
	require.Equal(t, StateDone, next)

	next, err = Transition(next, EventReset)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionImportSkipsRecording(t *testing.T) {
	next, err := Transition(StateIdle, EventTranscribe)
	require.NoError(t, err)
	require.Equal(t, StateTranscribing, next)
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	states := []State{StateIdle, StateRecording, StateTranscribing, StateSummarizing, StateDone, StateError}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle summarized invalid", state: StateIdle, event: EventSummarized, want: StateIdle, wantErr: true},
		{name: "recording start invalid", state: StateRecording, event: EventStart, want: StateRecording, wantErr: true},
		{name: "recording transcribed invalid", state: StateRecording, event: EventTranscribed, want: StateRecording, wantErr: true},
		{name: "recording cancel valid", state: StateRecording, event: EventCancel, want: StateIdle, wantErr: false},
		{name: "transcribing stop invalid", state: StateTranscribing, event: EventStop, want: StateTranscribing, wantErr: true},
		{name: "transcribing summarized invalid", state: StateTranscribing, event: EventSummarized, want: StateTranscribing, wantErr: true},
		{name: "summarizing transcribed invalid", state: StateSummarizing, event: EventTranscribed, want: StateSummarizing, wantErr: true},
		{name: "done start invalid", state: StateDone, event: EventStart, want: StateDone, wantErr: true},
		{name: "done reset valid", state: StateDone, event: EventReset, want: StateIdle, wantErr: false},
		{name: "error start invalid", state: StateError, event: EventStart, want: StateError, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}
