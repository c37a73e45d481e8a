// Package fsm defines the observable phase machine shared by the recorder
// and the pipeline orchestrator.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StateDone         State = "done"
	StateError        State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventCancel      Event = "cancel"
	EventTranscribe  Event = "transcribe"
	EventTranscribed Event = "transcribed"
	EventSummarized  Event = "summarized"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

// Transition applies one event to the current state and returns the next.
// EventFail is accepted from every state; EventReset returns done/error to
// idle so a fresh recording can proceed without manual intervention.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventTranscribe:
			// Imported files enter transcription without a recording phase.
			return StateTranscribing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateTranscribing, nil
		case EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTranscribing:
		switch event {
		case EventTranscribed:
			return StateSummarizing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSummarizing:
		switch event {
		case EventSummarized:
			return StateDone, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDone:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
