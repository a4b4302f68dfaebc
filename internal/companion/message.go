package companion

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MessageTypeWorkoutStarted MessageType = "workoutStarted"
	MessageTypeWorkoutEnded   MessageType = "workoutEnded"
	MessageTypeSetCompleted   MessageType = "setCompleted"
	MessageTypeContext        MessageType = "context"
)

// WorkoutState is the phone-side snapshot mirrored to the companion
// device: enough to render the current exercise and run the rest
// countdown locally. TimerStartedAt is epoch milliseconds; it is
// deliberately excluded from change detection, see fingerprint.
type WorkoutState struct {
	ExerciseName    string  `json:"exerciseName"`
	ExerciseType    string  `json:"exerciseType,omitempty"`
	CurrentSet      int     `json:"currentSet"`
	TotalSets       int     `json:"totalSets"`
	Weight          float64 `json:"weight"`
	TargetReps      int     `json:"targetReps"`
	RestTimeSeconds int     `json:"restTimeSeconds"`
	TimerStartedAt  *int64  `json:"timerStartedAt,omitempty"`
}

// fingerprint serializes the state with the timer start blanked out, so
// a state that differs only in when the rest timer was (re)started
// still compares as unchanged.
func (s WorkoutState) fingerprint() string {
	stripped := s
	stripped.TimerStartedAt = nil
	data, err := json.Marshal(stripped)
	if err != nil {
		// cannot happen for this struct, but never dedup on a guess
		return ""
	}
	return string(data)
}

// DurableContext is the latest-value slot the companion reads when it
// (re)connects, as opposed to transient messages which are lost when
// unreachable. WorkoutActive false tells a stale companion UI to leave
// the workout screen.
type DurableContext struct {
	WorkoutActive bool          `json:"workoutActive"`
	State         *WorkoutState `json:"state,omitempty"`
	Timestamp     int64         `json:"timestamp"`
}

// SetCompletedEvent is the companion reporting a set done remotely,
// with the values as confirmed on the device.
type SetCompletedEvent struct {
	Weight        float64 `json:"weight"`
	RepsCompleted int     `json:"repsCompleted"`
	Timestamp     int64   `json:"timestamp"`
}

// InboundMessage is a parsed companion-to-phone message. Raw payloads
// are decoded exactly once, at the transport boundary; everything past
// it works with typed variants.
type InboundMessage interface {
	inboundMessage()
}

func (SetCompletedEvent) inboundMessage() {}

func ParseInbound(raw []byte) (InboundMessage, error) {
	var probe struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("parse inbound message: %w", err)
	}

	switch probe.Type {
	case MessageTypeSetCompleted:
		var ev SetCompletedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("parse set completed event: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown inbound message type %q", probe.Type)
	}
}

// outboundEnvelope flattens the state fields next to the type tag, one
// flat JSON object per message on the wire.
type outboundEnvelope struct {
	Type MessageType `json:"type,omitempty"`
	*WorkoutState
}

func encodeOutbound(msgType MessageType, state *WorkoutState) ([]byte, error) {
	data, err := json.Marshal(outboundEnvelope{Type: msgType, WorkoutState: state})
	if err != nil {
		return nil, fmt.Errorf("encode outbound %s message: %w", msgType, err)
	}
	return data, nil
}

type contextEnvelope struct {
	Type    MessageType    `json:"type"`
	Context DurableContext `json:"context"`
}

func encodeContext(dc DurableContext) ([]byte, error) {
	data, err := json.Marshal(contextEnvelope{Type: MessageTypeContext, Context: dc})
	if err != nil {
		return nil, fmt.Errorf("encode context message: %w", err)
	}
	return data, nil
}
