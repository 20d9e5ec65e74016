package orchestrator

import (
	"errors"
	"fmt"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid transition")

// Kind names a conversation state.
type Kind int

const (
	KindPassive Kind = iota
	KindListening
	KindSending
	KindSpeaking
)

func (k Kind) String() string {
	switch k {
	case KindPassive:
		return "Passive"
	case KindListening:
		return "Listening"
	case KindSending:
		return "Sending"
	case KindSpeaking:
		return "Speaking"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// State is one of Passive, Listening, Sending or Speaking.
type State interface {
	Kind() Kind
	isState()
}

// Passive waits for the user to start a turn.
type Passive struct{}

// Listening records the user.
type Listening struct{}

// Sending holds the exported WAV while the dialogue call runs.
type Sending struct {
	AudioInput []byte
}

// Speaking holds the reply being played.
type Speaking struct {
	Reply *dialogue.Reply
}

func (Passive) Kind() Kind   { return KindPassive }
func (Listening) Kind() Kind { return KindListening }
func (Sending) Kind() Kind   { return KindSending }
func (Speaking) Kind() Kind  { return KindSpeaking }

func (Passive) isState()   {}
func (Listening) isState() {}
func (Sending) isState()   {}
func (Speaking) isState()  {}

// Event drives Transition.
type Event interface {
	isEvent()
}

type (
	// UserAdvance is a manual advance.
	UserAdvance struct{}
	// SilenceDetected fires when the recording went quiet.
	SilenceDetected struct{}
	// ExportComplete carries the encoded recording.
	ExportComplete struct{ Audio []byte }
	// ExportFailed fires when the recording could not be encoded.
	ExportFailed struct{}
	// RPCSucceeded carries the dialogue reply.
	RPCSucceeded struct{ Reply *dialogue.Reply }
	// RPCFailed carries the dialogue error.
	RPCFailed struct{ Err error }
	// PlaybackComplete fires when the reply finished playing.
	PlaybackComplete struct{}
)

func (UserAdvance) isEvent()      {}
func (SilenceDetected) isEvent()  {}
func (ExportComplete) isEvent()   {}
func (ExportFailed) isEvent()     {}
func (RPCSucceeded) isEvent()     {}
func (RPCFailed) isEvent()        {}
func (PlaybackComplete) isEvent() {}

// Transition returns the state that follows s on ev. Listening stays
// Listening on UserAdvance and SilenceDetected: the export it triggers
// arrives later as ExportComplete. After playback the machine listens again
// unless the dialog is over or silence detection is off.
func Transition(s State, ev Event, silenceDetection bool) (State, error) {
	switch st := s.(type) {
	case Passive:
		if _, ok := ev.(UserAdvance); ok {
			return Listening{}, nil
		}
	case Listening:
		switch e := ev.(type) {
		case UserAdvance, SilenceDetected:
			return st, nil
		case ExportComplete:
			return Sending{AudioInput: e.Audio}, nil
		case ExportFailed:
			return Passive{}, nil
		}
	case Sending:
		switch e := ev.(type) {
		case RPCSucceeded:
			return Speaking{Reply: e.Reply}, nil
		case RPCFailed:
			return Passive{}, nil
		}
	case Speaking:
		if _, ok := ev.(PlaybackComplete); ok {
			if st.Reply == nil || st.Reply.Terminal() || !silenceDetection {
				return Passive{}, nil
			}
			return Listening{}, nil
		}
	}
	return s, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, ev, s.Kind())
}
