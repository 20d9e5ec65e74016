package orchestrator

import (
	"errors"
	"testing"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
)

func TestTransition(t *testing.T) {
	elicit := &dialogue.Reply{DialogState: dialogue.DialogElicitSlot}
	done := &dialogue.Reply{DialogState: dialogue.DialogFulfilled}

	tests := []struct {
		name    string
		from    State
		ev      Event
		silence bool
		want    Kind
	}{
		{"passive advance", Passive{}, UserAdvance{}, true, KindListening},
		{"listening advance", Listening{}, UserAdvance{}, true, KindListening},
		{"listening silence", Listening{}, SilenceDetected{}, true, KindListening},
		{"listening export", Listening{}, ExportComplete{Audio: []byte("wav")}, true, KindSending},
		{"listening export failed", Listening{}, ExportFailed{}, true, KindPassive},
		{"sending ok", Sending{}, RPCSucceeded{Reply: elicit}, true, KindSpeaking},
		{"sending failed", Sending{}, RPCFailed{Err: errors.New("x")}, true, KindPassive},
		{"speaking continues", Speaking{Reply: elicit}, PlaybackComplete{}, true, KindListening},
		{"speaking terminal", Speaking{Reply: done}, PlaybackComplete{}, true, KindPassive},
		{"speaking no silence detection", Speaking{Reply: elicit}, PlaybackComplete{}, false, KindPassive},
		{"ready for fulfillment", Speaking{Reply: &dialogue.Reply{DialogState: dialogue.DialogReadyForFulfillment}}, PlaybackComplete{}, true, KindPassive},
		{"failed dialog", Speaking{Reply: &dialogue.Reply{DialogState: dialogue.DialogFailed}}, PlaybackComplete{}, true, KindPassive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev, tt.silence)
			if err != nil {
				t.Fatalf("Transition error: %v", err)
			}
			if got.Kind() != tt.want {
				t.Errorf("Transition(%s, %T) = %s, want %s", tt.from.Kind(), tt.ev, got.Kind(), tt.want)
			}
		})
	}
}

func TestTransitionCarriesPayload(t *testing.T) {
	s, _ := Transition(Listening{}, ExportComplete{Audio: []byte("wav")}, true)
	if string(s.(Sending).AudioInput) != "wav" {
		t.Errorf("AudioInput = %q", s.(Sending).AudioInput)
	}

	reply := &dialogue.Reply{DialogState: dialogue.DialogElicitIntent}
	s, _ = Transition(Sending{}, RPCSucceeded{Reply: reply}, true)
	if s.(Speaking).Reply != reply {
		t.Error("Speaking should hold the reply")
	}
}

func TestTransitionInvalid(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
	}{
		{Passive{}, SilenceDetected{}},
		{Passive{}, PlaybackComplete{}},
		{Passive{}, ExportComplete{}},
		{Sending{}, ExportFailed{}},
		{Listening{}, RPCSucceeded{}},
		{Sending{}, UserAdvance{}},
		{Sending{}, ExportComplete{}},
		{Speaking{}, UserAdvance{}},
		{Speaking{}, RPCFailed{}},
	}

	for _, tt := range tests {
		got, err := Transition(tt.from, tt.ev, true)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Transition(%s, %T) err = %v, want ErrInvalidTransition", tt.from.Kind(), tt.ev, err)
		}
		if got.Kind() != tt.from.Kind() {
			t.Errorf("Transition(%s, %T) changed state to %s", tt.from.Kind(), tt.ev, got.Kind())
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindPassive, "Passive"},
		{KindListening, "Listening"},
		{KindSending, "Sending"},
		{KindSpeaking, "Speaking"},
		{Kind(9), "Kind(9)"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
