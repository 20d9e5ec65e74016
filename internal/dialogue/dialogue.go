// Package dialogue talks to the remote spoken-dialogue service: Amazon Lex
// PostContent directly, or through the gRPC relay.
package dialogue

import (
	"context"
	"strings"
)

// Request defaults.
const (
	DefaultBotAlias    = "$LATEST"
	DefaultContentType = "audio/x-l16; sample-rate=16000"
	DefaultUserID      = "userId"
	DefaultAccept      = "audio/mpeg"
)

// MsgNoBotName is returned when a request or configuration lacks a bot.
const MsgNoBotName = "A Bot name must be provided."

// ContentTypeMPEG is the reply content type the player can render.
const ContentTypeMPEG = "audio/mpeg"

// Dialog states reported by Lex.
const (
	DialogElicitIntent        = "ElicitIntent"
	DialogConfirmIntent       = "ConfirmIntent"
	DialogElicitSlot          = "ElicitSlot"
	DialogFulfilled           = "Fulfilled"
	DialogReadyForFulfillment = "ReadyForFulfillment"
	DialogFailed              = "Failed"
)

// Request is one PostContent call.
type Request struct {
	BotName           string
	BotAlias          string
	UserID            string
	ContentType       string
	Accept            string
	SessionAttributes map[string]string
	InputStream       []byte
}

// WithDefaults returns a copy with empty fields set to their defaults.
func (r Request) WithDefaults() Request {
	if r.BotAlias == "" {
		r.BotAlias = DefaultBotAlias
	}
	if r.ContentType == "" {
		r.ContentType = DefaultContentType
	}
	if r.UserID == "" {
		r.UserID = DefaultUserID
	}
	if r.Accept == "" {
		r.Accept = DefaultAccept
	}
	return r
}

// Reply is the service response for one turn.
type Reply struct {
	ContentType       string            `json:"contentType"`
	AudioStream       []byte            `json:"-"`
	DialogState       string            `json:"dialogState"`
	Message           string            `json:"message,omitempty"`
	IntentName        string            `json:"intentName,omitempty"`
	SlotToElicit      string            `json:"slotToElicit,omitempty"`
	SessionID         string            `json:"sessionId,omitempty"`
	SessionAttributes map[string]string `json:"sessionAttributes,omitempty"`
}

// Terminal reports whether the dialog has ended and no further turn is expected.
func (r *Reply) Terminal() bool {
	switch r.DialogState {
	case DialogReadyForFulfillment, DialogFulfilled, DialogFailed:
		return true
	default:
		return false
	}
}

// Playable reports whether the reply carries audio the player can render.
func (r *Reply) Playable() bool {
	return len(r.AudioStream) > 0 && strings.HasPrefix(r.ContentType, ContentTypeMPEG)
}

// Client sends captured audio and returns the dialogue reply.
type Client interface {
	PostContent(ctx context.Context, req *Request) (*Reply, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (*Reply, error)

// PostContent calls f.
func (f ClientFunc) PostContent(ctx context.Context, req *Request) (*Reply, error) {
	return f(ctx, req)
}
