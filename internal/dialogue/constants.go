package dialogue

import "time"

// Relay service names
const (
	relayServiceName       = "lexaudio.dialogue.v1.Relay"
	relayPostContentMethod = "/" + relayServiceName + "/PostContent"
)

// Relay metadata keys. Keys ending in -bin carry arbitrary bytes.
const (
	mdBotName           = "x-lex-bot-name"
	mdBotAlias          = "x-lex-bot-alias"
	mdUserID            = "x-lex-user-id"
	mdContentType       = "x-lex-content-type"
	mdAccept            = "x-lex-accept"
	mdSessionAttributes = "x-lex-session-attributes-bin"
	mdDialogState       = "x-lex-dialog-state"
	mdMessage           = "x-lex-message-bin"
	mdIntentName        = "x-lex-intent-name"
	mdSlotToElicit      = "x-lex-slot-to-elicit"
	mdSessionID         = "x-lex-session-id"
)

// Relay client defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Lex accepts at most ~15s of 16kHz audio; leave room for larger rates
	MaxMessageSize = 8 << 20
)
