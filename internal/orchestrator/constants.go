// Package orchestrator runs the turn-taking conversation: record, export,
// send to the dialogue service, play the reply and listen again.
package orchestrator

// Conversation configuration constants
const (
	// Buffered events between async steps and the loop
	EventQueueSize = 16

	// Turn log configuration
	TurnMaxEntries  = 30
	TurnEventBuffer = 100

	// Span names
	spanTurn = "dialogue_turn"
)
