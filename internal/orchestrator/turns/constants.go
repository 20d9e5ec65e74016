package turns

// Store defaults
const (
	DefaultMaxEntries  = 30
	DefaultEventBuffer = 100
)
