package capture

// Pipeline constants
const (
	// Worker queue depth; ~5.5s of 4096-sample frames at 48kHz
	DefaultQueueSize = 64

	// Pending visualization frames before new ones are dropped
	VisualizeQueueSize = 4
)
