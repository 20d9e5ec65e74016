// Package viz batches visualization frames before they are pushed to clients.
package viz

import "time"

// Batcher defaults
const (
	DefaultBatchSize  = 8
	DefaultFlushDelay = 100 * time.Millisecond
)
