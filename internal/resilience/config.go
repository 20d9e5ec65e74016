package resilience

import "time"

// Circuit breaker configuration constants
const (
	// Default configuration
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Dialogue configuration: a bot that fails a few turns in a row is down
	DialogueThreshold         = 3
	DialogueResetTimeout      = 15 * time.Second
	DialogueHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DialogueConfig returns settings for the remote dialogue service.
func DialogueConfig() Config {
	return Config{
		Threshold:         DialogueThreshold,
		ResetTimeout:      DialogueResetTimeout,
		HalfOpenSuccesses: DialogueHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
