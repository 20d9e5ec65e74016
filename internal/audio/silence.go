package audio

import (
	"math"
	"time"
)

// SilenceConfig holds the silence heuristic thresholds for one recording.
type SilenceConfig struct {
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Time      int     `yaml:"time" json:"time"` // milliseconds
}

// DefaultSilenceConfig returns amplitude 0.2 and 1500ms.
func DefaultSilenceConfig() SilenceConfig {
	return SilenceConfig{Amplitude: DefaultSilenceAmplitude, Time: DefaultSilenceTimeMs}
}

// Duration returns the time threshold as a time.Duration.
func (c SilenceConfig) Duration() time.Duration {
	return time.Duration(c.Time) * time.Millisecond
}

// SilenceState tracks when the signal was last above the amplitude threshold.
type SilenceState struct {
	LastLoud time.Time
}

// NewSilenceState starts the silence clock at now.
func NewSilenceState(now time.Time) *SilenceState {
	return &SilenceState{LastLoud: now}
}

// SilenceResult is the outcome of analysing one frame.
type SilenceResult struct {
	Silent  bool
	Elapsed time.Duration
}

// AnalyzeSilence updates st from frame and reports whether the signal has stayed
// quiet for longer than cfg.Time. The result is not latched: once silent, every
// following quiet frame reports Silent again, so callers stop recording on the
// first trigger.
func AnalyzeSilence(frame []float32, cfg SilenceConfig, st *SilenceState, now time.Time) SilenceResult {
	for _, s := range frame {
		v := math.Max(-1, math.Min(1, float64(s)))
		if v > cfg.Amplitude || v < -cfg.Amplitude {
			st.LastLoud = now
			break
		}
	}
	elapsed := now.Sub(st.LastLoud)
	return SilenceResult{
		Silent:  elapsed > cfg.Duration(),
		Elapsed: elapsed,
	}
}
