package audio

import "time"

// Frame is one capture callback's worth of mono samples in [-1, 1].
type Frame struct {
	Samples   []float32
	DeviceID  string
	Timestamp time.Time
}

// Len returns the number of samples in the frame.
func (f Frame) Len() int { return len(f.Samples) }

// Clone returns a frame with its own copy of the sample slice.
func (f Frame) Clone() Frame {
	f.Samples = append([]float32(nil), f.Samples...)
	return f
}
