package audio

// Buffer accumulates recorded frames for one turn.
// Not safe for concurrent use; the capture worker owns it.
type Buffer struct {
	frames [][]float32
	total  int
}

// Append adds a frame's samples to the buffer.
func (b *Buffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.frames = append(b.frames, samples)
	b.total += len(samples)
}

// Len returns the total number of buffered samples.
func (b *Buffer) Len() int { return b.total }

// Frames returns the number of buffered frames.
func (b *Buffer) Frames() int { return len(b.frames) }

// Merge concatenates all frames into one contiguous slice.
func (b *Buffer) Merge() []float32 {
	out := make([]float32, b.total)
	offset := 0
	for _, f := range b.frames {
		offset += copy(out[offset:], f)
	}
	return out
}

// Reset drops all buffered frames.
func (b *Buffer) Reset() {
	b.frames = nil
	b.total = 0
}
