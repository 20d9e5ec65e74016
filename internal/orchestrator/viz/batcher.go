package viz

import (
	"context"
	"sync"
	"time"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

// Frame is one visualization callback: 8-bit time-domain samples.
type Frame struct {
	Samples []byte `json:"samples"`
	Length  int    `json:"length"`
}

// Sink receives flushed batches.
type Sink func(ctx context.Context, frames []Frame) error

// Batcher accumulates frames and flushes them to a sink when the batch is
// full or after flushDelay without a flush.
type Batcher struct {
	sink       Sink
	maxSize    int
	flushDelay time.Duration

	mu      sync.Mutex
	frames  []Frame
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewBatcher creates a visualization batcher.
func NewBatcher(sink Sink, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatchSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Batcher{
		sink:       sink,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		frames:     make([]Frame, 0, maxSize),
	}
}

// Add queues one frame. Its signature matches capture.VisualizeFunc.
func (b *Batcher) Add(samples []byte, length int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.frames = append(b.frames, Frame{Samples: samples, Length: length})

	if len(b.frames) >= b.maxSize {
		b.flushLocked()
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.frames) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	frames := b.frames
	b.frames = make([]Frame, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "viz_batch_flush")
		if err := b.sink(ctx, frames); err != nil {
			trace.Logger(ctx).Debug("visualization flush failed",
				"error", err, "count", len(frames), "elapsed", span.End())
		}
	}()
}

// Flush forces an immediate flush of pending frames.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes remaining frames, waits for in-flight sinks and ignores
// later Adds.
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.flushLocked()
	b.mu.Unlock()
	b.wg.Wait()
}
