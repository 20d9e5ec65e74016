// Package control is the per-session audio facade: capability check,
// recording, export and reply playback.
package control

import (
	"context"
	"log/slog"
	"sync"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/capture"
)

// Error messages surfaced to callers.
const (
	MsgUnsupported = "Audio is not supported."
	MsgNoCallback  = "You must pass a callback function to export."
)

// Source produces microphone frames.
type Source interface {
	Check(ctx context.Context) error
	Start(ctx context.Context) error
	Frames() <-chan audio.Frame
	SampleRate() int
	Stop()
}

// Player renders reply audio.
type Player interface {
	Play(ctx context.Context, data []byte, onComplete func()) error
	Stop()
}

// Option configures a Control.
type Option func(*Control)

// WithPipelineOptions passes options to the capture pipeline.
func WithPipelineOptions(opts ...capture.Option) Option {
	return func(c *Control) { c.pipeOpts = append(c.pipeOpts, opts...) }
}

// Control wraps one capture pipeline and one player.
type Control struct {
	src      Source
	player   Player
	pipeOpts []capture.Option
	pipe     *capture.Pipeline

	mu        sync.Mutex
	supported bool
	pumpStop  context.CancelFunc
	pumpDone  chan struct{}
	closed    bool
}

// New creates a Control reading from src and playing through player.
func New(src Source, player Player, opts ...Option) *Control {
	c := &Control{src: src, player: player}
	for _, o := range opts {
		o(c)
	}
	c.pipe = capture.New(src.SampleRate(), c.pipeOpts...)
	return c
}

// Pipeline exposes the underlying capture pipeline.
func (c *Control) Pipeline() *capture.Pipeline { return c.pipe }

// CheckSupport checks that the source can capture. Recording operations fail with
// Unsupported until a check succeeds. While the source is capturing the
// device is known to work and is not opened a second time.
func (c *Control) CheckSupport(ctx context.Context) bool {
	c.mu.Lock()
	capturing := c.pumpStop != nil && c.supported
	c.mu.Unlock()
	if capturing {
		return true
	}

	err := c.src.Check(ctx)
	c.mu.Lock()
	c.supported = err == nil
	c.mu.Unlock()
	if err != nil {
		slog.Warn("audio not supported", "error", err)
		return false
	}
	return true
}

// Supported reports the result of the last CheckSupport.
func (c *Control) Supported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supported
}

// StartRecording begins a new recording. A nil cfg uses the default
// silence thresholds.
func (c *Control) StartRecording(onSilence func(), onVisualize capture.VisualizeFunc, cfg *audio.SilenceConfig) error {
	if !c.Supported() {
		return apperrors.New(apperrors.CodeUnsupported, MsgUnsupported)
	}
	silence := audio.DefaultSilenceConfig()
	if cfg != nil {
		silence = *cfg
	}
	if err := c.startPump(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnsupported, MsgUnsupported)
	}
	c.pipe.Start(onSilence, onVisualize, silence)
	return nil
}

// StopRecording stops accepting frames; the buffer is kept for export.
func (c *Control) StopRecording() error {
	if !c.Supported() {
		return apperrors.New(apperrors.CodeUnsupported, MsgUnsupported)
	}
	c.pipe.Stop()
	return nil
}

// ExportAudio encodes the recording at targetRate (0 means 16kHz) and
// passes the WAV to cb from another goroutine. The buffer is cleared
// after the export is taken. If the export is abandoned (superseded,
// pipeline closed, encoding failed) cb is not called and onAbandon, when
// set, runs instead.
func (c *Control) ExportAudio(cb func([]byte), targetRate int, onAbandon func()) error {
	if cb == nil {
		return apperrors.New(apperrors.CodeInvalidArgument, MsgNoCallback)
	}
	if targetRate <= 0 {
		targetRate = audio.DefaultExportSampleRate
	}
	if targetRate > c.pipe.CaptureRate() {
		return apperrors.Newf(apperrors.CodeInvalidArgument,
			"export rate %d exceeds capture rate %d", targetRate, c.pipe.CaptureRate())
	}

	ch := c.pipe.Export(targetRate)
	c.pipe.Clear()

	go func() {
		wav, ok := <-ch
		switch {
		case ok:
			cb(wav)
		case onAbandon != nil:
			onAbandon()
		}
	}()
	return nil
}

// Play renders buf and calls onComplete once playback ends. Empty buffers are ignored.
func (c *Control) Play(ctx context.Context, buf []byte, onComplete func()) error {
	if len(buf) == 0 {
		return nil
	}
	return c.player.Play(ctx, buf, onComplete)
}

// StopPlayback stops any reply in progress.
func (c *Control) StopPlayback() {
	c.player.Stop()
}

// Clear stops recording and drops buffered audio.
func (c *Control) Clear() {
	c.pipe.Clear()
}

// Close stops the source and the pipeline.
func (c *Control) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop, done := c.pumpStop, c.pumpDone
	c.mu.Unlock()

	c.player.Stop()
	if stop != nil {
		stop()
		<-done
		c.src.Stop()
	}
	c.pipe.Close()
}

// startPump starts the source and forwards its frames into the pipeline
// on first use.
func (c *Control) startPump() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pumpStop != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.src.Start(ctx); err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	c.pumpStop, c.pumpDone = cancel, done

	frames := c.src.Frames()
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				c.pipe.OnFrame(f)
			}
		}
	}()
	return nil
}
