package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// resampleQuality is the beep resampler quality used when a reply's rate
// differs from the speaker rate.
const resampleQuality = 4

// BeepPlayer plays MP3 replies through the default output device.
// The speaker is initialised once, at the rate of the first reply.
type BeepPlayer struct {
	mu      sync.Mutex
	rate    beep.SampleRate
	current *beep.Ctrl
}

// NewBeepPlayer creates a player; the output device is opened on first Play.
func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{}
}

// Play decodes data as MP3 and starts playback. onComplete runs once, on its own
// goroutine, when the stream drains or Stop cuts it short.
func (p *BeepPlayer) Play(_ context.Context, data []byte, onComplete func()) error {
	if len(data) == 0 {
		return nil
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("decode reply audio: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rate == 0 {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			return fmt.Errorf("init speaker: %w", err)
		}
		p.rate = format.SampleRate
	}

	var src beep.Streamer = streamer
	if format.SampleRate != p.rate {
		src = beep.Resample(resampleQuality, format.SampleRate, p.rate, streamer)
	}

	ctrl := &beep.Ctrl{Streamer: src}
	p.current = ctrl

	var once sync.Once
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		once.Do(func() {
			// The speaker lock is held here; hand off before calling out.
			go func() {
				_ = streamer.Close()
				p.mu.Lock()
				if p.current == ctrl {
					p.current = nil
				}
				p.mu.Unlock()
				if onComplete != nil {
					onComplete()
				}
			}()
		})
	})))

	slog.Debug("playback started", "sample_rate", int(format.SampleRate), "bytes", len(data))
	return nil
}

// Stop ends the current playback, if any. The sequence then drains, so the
// completion callback of the stopped stream still fires.
func (p *BeepPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	speaker.Lock()
	p.current.Streamer = nil
	speaker.Unlock()
	p.current = nil
}
