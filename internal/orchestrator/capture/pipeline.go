// Package capture accumulates microphone frames for one turn, watches for
// silence and exports the recording as WAV.
package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/metrics"
)

// VisualizeFunc receives 8-bit time-domain bytes for each recorded frame.
type VisualizeFunc func(samples []byte, length int)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used by silence detection.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithQueueSize sets the worker queue depth.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) { p.queueSize = n }
}

// WithMetrics records frame, silence and export metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

type vizFrame struct {
	fn   VisualizeFunc
	data []byte
}

// Pipeline is the per-session capture pipeline. OnFrame runs on the capture
// goroutine and never blocks; buffering and encoding happen on the worker.
type Pipeline struct {
	captureRate int
	now         func() time.Time
	queueSize   int
	metrics     *metrics.Metrics

	mu          sync.Mutex
	active      bool
	onSilence   func()
	onVisualize VisualizeFunc
	silenceCfg  audio.SilenceConfig
	silence     *audio.SilenceState
	exportSeq   uint64
	pending     chan []byte

	w         *worker
	viz       chan vizFrame
	quit      chan struct{}
	vizDone   chan struct{}
	closeOnce sync.Once
}

// New creates a pipeline for frames captured at captureRate and starts its worker.
func New(captureRate int, opts ...Option) *Pipeline {
	p := newPipeline(captureRate, opts...)
	p.startWorkers()
	return p
}

func newPipeline(captureRate int, opts ...Option) *Pipeline {
	if captureRate <= 0 {
		captureRate = audio.DefaultCaptureSampleRate
	}
	p := &Pipeline{
		captureRate: captureRate,
		now:         time.Now,
		queueSize:   DefaultQueueSize,
		silenceCfg:  audio.DefaultSilenceConfig(),
		quit:        make(chan struct{}),
		vizDone:     make(chan struct{}),
		viz:         make(chan vizFrame, VisualizeQueueSize),
	}
	for _, o := range opts {
		o(p)
	}
	p.w = newWorker(p, p.queueSize)
	return p
}

func (p *Pipeline) startWorkers() {
	go p.w.run(p.quit)
	go p.dispatchViz()
}

// CaptureRate returns the rate frames are expected at.
func (p *Pipeline) CaptureRate() int { return p.captureRate }

// Start begins a recording: silence state restarts now and the buffer is cleared.
func (p *Pipeline) Start(onSilence func(), onVisualize VisualizeFunc, cfg audio.SilenceConfig) {
	p.mu.Lock()
	p.onSilence = onSilence
	p.onVisualize = onVisualize
	p.silenceCfg = cfg
	p.silence = audio.NewSilenceState(p.now())
	p.mu.Unlock()

	p.w.post(command{op: opClear})

	p.mu.Lock()
	p.active = true
	p.mu.Unlock()
	slog.Debug("recording started", "amplitude", cfg.Amplitude, "silence_ms", cfg.Time)
}

// OnFrame handles one captured frame. Ignored while not recording.
func (p *Pipeline) OnFrame(frame audio.Frame) {
	if frame.Len() == 0 {
		return
	}

	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	onSilence, onVisualize := p.onSilence, p.onVisualize
	res := audio.AnalyzeSilence(frame.Samples, p.silenceCfg, p.silence, p.now())
	p.mu.Unlock()

	samples := frame.Clone().Samples
	dropped := !p.w.tryPost(command{op: opRecord, samples: samples})
	p.metrics.RecordFrame(dropped)
	if dropped {
		slog.Warn("capture queue full, dropping frame", "device", frame.DeviceID, "samples", len(samples))
	}

	if onVisualize != nil {
		select {
		case p.viz <- vizFrame{fn: onVisualize, data: audio.TimeDomainBytes(samples)}:
		default:
		}
	}

	if res.Silent {
		p.metrics.RecordSilence()
		if onSilence != nil {
			onSilence()
		}
	}
}

// Stop ends the recording; later frames are ignored until the next Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}

// Recording reports whether frames are currently accepted.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Export asks the worker for a WAV of everything recorded so far, resampled
// to targetRate (0 keeps the export default). The channel yields one value and
// closes. A newer Export supersedes this one: its channel is closed empty.
func (p *Pipeline) Export(targetRate int) <-chan []byte {
	if targetRate <= 0 {
		targetRate = audio.DefaultExportSampleRate
	}
	out := make(chan []byte, 1)

	p.mu.Lock()
	if p.pending != nil {
		close(p.pending)
		slog.Debug("export superseded", "seq", p.exportSeq)
	}
	p.exportSeq++
	seq := p.exportSeq
	p.pending = out
	p.mu.Unlock()

	if !p.w.post(command{op: opExport, targetRate: targetRate, seq: seq}) {
		p.abandon(seq)
	}
	return out
}

// Clear stops recording and discards buffered audio. Exports posted earlier
// still complete first.
func (p *Pipeline) Clear() {
	p.Stop()
	p.w.post(command{op: opClear})
}

// Close stops the worker. Pending exports are closed without a value.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.Stop()
		close(p.quit)
		<-p.w.done
		<-p.vizDone

		p.mu.Lock()
		if p.pending != nil {
			close(p.pending)
			p.pending = nil
		}
		p.mu.Unlock()
	})
}

// current reports whether seq is still the export awaited by a caller.
func (p *Pipeline) current(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil && p.exportSeq == seq
}

// deliver hands wav to the export tagged seq, unless it was superseded.
func (p *Pipeline) deliver(seq uint64, wav []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil || p.exportSeq != seq {
		return false
	}
	p.pending <- wav
	close(p.pending)
	p.pending = nil
	return true
}

func (p *Pipeline) abandon(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil && p.exportSeq == seq {
		close(p.pending)
		p.pending = nil
	}
}

func (p *Pipeline) dispatchViz() {
	defer close(p.vizDone)
	for {
		select {
		case <-p.quit:
			return
		case f := <-p.viz:
			f.fn(f.data, len(f.data))
		}
	}
}
