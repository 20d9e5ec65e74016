package capture

import (
	"log/slog"
	"time"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
)

type opKind int

const (
	opRecord opKind = iota
	opExport
	opClear
)

func (o opKind) String() string {
	switch o {
	case opRecord:
		return "record"
	case opExport:
		return "export"
	case opClear:
		return "clear"
	default:
		return "unknown"
	}
}

type command struct {
	op         opKind
	samples    []float32
	targetRate int
	seq        uint64
}

// worker owns the recording buffer. Commands are handled strictly in send order.
type worker struct {
	p    *Pipeline
	cmds chan command
	done chan struct{}
	buf  audio.Buffer
}

func newWorker(p *Pipeline, queueSize int) *worker {
	return &worker{
		p:    p,
		cmds: make(chan command, queueSize),
		done: make(chan struct{}),
	}
}

// tryPost enqueues without blocking; false means the queue was full.
func (w *worker) tryPost(c command) bool {
	select {
	case <-w.p.quit:
		return false
	default:
	}
	select {
	case w.cmds <- c:
		return true
	default:
		return false
	}
}

// post enqueues, waiting for room; false once the worker has stopped.
func (w *worker) post(c command) bool {
	select {
	case <-w.p.quit:
		return false
	default:
	}
	select {
	case w.cmds <- c:
		return true
	case <-w.p.quit:
		return false
	}
}

func (w *worker) run(quit <-chan struct{}) {
	defer close(w.done)
	for {
		select {
		case <-quit:
			return
		case c := <-w.cmds:
			w.handle(c)
		}
	}
}

func (w *worker) handle(c command) {
	switch c.op {
	case opRecord:
		w.buf.Append(c.samples)
	case opClear:
		w.buf.Reset()
	case opExport:
		w.export(c)
	}
}

func (w *worker) export(c command) {
	if !w.p.current(c.seq) {
		return
	}
	start := time.Now()

	merged := w.buf.Merge()
	samples, err := audio.Downsample(merged, w.p.captureRate, c.targetRate)
	if err != nil {
		slog.Error("export failed", "error", err, "from", w.p.captureRate, "to", c.targetRate)
		w.p.abandon(c.seq)
		return
	}
	wav := audio.EncodeWAV(samples, c.targetRate)

	if w.p.deliver(c.seq, wav) {
		w.p.metrics.RecordExport(len(wav), time.Since(start).Seconds())
		slog.Debug("export ready",
			"frames", w.buf.Frames(),
			"samples", len(samples),
			"bytes", len(wav),
			"rate", c.targetRate)
	}
}
