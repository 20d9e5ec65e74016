package orchestrator

import (
	"context"
	"time"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/config"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/control"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/turns"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/syncx"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

// message is one unit of work for the loop. Async completions carry the
// epoch they were started in; external calls carry a reply channel.
type message struct {
	ev       Event
	epoch    uint64
	external bool
	reset    bool
	reply    chan error
}

// turnInfo tracks the turn in flight for the turn log.
type turnInfo struct {
	started     time.Time
	inputBytes  int
	inputLength time.Duration
	inputPeak   float32
}

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error if the conversation is already running.
func (c *Conversation) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return apperrors.New(apperrors.CodeInternal, "conversation already running")
	}
	ctx, _ = trace.EnsureContext(ctx)
	log := trace.Logger(ctx).With("session", c.opts.SessionID)
	log.Info("conversation started", "bot", c.cfg.Get().LexConfig.BotName, "turns", c.opts.Turns.String())

	defer func() {
		c.once.Do(func() { close(c.done) })
		c.ctl.StopPlayback()
		c.ctl.Clear()
		log.Info("conversation stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-c.events:
			err := c.handle(ctx, m)
			if m.reply != nil {
				m.reply <- err
			}
		}
	}
}

func (c *Conversation) handle(ctx context.Context, m message) error {
	if m.reset {
		c.reset(ctx)
		return nil
	}
	if !m.external && m.epoch != c.epoch {
		trace.Logger(ctx).Debug("stale completion dropped",
			"event", eventName(m.ev), "epoch", m.epoch, "current", c.epoch)
		return nil
	}

	switch ev := m.ev.(type) {
	case UserAdvance:
		return c.advance(ctx)
	case SilenceDetected:
		return c.silence(ctx)
	case ExportComplete:
		return c.exported(ctx, ev)
	case ExportFailed:
		return c.exportFailed(ctx)
	case RPCSucceeded:
		return c.replied(ctx, ev)
	case RPCFailed:
		return c.failed(ctx, ev)
	case PlaybackComplete:
		return c.played(ctx)
	}
	return nil
}

func (c *Conversation) advance(ctx context.Context) error {
	log := trace.Logger(ctx)
	if c.pending {
		log.Debug("advance ignored while a step is in flight", "state", c.State().Kind().String())
		return nil
	}
	if !c.ctl.CheckSupport(ctx) {
		return c.fail(apperrors.New(apperrors.CodeUnsupported, control.MsgUnsupported))
	}

	switch c.State().(type) {
	case Passive:
		if err := c.startRecording(); err != nil {
			return c.fail(err)
		}
		return c.apply(ctx, UserAdvance{})
	case Listening:
		if err := c.apply(ctx, UserAdvance{}); err != nil {
			return err
		}
		return c.finishRecording(ctx)
	}
	return nil
}

func (c *Conversation) silence(ctx context.Context) error {
	if c.pending {
		return nil
	}
	if _, ok := c.State().(Listening); !ok {
		return nil
	}
	if err := c.apply(ctx, SilenceDetected{}); err != nil {
		return err
	}
	return c.finishRecording(ctx)
}

// startRecording begins a recording whose silence callback is bound to
// the current epoch.
func (c *Conversation) startRecording() error {
	cfg := c.cfg.Get()
	silence := cfg.SilenceDetectionConfig
	return c.ctl.StartRecording(c.onSilence(c.epoch), c.opts.OnAudioData, &silence)
}

// onSilence runs on the capture goroutine. Stopping the recording there
// suppresses further triggers before the loop sees the event.
func (c *Conversation) onSilence(epoch uint64) func() {
	return func() {
		if !c.silenceEnabled() {
			return
		}
		_ = c.ctl.StopRecording()
		c.post(SilenceDetected{}, epoch)
	}
}

func (c *Conversation) silenceEnabled() bool {
	return syncx.View(c.cfg, config.Conversation.SilenceEnabled)
}

func (c *Conversation) finishRecording(ctx context.Context) error {
	if err := c.ctl.StopRecording(); err != nil {
		return c.fail(err)
	}
	epoch := c.epoch
	err := c.ctl.ExportAudio(func(wav []byte) {
		c.post(ExportComplete{Audio: wav}, epoch)
	}, c.opts.ExportRate, func() {
		c.post(ExportFailed{}, epoch)
	})
	if err != nil {
		return c.fail(err)
	}
	c.pending = true
	trace.Logger(ctx).Debug("recording exported", "rate", c.opts.ExportRate)
	return nil
}

func (c *Conversation) exported(ctx context.Context, ev ExportComplete) error {
	c.pending = false
	if err := c.apply(ctx, ev); err != nil {
		return err
	}

	c.pending = true
	length, peak := describeInput(ev.Audio)
	c.turn = turnInfo{started: time.Now(), inputBytes: len(ev.Audio), inputLength: length, inputPeak: peak}
	if length == 0 {
		trace.Logger(ctx).Debug("sending empty recording")
	}
	req := c.cfg.Get().LexConfig.Request(ev.Audio)
	epoch := c.epoch
	go c.send(ctx, req, epoch)
	return nil
}

func (c *Conversation) exportFailed(ctx context.Context) error {
	c.pending = false
	if err := c.apply(ctx, ExportFailed{}); err != nil {
		return err
	}
	return c.fail(apperrors.New(apperrors.CodeInternal, "recording export failed"))
}

// send performs the dialogue call off the loop.
func (c *Conversation) send(ctx context.Context, req *dialogue.Request, epoch uint64) {
	ctx, span := trace.StartSpan(ctx, spanTurn)
	span.SetAttr("session", c.opts.SessionID)
	span.SetAttr("bot", req.BotName)
	span.SetAttr("bytes", len(req.InputStream))

	start := time.Now()
	reply, err := c.client.PostContent(ctx, req)
	c.opts.Metrics.RecordRPC(time.Since(start).Seconds(), err)
	if err != nil {
		span.Finish(err)
		c.post(RPCFailed{Err: err}, epoch)
		return
	}
	span.SetAttr("dialog_state", reply.DialogState)
	span.SetAttr("reply_bytes", len(reply.AudioStream))
	span.Finish(nil)
	c.post(RPCSucceeded{Reply: reply}, epoch)
}

func (c *Conversation) failed(ctx context.Context, ev RPCFailed) error {
	c.pending = false
	if err := c.apply(ctx, ev); err != nil {
		return err
	}

	err := ev.Err
	if !apperrors.IsCode(err, apperrors.CodeRemoteFailure) {
		err = apperrors.Wrap(err, apperrors.CodeRemoteFailure, "dialogue call failed")
	}
	c.recordTurn(turns.Entry{Error: err.Error()})
	c.fail(err)
	return nil
}

func (c *Conversation) replied(ctx context.Context, ev RPCSucceeded) error {
	c.pending = false
	if err := c.apply(ctx, ev); err != nil {
		return err
	}
	reply := ev.Reply

	if c.opts.OnSuccess != nil {
		c.opts.OnSuccess(reply)
	}
	c.recordTurn(turns.Entry{
		ReplyBytes:  len(reply.AudioStream),
		ContentType: reply.ContentType,
		DialogState: reply.DialogState,
		IntentName:  reply.IntentName,
		Message:     reply.Message,
	})

	if !reply.Playable() {
		trace.Logger(ctx).Debug("reply not playable", "content_type", reply.ContentType)
		c.setState(ctx, Passive{})
		return nil
	}

	epoch := c.epoch
	c.pending = true
	err := c.ctl.Play(ctx, reply.AudioStream, func() {
		c.post(PlaybackComplete{}, epoch)
	})
	if err != nil {
		c.pending = false
		c.setState(ctx, Passive{})
		return c.fail(apperrors.Wrap(err, apperrors.CodeInternal, "reply playback failed"))
	}
	return nil
}

func (c *Conversation) played(ctx context.Context) error {
	c.pending = false
	next, err := Transition(c.State(), PlaybackComplete{}, c.silenceEnabled())
	if err != nil {
		trace.Logger(ctx).Warn("unexpected playback completion", "error", err)
		return nil
	}

	if _, ok := next.(Listening); ok {
		if err := c.startRecording(); err != nil {
			c.setState(ctx, Passive{})
			return c.fail(err)
		}
	}
	c.setState(ctx, next)
	return nil
}

// reset abandons the turn in flight. Completions started before the reset
// carry an older epoch and are dropped.
func (c *Conversation) reset(ctx context.Context) {
	c.epoch++
	c.pending = false
	c.ctl.StopPlayback()
	c.ctl.Clear()
	c.setState(ctx, Passive{})
}

// apply runs Transition and commits the result.
func (c *Conversation) apply(ctx context.Context, ev Event) error {
	cur := c.State()
	next, err := Transition(cur, ev, c.silenceEnabled())
	if err != nil {
		trace.Logger(ctx).Warn("transition rejected", "error", err)
		return apperrors.Wrap(err, apperrors.CodeInternal, "transition rejected")
	}
	if next.Kind() != cur.Kind() {
		c.setState(ctx, next)
	} else {
		c.mu.Lock()
		c.state = next
		c.mu.Unlock()
	}
	return nil
}

// setState commits next and notifies observers. Entering the same kind
// still notifies, so a reset in Passive is visible.
func (c *Conversation) setState(ctx context.Context, next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	from, to := prev.Kind().String(), next.Kind().String()
	c.opts.Metrics.RecordTransition(from, to)
	trace.Logger(ctx).Debug("conversation state", "session", c.opts.SessionID, "from", from, "to", to)
	c.opts.Turns.Emit(turns.Event{Type: turns.EventState, State: to})
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(next.Kind())
	}
}

func (c *Conversation) recordTurn(e turns.Entry) {
	e.SessionID = c.opts.SessionID
	e.InputBytes = c.turn.inputBytes
	e.InputLength = c.turn.inputLength
	e.InputPeak = c.turn.inputPeak
	if !c.turn.started.IsZero() {
		e.Duration = time.Since(c.turn.started)
	}
	stored := c.opts.Turns.Add(e)
	c.opts.Turns.Emit(turns.Event{Type: turns.EventTurn, Turn: &stored})
	c.turn = turnInfo{}
}

// describeInput returns the length and peak level of an exported WAV.
func describeInput(wav []byte) (time.Duration, float32) {
	info, err := audio.ParseWAVHeader(wav)
	if err != nil || info.SampleRate == 0 {
		return 0, 0
	}
	samples, err := audio.DecodePCM16(wav)
	if err != nil {
		return 0, 0
	}
	var peak float32
	for _, s := range samples {
		v := audio.PCM16ToFloat(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return time.Duration(info.NumSamples) * time.Second / time.Duration(info.SampleRate), peak
}

func eventName(ev Event) string {
	switch ev.(type) {
	case UserAdvance:
		return "UserAdvance"
	case SilenceDetected:
		return "SilenceDetected"
	case ExportComplete:
		return "ExportComplete"
	case ExportFailed:
		return "ExportFailed"
	case RPCSucceeded:
		return "RPCSucceeded"
	case RPCFailed:
		return "RPCFailed"
	case PlaybackComplete:
		return "PlaybackComplete"
	default:
		return "unknown"
	}
}
