package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/config"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/metrics"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/capture"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/control"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/turns"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/syncx"
)

// AudioControl is the audio facade a conversation drives.
type AudioControl interface {
	CheckSupport(ctx context.Context) bool
	StartRecording(onSilence func(), onVisualize capture.VisualizeFunc, cfg *audio.SilenceConfig) error
	StopRecording() error
	ExportAudio(cb func([]byte), targetRate int, onAbandon func()) error
	Play(ctx context.Context, buf []byte, onComplete func()) error
	StopPlayback()
	Clear()
}

var _ AudioControl = (*control.Control)(nil)

// Options wires a Conversation. Control is required. When Dialogue is nil
// a Lex client is built from AWS.
type Options struct {
	Control  AudioControl
	Dialogue dialogue.Client
	AWS      *aws.Config
	Metrics  *metrics.Metrics
	Turns    *turns.Store

	OnStateChange func(Kind)
	OnSuccess     func(*dialogue.Reply)
	OnError       func(error)
	OnAudioData   capture.VisualizeFunc

	// ExportRate is the WAV sample rate sent to the service; 0 means 16kHz.
	ExportRate int
	SessionID  string
}

// Conversation owns one turn-taking session. All state changes happen on
// the goroutine running Run.
type Conversation struct {
	opts   Options
	ctl    AudioControl
	client dialogue.Client
	cfg    *syncx.RWGuard[config.Conversation]

	events  chan message
	done    chan struct{}
	running atomic.Bool
	once    sync.Once

	mu    sync.RWMutex
	state State

	// Owned by the loop.
	epoch   uint64
	pending bool
	turn    turnInfo
}

// New validates cfg and builds a conversation in Passive. Validation
// errors are also passed to OnError.
func New(cfg config.Conversation, opts Options) (*Conversation, error) {
	cfg = cfg.WithDefaults()
	c := &Conversation{
		opts:   opts,
		ctl:    opts.Control,
		cfg:    syncx.NewGuard(cfg),
		events: make(chan message, EventQueueSize),
		done:   make(chan struct{}),
		state:  Passive{},
	}

	if opts.Control == nil {
		return nil, c.fail(apperrors.New(apperrors.CodeInvalidArgument, "audio control is required"))
	}
	if cfg.LexConfig.BotName == "" {
		return nil, c.fail(apperrors.New(apperrors.CodeInvalidArgument, dialogue.MsgNoBotName))
	}

	c.client = opts.Dialogue
	if c.client == nil {
		var awsCfg aws.Config
		if opts.AWS != nil {
			awsCfg = *opts.AWS
		}
		lex, err := dialogue.NewLex(context.Background(), awsCfg)
		if err != nil {
			return nil, c.fail(err)
		}
		c.client = lex
	}

	if c.opts.ExportRate <= 0 {
		c.opts.ExportRate = audio.DefaultExportSampleRate
	}
	if c.opts.SessionID == "" {
		c.opts.SessionID = uuid.NewString()
	}
	if c.opts.Turns == nil {
		c.opts.Turns = turns.NewStore(TurnMaxEntries, TurnEventBuffer)
	}
	return c, nil
}

// SessionID identifies this conversation in logs and turn entries.
func (c *Conversation) SessionID() string { return c.opts.SessionID }

// Turns returns the turn log.
func (c *Conversation) Turns() *turns.Store { return c.opts.Turns }

// State returns the current state.
func (c *Conversation) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Config returns the active configuration and its revision, which counts
// successful UpdateConfig calls.
func (c *Conversation) Config() (config.Conversation, uint64) { return c.cfg.Load() }

// UpdateConfig replaces the configuration. Defaults are applied and the
// change takes effect on the next recording or dialogue call.
func (c *Conversation) UpdateConfig(cfg config.Conversation) error {
	cfg = cfg.WithDefaults()
	if cfg.LexConfig.BotName == "" {
		return c.fail(apperrors.New(apperrors.CodeInvalidArgument, dialogue.MsgNoBotName))
	}
	prev := c.cfg.Swap(cfg)
	slog.Info("conversation config updated",
		"session", c.opts.SessionID,
		"bot", cfg.LexConfig.BotName,
		"previous_bot", prev.LexConfig.BotName,
		"alias", cfg.LexConfig.BotAlias,
		"silence_detection", cfg.SilenceEnabled())
	return nil
}

// Advance moves the conversation forward: from Passive it starts
// recording, from Listening it ends the recording and sends it. Advances
// while a step is in flight are ignored.
func (c *Conversation) Advance(ctx context.Context) error {
	return c.call(ctx, message{ev: UserAdvance{}, external: true})
}

// Reset abandons the current turn and returns to Passive.
func (c *Conversation) Reset(ctx context.Context) error {
	return c.call(ctx, message{reset: true, external: true})
}

// call hands m to the loop and waits for its result.
func (c *Conversation) call(ctx context.Context, m message) error {
	m.reply = make(chan error, 1)
	select {
	case c.events <- m:
	case <-c.done:
		return apperrors.New(apperrors.CodeUnavailable, "conversation stopped")
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.CodeCancelled, "advance cancelled")
	}
	select {
	case err := <-m.reply:
		return err
	case <-c.done:
		return apperrors.New(apperrors.CodeUnavailable, "conversation stopped")
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.CodeCancelled, "advance cancelled")
	}
}

// post queues an async completion tagged with the epoch it belongs to.
func (c *Conversation) post(ev Event, epoch uint64) {
	select {
	case c.events <- message{ev: ev, epoch: epoch}:
	case <-c.done:
	}
}

// fail reports err through OnError and the event stream, then returns it.
func (c *Conversation) fail(err error) error {
	code := apperrors.CodeUnknown
	msg := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		code = appErr.Code
		msg = appErr.Message
	}
	slog.Warn("conversation error", "session", c.opts.SessionID, "code", code.String(), "error", err)
	if c.opts.Turns != nil {
		c.opts.Turns.Emit(turns.Event{Type: turns.EventError, Code: code.String(), Message: msg})
	}
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
	return err
}
