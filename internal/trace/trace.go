// Package trace tags HTTP requests, relay calls and conversation turns with
// trace and span ids and stamps them onto slog records.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header and metadata keys carrying trace ids between processes.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type ctxKey struct{}

// Context identifies one span: a 32-hex trace id shared by a whole turn or
// request, and a 16-hex span id.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New starts a trace.
func New() Context {
	return Context{TraceID: newTraceID(), SpanID: newSpanID()}
}

// child opens a span under c; a zero c starts a new trace.
func (c Context) child() Context {
	if c.TraceID == "" {
		return New()
	}
	return Context{TraceID: c.TraceID, SpanID: newSpanID(), ParentSpanID: c.SpanID}
}

// continueFrom opens a span for a remote caller's trace. Empty ids start a
// new trace.
func continueFrom(traceID, callerSpan string) Context {
	if traceID == "" {
		traceID = newTraceID()
	}
	return Context{TraceID: traceID, SpanID: newSpanID(), ParentSpanID: callerSpan}
}

// FromContext returns the trace stored in ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns ctx unchanged if it carries a trace, or with a new one.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newSpanID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Span times one step of a turn, such as a dialogue call or a
// visualization flush.
type Span struct {
	Name  string
	Ctx   Context
	start time.Time
	attrs []any
}

// StartSpan opens a span under the trace in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	s := &Span{Name: name, Ctx: parent.child(), start: time.Now()}
	return WithContext(ctx, s.Ctx), s
}

// SetAttr records a key/value logged when the span ends.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, key, val)
}

// End returns the time since the span started.
func (s *Span) End() time.Duration {
	return time.Since(s.start)
}

// Finish logs the span: debug on success, warn with err on failure.
func (s *Span) Finish(err error) time.Duration {
	d := s.End()
	args := []any{
		"span", s.Name,
		"trace_id", s.Ctx.TraceID,
		"span_id", s.Ctx.SpanID,
		"duration", d,
		slog.Group("attrs", s.attrs...),
	}
	if err != nil {
		slog.Warn("span failed", append(args, "error", err)...)
		return d
	}
	slog.Debug("span complete", args...)
	return d
}

// Logger returns the default logger tagged with the trace in ctx.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	log := slog.Default().With("trace_id", tc.TraceID, "span_id", tc.SpanID)
	if tc.ParentSpanID != "" {
		log = log.With("parent_span_id", tc.ParentSpanID)
	}
	return log
}
