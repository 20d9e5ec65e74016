package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/config"
	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/metrics"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/turns"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/viz"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

// Conversation is the part of orchestrator.Conversation the server drives.
type Conversation interface {
	Advance(ctx context.Context) error
	Reset(ctx context.Context) error
	State() orchestrator.State
	Config() (config.Conversation, uint64)
	UpdateConfig(cfg config.Conversation) error
	SessionID() string
	Turns() *turns.Store
}

// Message is the envelope of every WebSocket message.
type Message struct {
	Type    string `json:"type"`
	TraceID string `json:"trace_id,omitempty"`
}

// StateMessage reports a state change or the state on connect.
type StateMessage struct {
	Type      string `json:"type"`
	State     string `json:"state"`
	SessionID string `json:"sessionId,omitempty"`
}

// ErrorMessage reports a conversation or command error.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// TurnMessage carries a completed turn.
type TurnMessage struct {
	Type string       `json:"type"`
	Turn *turns.Entry `json:"turn"`
}

// AudioMessage carries a batch of visualization frames.
type AudioMessage struct {
	Type   string      `json:"type"`
	Frames []viz.Frame `json:"frames"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	conv     Conversation
	gatherer prometheus.Gatherer
	mu       sync.RWMutex
	conns    map[*websocket.Conn]struct{}
}

// New creates a server. A nil gatherer disables /metrics.
func New(conv Conversation, gatherer prometheus.Gatherer) *Server {
	return &Server{
		conv:     conv,
		gatherer: gatherer,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/conversation/state", s.handleState)
	mux.HandleFunc("POST /api/conversation/advance", s.handleAdvance)
	mux.HandleFunc("POST /api/conversation/reset", s.handleReset)
	mux.HandleFunc("GET /api/conversation/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/conversation/config", s.handlePutConfig)
	mux.HandleFunc("GET /api/turns", s.handleTurns)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"state":       s.conv.State().Kind().String(),
		"connections": s.Connections(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stateMessage())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Advance(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateMessage())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Reset(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateMessage())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeConfig(w)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Conversation
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxConfigBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(r.Context(), w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid config body"))
		return
	}
	if err := s.conv.UpdateConfig(cfg); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.writeConfig(w)
}

func (s *Server) writeConfig(w http.ResponseWriter) {
	cfg, rev := s.conv.Config()
	w.Header().Set(ConfigRevisionHeader, strconv.FormatUint(rev, 10))
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	seconds := DefaultTurnWindow
	if v := r.URL.Query().Get("seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(r.Context(), w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid seconds %q", v))
			return
		}
		seconds = n
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, s.conv.Turns().Summary(seconds))
		return
	}
	entries := s.conv.Turns().Recent(seconds)
	if entries == nil {
		entries = []turns.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) stateMessage() StateMessage {
	return StateMessage{
		Type:      TypeState,
		State:     s.conv.State().Kind().String(),
		SessionID: s.conv.SessionID(),
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	baseCtx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	events, unsubscribe := s.conv.Turns().Subscribe()
	defer unsubscribe()
	go s.forwardEvents(baseCtx, conn, events)

	_ = write(baseCtx, conn, s.stateMessage())

	rl := &rateLimiter{}
	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = write(baseCtx, conn, ErrorMessage{Type: TypeRateLimited, Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		}

		var cmdErr error
		switch base.Type {
		case TypeAdvance:
			cmdErr = s.conv.Advance(ctx)
		case TypeReset:
			cmdErr = s.conv.Reset(ctx)
		case TypeState:
			_ = write(ctx, conn, s.stateMessage())
		default:
			trace.Logger(ctx).Debug("unknown websocket command", "type", base.Type)
		}
		// Conversation errors also arrive on the event stream; only
		// transport-level failures are echoed here.
		if cmdErr != nil && apperrors.IsCode(cmdErr, apperrors.CodeCancelled) {
			_ = write(ctx, conn, ErrorMessage{Type: TypeError, Code: apperrors.CodeCancelled.String(), Message: cmdErr.Error()})
		}
	}
}

// forwardEvents relays conversation events to one connection.
func (s *Server) forwardEvents(ctx context.Context, conn *websocket.Conn, events <-chan turns.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var msg any
			switch ev.Type {
			case turns.EventState:
				msg = StateMessage{Type: TypeState, State: ev.State}
			case turns.EventError:
				msg = ErrorMessage{Type: TypeError, Code: ev.Code, Message: ev.Message}
			case turns.EventTurn:
				msg = TurnMessage{Type: TypeTurn, Turn: ev.Turn}
			default:
				continue
			}
			if err := write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

// Visualize pushes a batch of visualization frames to every connection.
// It is the sink of the visualization batcher.
func (s *Server) Visualize(ctx context.Context, frames []viz.Frame) error {
	msg := AudioMessage{Type: TypeAudio, Frames: frames}

	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			_ = write(ctx, c, msg)
		}(c)
	}
	wg.Wait()
	return nil
}

// Connections returns the number of open WebSocket connections.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := apperrors.CodeInternal
	msg := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		code = appErr.Code
		msg = appErr.Message
	}
	trace.Logger(ctx).Debug("request failed", "code", code.String(), "error", err)
	writeJSON(w, httpStatus(code), ErrorMessage{Type: TypeError, Code: code.String(), Message: msg})
}

func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument, apperrors.CodeConfigInvalid:
		return http.StatusBadRequest
	case apperrors.CodeUnsupported, apperrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeRemoteFailure:
		return http.StatusBadGateway
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
