// Package turns keeps a bounded log of completed conversation turns and
// fans conversation events out to subscribers.
package turns

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the conversation.
const (
	EventState = "state"
	EventError = "error"
	EventTurn  = "turn"
)

// Event is one conversation notification.
type Event struct {
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Turn    *Entry `json:"turn,omitempty"`
}

// Entry records one completed turn.
type Entry struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"sessionId"`
	Timestamp   time.Time     `json:"timestamp"`
	InputBytes  int           `json:"inputBytes"`
	InputLength time.Duration `json:"inputLength"`
	InputPeak   float32       `json:"inputPeak"`
	ReplyBytes  int           `json:"replyBytes"`
	ContentType string        `json:"contentType,omitempty"`
	DialogState string        `json:"dialogState,omitempty"`
	IntentName  string        `json:"intentName,omitempty"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Store holds the last maxEntries turns.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
	buffer  int
	subs    map[int]chan Event
	nextSub int
	now     func() time.Time
}

// NewStore creates a store keeping maxEntries turns; subscribers get
// channels of eventBuffer events.
func NewStore(maxEntries, eventBuffer int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	return &Store{
		entries: make([]Entry, 0, maxEntries),
		maxSize: maxEntries,
		buffer:  eventBuffer,
		subs:    make(map[int]chan Event),
		now:     time.Now,
	}
}

// Add stores e, assigning an id and timestamp when missing, and returns
// the stored entry.
func (s *Store) Add(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	return e
}

// Recent returns the turns of the last seconds, oldest first. A
// non-positive window returns every stored turn.
func (s *Store) Recent(seconds int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if seconds <= 0 {
		out := make([]Entry, len(s.entries))
		copy(out, s.entries)
		return out
	}

	cutoff := s.now().Add(-time.Duration(seconds) * time.Second)
	var out []Entry
	for _, e := range s.entries {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Summary renders the turns of the last seconds one per line.
func (s *Store) Summary(seconds int) string {
	var parts []string
	for _, e := range s.Recent(seconds) {
		if e.Error != "" {
			parts = append(parts, "ERROR: "+e.Error)
			continue
		}
		line := strings.ToUpper(e.DialogState)
		if e.IntentName != "" {
			line += " " + e.IntentName
		}
		if e.Message != "" {
			line += ": " + e.Message
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}

// Subscribe returns a channel receiving every subsequent event and a
// function that removes the subscription and closes the channel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, s.buffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Emit delivers ev to every subscriber without blocking; subscribers
// whose buffer is full miss the event.
func (s *Store) Emit(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// String describes the store for logs.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("turns(%d/%d, %d subscribers)", len(s.entries), s.maxSize, len(s.subs))
}
