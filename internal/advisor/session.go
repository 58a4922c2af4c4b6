package advisor

import (
	"sync"
	"time"

	"github.com/runixer/ipsi/internal/openrouter"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the append-only conversation history.
type Turn struct {
	Role  Role      `json:"role"`
	Text  string    `json:"text"`
	Error bool      `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// State is the position of a session in its turn cycle.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateRetrieving    State = "retrieving"
	StateReasoning     State = "reasoning"
	StateAnswered      State = "answered"
)

// Session holds one user's conversation. Only the running turn appends to it.
type Session struct {
	ID        string
	CreatedAt time.Time

	turn sync.Mutex // held for the duration of a turn

	mu         sync.RWMutex
	state      State
	history    []Turn
	lastActive time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		state:      StateAwaitingInput,
		lastActive: now,
	}
}

// History returns a copy of the conversation, oldest first.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// begin claims the session for one turn.
func (s *Session) begin(now time.Time) error {
	if !s.turn.TryLock() {
		return ErrTurnInProgress
	}
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
	return nil
}

// end returns the session to awaiting_input and releases it.
func (s *Session) end(now time.Time) {
	s.mu.Lock()
	s.state = StateAwaitingInput
	s.lastActive = now
	s.mu.Unlock()
	s.turn.Unlock()
}

// busy reports whether a turn is running.
func (s *Session) busy() bool {
	if s.turn.TryLock() {
		s.turn.Unlock()
		return false
	}
	return true
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) append(t Turn) {
	s.mu.Lock()
	s.history = append(s.history, t)
	s.mu.Unlock()
}

// messages converts the history into chat messages.
func (s *Session) messages() []openrouter.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]openrouter.Message, 0, len(s.history))
	for _, t := range s.history {
		role := openrouter.RoleUser
		if t.Role == RoleAssistant {
			role = openrouter.RoleAssistant
		}
		msgs = append(msgs, openrouter.Message{Role: role, Content: t.Text})
	}
	return msgs
}
