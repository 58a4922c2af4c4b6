package advisor

import "errors"

var (
	// ErrInvalidProfile is returned before any state change when the
	// profile or question cannot be used.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrSessionNotFound is returned for unknown or evicted sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTurnInProgress is returned when a session is already answering.
	ErrTurnInProgress = errors.New("turn in progress")
	// ErrSessionLimit is returned when the store is full.
	ErrSessionLimit = errors.New("session limit reached")
	// ErrReasoningFailed wraps reasoning-service failures.
	ErrReasoningFailed = errors.New("reasoning failed")
)
