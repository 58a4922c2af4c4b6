// Package advisor runs advising turns: it compiles the student's selection
// into a filter, conditions the search result, assembles the prompt and asks
// the reasoning service, keeping every failure scoped to the turn.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/prompt"
	"github.com/runixer/ipsi/internal/retrieval"
)

// Catalog provides the current option snapshot.
type Catalog interface {
	Snapshot(ctx context.Context) catalog.Snapshot
}

// Conditioner searches and linearizes grounding context.
type Conditioner interface {
	Condition(ctx context.Context, query string, f filter.Filter) (retrieval.Grounding, error)
}

// Config holds the per-turn settings.
type Config struct {
	Model       string
	Temperature float64
	Language    string
	Greeting    bool
}

// Service answers questions within sessions.
type Service struct {
	logger      *slog.Logger
	catalog     Catalog
	compiler    filter.Compiler
	conditioner Conditioner
	assembler   *prompt.Assembler
	client      openrouter.Client
	translator  *i18n.Translator
	sessions    *SessionStore
	cfg         Config
	now         func() time.Time
}

func NewService(
	logger *slog.Logger,
	cfg Config,
	cat Catalog,
	compiler filter.Compiler,
	conditioner Conditioner,
	assembler *prompt.Assembler,
	client openrouter.Client,
	translator *i18n.Translator,
	sessions *SessionStore,
) *Service {
	return &Service{
		logger:      logger.With("component", "advisor"),
		catalog:     cat,
		compiler:    compiler,
		conditioner: conditioner,
		assembler:   assembler,
		client:      client,
		translator:  translator,
		sessions:    sessions,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Answer is the outcome of one turn. Err is set when the turn failed; the
// failure text has already been appended to the history as the answer.
type Answer struct {
	SessionID string
	Text      string
	Fallback  bool
	Matches   int
	Filter    string
	Err       error
}

// Failed reports whether the turn ended with an error answer.
func (a Answer) Failed() bool {
	return a.Err != nil
}

// NewSession creates a session, seeded with the greeting when enabled.
func (s *Service) NewSession() (*Session, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return nil, err
	}
	if s.cfg.Greeting {
		sess.append(Turn{
			Role: RoleAssistant,
			Text: s.translator.Get(s.cfg.Language, "advisor.greeting"),
			At:   s.now(),
		})
	}
	s.logger.Info("session created", "session_id", sess.ID)
	return sess, nil
}

// Session looks up a session by id.
func (s *Service) Session(id string) (*Session, error) {
	return s.sessions.Get(id)
}

// Ask runs one turn. Invalid input, unknown sessions and concurrent turns are
// returned as errors without touching the history. Every later failure becomes
// an error answer appended to the history, and Ask returns it with a nil error.
func (s *Service) Ask(ctx context.Context, sessionID string, profile Profile, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: empty question", ErrInvalidProfile)
	}
	if err := profile.Validate(); err != nil {
		return Answer{}, err
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Answer{}, err
	}
	if err := sess.begin(s.now()); err != nil {
		return Answer{}, err
	}
	defer sess.end(s.now())

	start := s.now()
	logger := s.logger.With("session_id", sess.ID)

	sess.append(Turn{Role: RoleUser, Text: question, At: start})

	answer := s.runTurn(ctx, sess, profile, question)
	answer.SessionID = sess.ID

	result := resultAnswered
	switch {
	case answer.Err != nil:
		result = resultError
		logger.Warn("turn failed", "error", answer.Err, "selection", profile.Selection().Describe())
	case answer.Fallback:
		result = resultFallback
	}

	sess.append(Turn{Role: RoleAssistant, Text: answer.Text, Error: answer.Err != nil, At: s.now()})
	sess.setState(StateAnswered)

	recordTurn(result, s.now().Sub(start).Seconds())
	logger.Info("turn answered",
		"result", result,
		"matches", answer.Matches,
		"filter", answer.Filter,
		"duration", s.now().Sub(start),
	)
	return answer, nil
}

func (s *Service) runTurn(ctx context.Context, sess *Session, profile Profile, question string) Answer {
	sess.setState(StateRetrieving)

	snap := s.catalog.Snapshot(ctx)
	f, err := s.compiler.Compile(profile.Selection(), snap.Tracks)
	if err != nil {
		return s.errorAnswer(err)
	}

	grounding, err := s.conditioner.Condition(ctx, question, f)
	if err != nil {
		return s.errorAnswer(err)
	}

	sess.setState(StateReasoning)

	msgs, err := s.assembler.Build(prompt.Request{
		Institution: profile.Institution,
		Track:       profile.Track,
		Score:       profile.Score,
		Quality:     profile.Quality,
		Grounding:   grounding,
		History:     sess.messages(),
	})
	if err != nil {
		return s.errorAnswer(err)
	}

	temperature := s.cfg.Temperature
	resp, err := s.client.CreateChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    msgs,
		Temperature: &temperature,
	})
	if err != nil {
		return s.errorAnswer(fmt.Errorf("%w: %w", ErrReasoningFailed, err))
	}

	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return s.errorAnswer(fmt.Errorf("%w: empty response", ErrReasoningFailed))
	}

	return Answer{
		Text:     text,
		Fallback: grounding.Fallback,
		Matches:  len(grounding.Matches),
		Filter:   f.String(),
	}
}

func (s *Service) errorAnswer(err error) Answer {
	var searchErr *retrieval.SearchError
	if errors.As(err, &searchErr) {
		return Answer{
			Text:   s.translator.Get(s.cfg.Language, "advisor.error_answer", searchErr.Err.Error()),
			Filter: searchErr.Filter,
			Err:    err,
		}
	}
	return Answer{
		Text: s.translator.Get(s.cfg.Language, "advisor.error_answer", err.Error()),
		Err:  err,
	}
}
