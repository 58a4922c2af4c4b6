package prompt

import (
	"fmt"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/policy"
	"github.com/runixer/ipsi/internal/retrieval"
)

// DefaultWindow is the number of conversation turns forwarded per request.
const DefaultWindow = 4

// Request is everything one reasoning call is built from.
type Request struct {
	Institution string
	Track       string
	Score       float64
	Quality     policy.Quality
	Grounding   retrieval.Grounding
	// History is the whole conversation, oldest first, including the
	// question being answered.
	History []openrouter.Message
}

// Assembler renders the instruction message and selects the history window.
type Assembler struct {
	translator *i18n.Translator
	lang       string
	rules      policy.Rules
	fields     catalog.Fields
	window     int
}

func NewAssembler(translator *i18n.Translator, lang string, rules policy.Rules, fields catalog.Fields, window int) *Assembler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Assembler{
		translator: translator,
		lang:       lang,
		rules:      rules,
		fields:     fields,
		window:     window,
	}
}

// Build returns the system message followed by the last turns of history.
func (a *Assembler) Build(req Request) ([]openrouter.Message, error) {
	system, err := a.SystemPrompt(req)
	if err != nil {
		return nil, err
	}

	recent := Window(req.History, a.window)
	msgs := make([]openrouter.Message, 0, len(recent)+1)
	msgs = append(msgs, openrouter.Message{Role: openrouter.RoleSystem, Content: system})
	msgs = append(msgs, recent...)
	return msgs, nil
}

// SystemPrompt renders the instruction message for req.
func (a *Assembler) SystemPrompt(req Request) (string, error) {
	family := a.rules.Classifier.Family(req.Track)
	params := SystemParams{
		Institution: a.label(req.Institution),
		Track:       a.label(req.Track),
		Holistic:    !filter.IsAny(req.Track) && family == policy.FamilyHolistic,
		Family:      a.translator.Get(a.lang, "advisor.track_family."+family.String()),
		Score:       fmt.Sprintf("%.2f", req.Score),
		Quality:     a.QualityLabel(req.Quality),
		Tolerance:   fmt.Sprintf("%.2f", a.rules.BorderlineTolerance),
		MeritGap:    fmt.Sprintf("%.2f", a.rules.MeritMaxGap),
		Outcomes: OutcomeLabels{
			Safe:        a.OutcomeLabel(policy.OutcomeSafe),
			Appropriate: a.OutcomeLabel(policy.OutcomeAppropriate),
			Reach:       a.OutcomeLabel(policy.OutcomeReachWithMerit),
			Unfavorable: a.OutcomeLabel(policy.OutcomeUnfavorable),
		},
		Verdicts: a.verdicts(req),
		Context:  req.Grounding.Context,
	}

	out, err := a.translator.GetTemplate(a.lang, "advisor.system_prompt", params)
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return out, nil
}

// QualityLabel returns the localized record-quality label.
func (a *Assembler) QualityLabel(q policy.Quality) string {
	return a.translator.Get(a.lang, "advisor.quality."+q.String())
}

// OutcomeLabel returns the localized outcome name.
func (a *Assembler) OutcomeLabel(o policy.Outcome) string {
	return a.translator.Get(a.lang, "advisor.outcome."+o.Key())
}

func (a *Assembler) label(selection string) string {
	if filter.IsAny(selection) {
		return a.translator.Get(a.lang, "advisor.any_label")
	}
	return selection
}

// verdicts classifies the student against every cutoff quoted in the
// matched records, using each record's own track for the family check.
func (a *Assembler) verdicts(req Request) []VerdictLine {
	var lines []VerdictLine
	for _, m := range req.Grounding.Matches {
		institution, _ := m.Metadata[a.fields.Institution].(string)
		track, _ := m.Metadata[a.fields.Track].(string)
		if track == "" {
			track = req.Track
		}

		for _, v := range a.rules.Verdicts(req.Score, req.Quality, track, m.Document) {
			lines = append(lines, VerdictLine{
				Source:  fmt.Sprintf("[%s %s]", institution, track),
				Cut:     v.Cutoff.Label,
				Cutoff:  fmt.Sprintf("%.2f", v.Cutoff.Value),
				Outcome: a.OutcomeLabel(v.Outcome),
			})
		}
	}
	return lines
}

// Window returns the last n messages of history, oldest first.
func Window(history []openrouter.Message, n int) []openrouter.Message {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]openrouter.Message, len(history))
	copy(out, history)
	return out
}
