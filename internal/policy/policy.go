// Package policy holds the numeric admission decision rules.
//
// Grades run from 1.00 (strongest) to 9.00 (weakest). A student is compared
// with a historical cutoff through diff = student - cutoff, so a negative
// diff means the student is stronger than the cutoff.
package policy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/config"
)

const (
	MinScore = 1.0
	MaxScore = 9.0

	// Absorbs binary rounding so that 2.1 - 2.0 counts as 0.1.
	epsilon = 1e-9
)

var (
	ErrScoreOutOfRange = errors.New("score out of range")
	ErrUnknownQuality  = errors.New("unknown record quality")
)

// ValidateScore checks that a grade lies within [MinScore, MaxScore].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %v not in [%.2f, %.2f]", ErrScoreOutOfRange, score, MinScore, MaxScore)
	}
	return nil
}

// Outcome is the admission verdict vocabulary.
type Outcome string

const (
	OutcomeSafe           Outcome = "safe"
	OutcomeAppropriate    Outcome = "appropriate"
	OutcomeReachWithMerit Outcome = "reach-with-merit"
	OutcomeUnfavorable    Outcome = "unfavorable"
)

// Outcomes lists the vocabulary from most to least favorable.
var Outcomes = []Outcome{OutcomeSafe, OutcomeAppropriate, OutcomeReachWithMerit, OutcomeUnfavorable}

// Key is the translation key suffix for the outcome.
func (o Outcome) Key() string {
	return strings.ReplaceAll(string(o), "-", "_")
}

// Family is the kind of evaluation a track uses.
type Family int

const (
	FamilyNumeric Family = iota
	FamilyHolistic
)

func (f Family) String() string {
	if f == FamilyHolistic {
		return "holistic"
	}
	return "numeric"
}

// Classifier decides the family of a track from configuration.
type Classifier struct {
	tracks   map[string]struct{}
	keywords []string
}

// NewClassifier builds a classifier. Track names and keywords are compared in
// canonical form, so spacing differences do not matter.
func NewClassifier(tracks, keywords []string) Classifier {
	c := Classifier{tracks: make(map[string]struct{}, len(tracks))}
	for _, t := range tracks {
		if canonical := catalog.CanonicalTrackName(t); canonical != "" {
			c.tracks[canonical] = struct{}{}
		}
	}
	for _, k := range keywords {
		if canonical := catalog.CanonicalTrackName(k); canonical != "" {
			c.keywords = append(c.keywords, canonical)
		}
	}
	return c
}

// Family returns FamilyHolistic when track is listed or contains a keyword.
func (c Classifier) Family(track string) Family {
	canonical := catalog.CanonicalTrackName(track)
	if canonical == "" {
		return FamilyNumeric
	}
	if _, ok := c.tracks[canonical]; ok {
		return FamilyHolistic
	}
	for _, k := range c.keywords {
		if strings.Contains(canonical, k) {
			return FamilyHolistic
		}
	}
	return FamilyNumeric
}

// Rules is the parameterised decision policy.
type Rules struct {
	BorderlineTolerance float64
	MeritMaxGap         float64
	Classifier          Classifier
}

// FromConfig builds Rules from the policy section of the configuration.
func FromConfig(cfg config.PolicyConfig) Rules {
	return Rules{
		BorderlineTolerance: cfg.BorderlineTolerance,
		MeritMaxGap:         cfg.MeritMaxGap,
		Classifier:          NewClassifier(cfg.HolisticTracks, cfg.HolisticKeywords),
	}
}

// Classify compares a student grade with a cutoff on the given track.
func (r Rules) Classify(student, cutoff float64, quality Quality, track string) Outcome {
	diff := student - cutoff

	switch {
	case math.Abs(diff) <= r.BorderlineTolerance+epsilon:
		return OutcomeAppropriate
	case diff < 0:
		return OutcomeSafe
	case quality.StrongRecord() &&
		r.Classifier.Family(track) == FamilyHolistic &&
		diff <= r.MeritMaxGap+epsilon:
		return OutcomeReachWithMerit
	default:
		return OutcomeUnfavorable
	}
}
