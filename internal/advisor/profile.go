package advisor

import (
	"fmt"
	"strings"

	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/policy"
)

// Profile is the student's standing selection, read fresh for every turn.
type Profile struct {
	Institution string         `json:"institution"`
	Track       string         `json:"track"`
	Score       float64        `json:"score"`
	Quality     policy.Quality `json:"quality"`
}

// Validate checks the score range and the quality level.
func (p Profile) Validate() error {
	if err := policy.ValidateScore(p.Score); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if p.Quality < policy.QualityLow || p.Quality > policy.QualityTop {
		return fmt.Errorf("%w: %w: %d", ErrInvalidProfile, policy.ErrUnknownQuality, int(p.Quality))
	}
	return nil
}

// Selection returns the filter selection. Empty values mean any.
// Institution is passed through as picked, since options carry the raw
// corpus spelling. Tracks are canonical and never contain whitespace.
func (p Profile) Selection() filter.Selection {
	return filter.Selection{
		Institution: p.Institution,
		Track:       strings.TrimSpace(p.Track),
	}
}
