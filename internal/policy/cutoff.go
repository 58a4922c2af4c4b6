package policy

import (
	"regexp"
	"strconv"
)

// Cutoff is a grade cutoff quoted in a record body, e.g. "50% cut 2.3".
type Cutoff struct {
	Label string // "50%", "70%"
	Value float64
}

// Matches "50% cut 2.3", "70%컷: 2.61", "50 % CUT 3".
var cutoffPattern = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(?:cut|컷)\s*[:：=]?\s*(\d(?:\.\d+)?)\b`)

// ExtractCutoffs returns the cutoffs found in body in order of appearance.
// Values outside the grade range are ignored.
func ExtractCutoffs(body string) []Cutoff {
	var cutoffs []Cutoff
	for _, m := range cutoffPattern.FindAllStringSubmatch(body, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil || ValidateScore(v) != nil {
			continue
		}
		cutoffs = append(cutoffs, Cutoff{Label: m[1] + "%", Value: v})
	}
	return cutoffs
}

// Verdict is a deterministic classification against one quoted cutoff.
type Verdict struct {
	Cutoff  Cutoff
	Outcome Outcome
}

// Verdicts classifies the student against every cutoff quoted in body.
func (r Rules) Verdicts(student float64, quality Quality, track, body string) []Verdict {
	cutoffs := ExtractCutoffs(body)
	if len(cutoffs) == 0 {
		return nil
	}
	verdicts := make([]Verdict, 0, len(cutoffs))
	for _, c := range cutoffs {
		verdicts = append(verdicts, Verdict{
			Cutoff:  c,
			Outcome: r.Classify(student, c.Value, quality, track),
		})
	}
	return verdicts
}
