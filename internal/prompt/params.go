// Package prompt assembles the messages sent to the reasoning service: one
// instruction message rendered from the advisor.system_prompt template,
// followed by a bounded window of the conversation.
package prompt

// SystemParams for the advisor.system_prompt template.
type SystemParams struct {
	Institution string // Selected institution or the "any" label
	Track       string // Selected canonical track or the "any" label
	Holistic    bool   // Selected track belongs to the holistic family
	Family      string // Localized family name
	Score       string // Student grade, two decimals
	Quality     string // Localized record-quality label
	Tolerance   string // Borderline tolerance, two decimals
	MeritGap    string // Merit exception gap, two decimals
	Outcomes    OutcomeLabels
	Verdicts    []VerdictLine // Precomputed verdicts, may be empty
	Context     string        // Linearized matches or the fallback marker
}

// OutcomeLabels are the localized outcome names.
type OutcomeLabels struct {
	Safe        string
	Appropriate string
	Reach       string
	Unfavorable string
}

// VerdictLine is one precomputed verdict rendered into the instruction.
type VerdictLine struct {
	Source  string // "[<institution> <track>]"
	Cut     string // "50%"
	Cutoff  string // "2.30"
	Outcome string // Localized outcome
}
