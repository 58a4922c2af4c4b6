package catalog

import "time"

// Status describes how a snapshot was obtained.
type Status string

const (
	// StatusOK means the corpus was read and produced at least one option.
	StatusOK Status = "ok"
	// StatusEmpty means the corpus was read but carried no usable metadata.
	StatusEmpty Status = "empty"
	// StatusUnavailable means the corpus could not be read. Options are empty.
	StatusUnavailable Status = "unavailable"
)

// Snapshot is the option set computed for one corpus version.
type Snapshot struct {
	Institutions []string        `json:"institutions"`
	Tracks       TrackVariantMap `json:"tracks"`
	Version      string          `json:"version"`
	Status       Status          `json:"status"`
	BuiltAt      time.Time       `json:"built_at"`
}

// Degraded reports whether the options are empty for any reason.
func (s Snapshot) Degraded() bool {
	return s.Status != StatusOK
}

func unavailableSnapshot(now time.Time) Snapshot {
	return Snapshot{
		Institutions: []string{},
		Tracks:       TrackVariantMap{},
		Status:       StatusUnavailable,
		BuiltAt:      now,
	}
}
