package policy

import (
	"fmt"
	"strings"
)

// Quality is the student-record quality level, ordered low < medium < high < top.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityTop
)

var qualityNames = [...]string{"low", "medium", "high", "top"}

func (q Quality) String() string {
	if q < QualityLow || q > QualityTop {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualityNames[q]
}

// StrongRecord reports whether the record qualifies for the merit exception.
func (q Quality) StrongRecord() bool {
	return q == QualityHigh || q == QualityTop
}

// Korean labels, accepted with or without their parenthesised description,
// e.g. "상" or "상 (우수)".
var koreanQuality = map[string]Quality{
	"하":  QualityLow,
	"중":  QualityMedium,
	"상":  QualityHigh,
	"최상": QualityTop,
}

// ParseQuality accepts the English names and the Korean labels.
func ParseQuality(s string) (Quality, error) {
	v := strings.TrimSpace(s)
	if i := strings.IndexAny(v, "( "); i > 0 {
		v = v[:i]
	}

	for i, name := range qualityNames {
		if strings.EqualFold(v, name) {
			return Quality(i), nil
		}
	}
	if q, ok := koreanQuality[v]; ok {
		return q, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownQuality, s)
}

// Qualities lists all levels in ascending order.
func Qualities() []Quality {
	return []Quality{QualityLow, QualityMedium, QualityHigh, QualityTop}
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
