package conflict

import (
	"fmt"
	"strings"
)

// Severity is an ordered conflict scale. The zero value means "no severity".
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// ParseSeverity parses a case-insensitive severity name
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// Weight maps the severity onto [0,1] for risk scoring
func (s Severity) Weight() float64 {
	if !s.Valid() {
		return 0
	}
	return float64(s) / float64(SeverityCritical)
}

// Shift moves the severity by delta ordinal steps, clamped to [low, critical]
func (s Severity) Shift(delta int) Severity {
	shifted := s + Severity(delta)
	if shifted < SeverityLow {
		return SeverityLow
	}
	if shifted > SeverityCritical {
		return SeverityCritical
	}
	return shifted
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
