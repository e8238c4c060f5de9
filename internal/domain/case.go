// internal/domain/case.go
package domain

import (
	"context"
	"fmt"
	"time"
)

// Severity is the ordered escalation level of a case.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ParseSeverity converts a payload value into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("invalid severity: %q", s)
	}
	return sev, nil
}

// Above reports whether s is strictly higher than other.
func (s Severity) Above(other Severity) bool {
	return severityRank[s] > severityRank[other]
}

// Terminal reports whether a case at this severity can no longer be escalated.
func (s Severity) Terminal() bool {
	return s == SeverityCritical
}

// Case is an escalatable incident tracked by a collaborating module.
type Case struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the case is valid.
func (c *Case) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("case ID cannot be empty")
	}
	if _, ok := severityRank[c.Severity]; !ok {
		return fmt.Errorf("case %s has invalid severity: %q", c.ID, c.Severity)
	}
	return nil
}

// CaseRepository persists cases. Get must return ErrCaseNotFound for unknown IDs.
type CaseRepository interface {
	Get(ctx context.Context, id string) (*Case, error)
	Save(ctx context.Context, c *Case) error
}
