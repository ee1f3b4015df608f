package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditSeverity grades an enforcement audit entry.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// EnforcementAudit is one immutable audit trail entry. Entries are
// append-only; duplicates from idempotent re-application are acceptable.
type EnforcementAudit struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	UserID       string            `json:"user_id" db:"user_id"`
	Action       EnforcementAction `json:"action" db:"action"`
	Severity     AuditSeverity     `json:"severity" db:"severity"`
	Reason       string            `json:"reason" db:"reason"`
	Details      json.RawMessage   `json:"details,omitempty" db:"details"`
	AutoExecuted bool              `json:"auto_executed" db:"auto_executed"`
	Timestamp    time.Time         `json:"timestamp" db:"timestamp"`
}

// NewEnforcementAudit creates an audit entry for an action against a user.
func NewEnforcementAudit(userID string, action EnforcementAction, reason string, auto bool) *EnforcementAudit {
	return &EnforcementAudit{
		ID:           uuid.New(),
		UserID:       userID,
		Action:       action,
		Severity:     severityFor(action),
		Reason:       reason,
		AutoExecuted: auto,
		Timestamp:    time.Now(),
	}
}

// WithDetails attaches structured metadata to the entry.
func (a *EnforcementAudit) WithDetails(details interface{}) *EnforcementAudit {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

func severityFor(action EnforcementAction) AuditSeverity {
	switch action {
	case ActionBlockImmediately:
		return SeverityCritical
	case ActionSuspendTemporarily, ActionLimitUsage:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
