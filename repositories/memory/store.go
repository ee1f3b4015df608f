// Package memory provides an in-process record store. It backs tests and
// local development; business logic must behave identically on it and on
// the PostgreSQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
)

// Store implements every repository interface in memory.
type Store struct {
	mu        sync.Mutex
	records   map[string]*models.EntitlementRecord
	audit     []*models.EnforcementAudit
	processed map[string]time.Time

	// FailLoads makes the next n Load calls fail, for exercising the gate's
	// fail-closed path.
	FailLoads int
	loadErr   error

	// FailSaves makes the next n Save calls fail, for exercising redelivery
	// after a transient store failure.
	FailSaves int
	saveErr   error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records:   make(map[string]*models.EntitlementRecord),
		processed: make(map[string]time.Time),
	}
}

// Repositories returns the store wearing all three repository hats.
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Entitlements: s,
		AuditLogs:    s,
		Events:       s,
	}
}

// FailNextLoads arms transient failures for the next n Load calls.
func (s *Store) FailNextLoads(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailLoads = n
	s.loadErr = err
}

// FailNextSaves arms transient failures for the next n Save calls.
func (s *Store) FailNextSaves(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailSaves = n
	s.saveErr = err
}

// Load retrieves a copy of the user's record.
func (s *Store) Load(ctx context.Context, userID string) (*models.EntitlementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLoads > 0 {
		s.FailLoads--
		return nil, s.loadErr
	}

	rec, ok := s.records[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Save upserts the full record.
func (s *Store) Save(ctx context.Context, record *models.EntitlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSaves > 0 {
		s.FailSaves--
		return s.saveErr
	}

	cp := *record
	cp.UpdatedAt = time.Now()
	s.records[record.UserID] = &cp
	return nil
}

// AtomicIncrement adds delta to a counter under the store lock, which gives
// the same serializability the SQL single-statement update does.
func (s *Store) AtomicIncrement(ctx context.Context, userID string, counter models.Counter, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return repositories.ErrNotFound
	}

	switch counter {
	case models.CounterDaily:
		rec.DailyUsage += delta
	case models.CounterAIGenerations:
		rec.MonthlyUsage.AIGenerations += delta
	case models.CounterVideos:
		rec.MonthlyUsage.Videos += delta
	case models.CounterEbooks:
		rec.MonthlyUsage.Ebooks += delta
	default:
		return repositories.ErrNotFound
	}
	rec.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus sets the lifecycle status, reason and suspension horizon.
func (s *Store) UpdateStatus(ctx context.Context, userID string, status models.PlanStatus, reason string, suspendedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	rec.PlanStatus = status
	rec.StatusReason = reason
	rec.SuspendedUntil = suspendedUntil
	rec.UpdatedAt = time.Now()
	return nil
}

// SetUsageCaps sets or clears the reduced-quota overrides.
func (s *Store) SetUsageCaps(ctx context.Context, userID string, dailyCap, aiCap *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	rec.DailyCapOverride = dailyCap
	rec.AICapOverride = aiCap
	rec.UpdatedAt = time.Now()
	return nil
}

// ResetUsage zeroes all usage counters and stamps the reset time.
func (s *Store) ResetUsage(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	rec.DailyUsage = 0
	rec.MonthlyUsage = models.MonthlyUsage{}
	rec.LastUsageResetAt = at
	rec.UpdatedAt = time.Now()
	return nil
}

// UpdateRiskFlags persists the accumulated fraud signals.
func (s *Store) UpdateRiskFlags(ctx context.Context, userID string, flags models.RiskFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	rec.RiskFlags = flags
	rec.UpdatedAt = time.Now()
	return nil
}

// ExpireStale marks lapsed active records as expired.
func (s *Store) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, rec := range s.records {
		if rec.PlanStatus == models.StatusActive && rec.PlanExpiresAt.Before(now) {
			rec.PlanStatus = models.StatusExpired
			rec.StatusReason = "plan term elapsed"
			count++
		}
	}
	return count, nil
}

// ReactivateLapsedSuspensions returns lapsed at_risk suspensions to active.
func (s *Store) ReactivateLapsedSuspensions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, rec := range s.records {
		if rec.PlanStatus == models.StatusAtRisk && rec.SuspendedUntil != nil && rec.SuspendedUntil.Before(now) {
			rec.PlanStatus = models.StatusActive
			rec.StatusReason = "suspension elapsed"
			rec.SuspendedUntil = nil
			count++
		}
	}
	return count, nil
}

// Insert appends a new audit entry.
func (s *Store) Insert(ctx context.Context, entry *models.EnforcementAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.audit = append(s.audit, &cp)
	return nil
}

// ListByUser retrieves audit entries for a user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.EnforcementAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*models.EnforcementAudit, 0)
	for _, e := range s.audit {
		if e.UserID == userID {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	sortNewestFirst(matched)
	return paginate(matched, limit, offset), nil
}

// ListRecent retrieves the most recent audit entries across all users.
func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]*models.EnforcementAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*models.EnforcementAudit, 0, len(s.audit))
	for _, e := range s.audit {
		cp := *e
		all = append(all, &cp)
	}
	sortNewestFirst(all)
	return paginate(all, limit, offset), nil
}

// IsProcessed reports whether an event id has already been recorded.
func (s *Store) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, seen := s.processed[eventID]
	return seen, nil
}

// MarkProcessed records an event id; returns false on redelivery.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.processed[eventID]; seen {
		return false, nil
	}
	s.processed[eventID] = time.Now()
	return true, nil
}

// AuditCount returns the number of stored audit entries.
func (s *Store) AuditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audit)
}

func sortNewestFirst(entries []*models.EnforcementAudit) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func paginate(entries []*models.EnforcementAudit, limit, offset int) []*models.EnforcementAudit {
	if offset >= len(entries) {
		return []*models.EnforcementAudit{}
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
