package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
	"github.com/criahub/entitlement-engine/utils"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// Assessor computes a risk assessment for one record.
type Assessor interface {
	Assess(record *models.EntitlementRecord, signals models.RiskSignals, now time.Time) models.RiskAssessment
}

// LiveRPM exposes the live per-user request rate.
type LiveRPM interface {
	UserRequestsPerMinute(userID string) int
}

// RiskHandler serves the operator view of a user's risk posture.
type RiskHandler struct {
	records repositories.EntitlementRepository
	audits  repositories.AuditRepository
	scorer  Assessor
	live    LiveRPM
	logger  *zap.Logger
}

// NewRiskHandler creates a new RiskHandler
func NewRiskHandler(
	records repositories.EntitlementRepository,
	audits repositories.AuditRepository,
	scorer Assessor,
	live LiveRPM,
	logger *zap.Logger,
) *RiskHandler {
	return &RiskHandler{
		records: records,
		audits:  audits,
		scorer:  scorer,
		live:    live,
		logger:  logger,
	}
}

// HandleAssessment handles GET /api/v1/users/{userID}/risk. The assessment
// uses the persisted flags plus the live request rate; behavioral signals
// from the ingestion pipeline are only available on the gate path.
func (h *RiskHandler) HandleAssessment(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	record, err := h.records.Load(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	signals := models.RiskSignals{
		RequestsPerMinute: h.live.UserRequestsPerMinute(userID),
	}
	assessment := h.scorer.Assess(record, signals, time.Now())

	utils.WriteOK(w, assessment)
}

// HandleAuditTrail handles GET /api/v1/users/{userID}/audit.
func (h *RiskHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, offset := pagination(r)

	entries, err := h.audits.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []*models.EnforcementAudit{}
	}

	utils.WriteOK(w, entries)
}

// HandleRecentAudit handles GET /api/v1/admin/audit.
func (h *RiskHandler) HandleRecentAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	entries, err := h.audits.ListRecent(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []*models.EnforcementAudit{}
	}

	utils.WriteOK(w, entries)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultAuditPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
