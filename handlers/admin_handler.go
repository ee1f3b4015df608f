package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
	"github.com/criahub/entitlement-engine/services/catalog"
	"github.com/criahub/entitlement-engine/utils"
)

// BlockRequest carries the operator's reason for a manual block or unblock.
type BlockRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ChangePlanRequest moves a user to a new plan.
type ChangePlanRequest struct {
	PlanName     string `json:"plan_name" validate:"required"`
	DurationDays int    `json:"duration_days,omitempty" validate:"omitempty,gte=1"`
}

// Enforcer is the subset of executor operations the admin surface drives.
type Enforcer interface {
	Block(ctx context.Context, userID, reason string, auto bool) error
	Unblock(ctx context.Context, userID, reason string) error
}

// AdminHandler serves the manual operator contract.
type AdminHandler struct {
	records  repositories.EntitlementRepository
	enforcer Enforcer
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(records repositories.EntitlementRepository, enforcer Enforcer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		records:  records,
		enforcer: enforcer,
		logger:   logger,
	}
}

// HandleBlock handles POST /api/v1/admin/users/{userID}/block.
func (h *AdminHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req BlockRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleValidationError(w, err)
		return
	}

	if err := h.enforcer.Block(r.Context(), userID, req.Reason, false); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("user blocked by operator",
		zap.String("user_id", userID),
		zap.String("reason", req.Reason))

	utils.WriteOK(w, map[string]string{"user_id": userID, "status": string(models.StatusBlocked)})
}

// HandleUnblock handles POST /api/v1/admin/users/{userID}/unblock.
func (h *AdminHandler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req BlockRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleValidationError(w, err)
		return
	}

	if err := h.enforcer.Unblock(r.Context(), userID, req.Reason); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("user unblocked by operator",
		zap.String("user_id", userID),
		zap.String("reason", req.Reason))

	utils.WriteOK(w, map[string]string{"user_id": userID, "status": string(models.StatusActive)})
}

// HandleChangePlan handles POST /api/v1/admin/users/{userID}/plan. Creates
// the entitlement record when the user has none yet.
func (h *AdminHandler) HandleChangePlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ChangePlanRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleValidationError(w, err)
		return
	}
	if !catalog.IsKnown(req.PlanName) {
		utils.WriteBadRequest(w, fmt.Sprintf("unknown plan %q", req.PlanName),
			map[string]interface{}{"known_plans": catalog.Names()})
		return
	}

	now := time.Now()
	term := catalog.TermFor(req.PlanName)
	if req.DurationDays > 0 {
		term = time.Duration(req.DurationDays) * 24 * time.Hour
	}
	expiresAt := now.Add(term)

	record, err := h.records.Load(r.Context(), userID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		record = models.NewEntitlementRecord(userID, req.PlanName, expiresAt)
	case err != nil:
		HandleServiceError(w, err, h.logger)
		return
	default:
		record.PlanName = req.PlanName
		record.PlanStatus = models.StatusActive
		record.PlanExpiresAt = expiresAt
		record.StatusReason = "plan changed by operator"
		record.SuspendedUntil = nil
		record.ActivatedAt = now
	}

	if err := h.records.Save(r.Context(), record); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("plan changed by operator",
		zap.String("user_id", userID),
		zap.String("plan", req.PlanName),
		zap.Time("expires_at", expiresAt))

	utils.WriteOK(w, record)
}
