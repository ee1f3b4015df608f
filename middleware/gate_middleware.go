package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/services/gate"
	"github.com/criahub/entitlement-engine/utils"
)

// Evaluator is the gate entry point this middleware enforces.
type Evaluator interface {
	Evaluate(ctx context.Context, req gate.Request) gate.Decision
}

// GateEnforcementMiddleware runs the entitlement gate for a protected tool
// call and rejects the request when the gate denies it. The decision is left
// in the request context for the downstream handler.
type GateEnforcementMiddleware struct {
	gate   Evaluator
	logger *zap.Logger
}

// NewGateEnforcementMiddleware creates a new GateEnforcementMiddleware
func NewGateEnforcementMiddleware(evaluator Evaluator, logger *zap.Logger) *GateEnforcementMiddleware {
	return &GateEnforcementMiddleware{
		gate:   evaluator,
		logger: logger,
	}
}

// EnforceEntitlement is a middleware that evaluates the gate for the request
// described in the JSON body and blocks denied requests.
func (m *GateEnforcementMiddleware) EnforceEntitlement(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		var gateReq gate.Request
		if err := json.NewDecoder(r.Body).Decode(&gateReq); err != nil {
			utils.WriteBadRequest(w, "invalid JSON body", nil)
			return
		}
		if err := utils.ValidateStruct(gateReq); err != nil {
			utils.WriteBadRequest(w, err.Error(), utils.GetValidationFields(err))
			return
		}
		if gateReq.ClientIP == "" {
			gateReq.ClientIP = r.RemoteAddr
		}
		if gateReq.UserAgent == "" {
			gateReq.UserAgent = r.UserAgent()
		}

		decision := m.gate.Evaluate(ctx, gateReq)

		m.logger.Debug("gate evaluated",
			zap.String("request_id", requestID),
			zap.String("user_id", gateReq.UserID),
			zap.String("tool_type", string(gateReq.ToolType)),
			zap.Bool("allowed", decision.Allowed))

		if !decision.Allowed {
			m.writeDenial(w, decision)
			return
		}

		ctx = WithDecision(ctx, &decision)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *GateEnforcementMiddleware) writeDenial(w http.ResponseWriter, decision gate.Decision) {
	switch decision.Code {
	case gate.DenyUserNotFound:
		utils.WriteNotFound(w, decision.Details)
	case gate.DenyInternalError:
		utils.WriteInternalServerError(w)
	default:
		utils.WriteForbidden(w, decision.Details, decision)
	}
}
