package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/criahub/entitlement-engine/services/gate"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for admin JWT claims
	ClaimsKey contextKey = "claims"

	// DecisionKey is the context key for the gate decision
	DecisionKey contextKey = "gate_decision"
)

// AdminClaims are the claims carried by operator bearer tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves admin JWT claims from context
func GetClaimsFromContext(ctx context.Context) *AdminClaims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*AdminClaims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds admin JWT claims to the context
func WithClaims(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetDecisionFromContext retrieves a gate decision from context
func GetDecisionFromContext(ctx context.Context) *gate.Decision {
	if val := ctx.Value(DecisionKey); val != nil {
		if decision, ok := val.(*gate.Decision); ok {
			return decision
		}
	}
	return nil
}

// WithDecision adds a gate decision to the context
func WithDecision(ctx context.Context, decision *gate.Decision) context.Context {
	return context.WithValue(ctx, DecisionKey, decision)
}
