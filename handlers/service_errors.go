package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/repositories"
	"github.com/criahub/entitlement-engine/services"
	"github.com/criahub/entitlement-engine/utils"
)

// HandleServiceError maps domain errors to HTTP responses.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err), errors.Is(err, repositories.ErrNotFound):
		utils.WriteNotFound(w, err.Error())

	case services.IsValidationError(err):
		utils.WriteBadRequest(w, err.Error(), details)

	case services.IsClientDeniedError(err):
		utils.WriteForbidden(w, err.Error(), details)

	case services.IsFraudDeniedError(err):
		utils.WriteForbidden(w, err.Error(), details)

	case services.IsConflictError(err):
		utils.WriteConflict(w, err.Error())

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		utils.WriteInternalServerError(w)

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		utils.WriteInternalServerError(w)
	}
}

// HandleValidationError handles validation errors from request parsing.
func HandleValidationError(w http.ResponseWriter, err error) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		utils.WriteBadRequest(w, "Validation failed", details)
		return
	}
	utils.WriteBadRequest(w, err.Error(), nil)
}
