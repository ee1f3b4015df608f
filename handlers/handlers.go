// Package handlers contains the HTTP handlers for the entitlement engine.
// Handlers stay thin: decode and validate the payload, call one service,
// translate the result through utils and service_errors.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/criahub/entitlement-engine/utils"
)

// errInvalidBody distinguishes malformed JSON from struct validation failures.
var errInvalidBody = errors.New("invalid JSON body")

// decodeAndValidate decodes the request body into dst and runs its validate
// tags. Callers pass the returned error to HandleValidationError.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return utils.ValidateStruct(dst)
}
