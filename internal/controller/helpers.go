package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/pkg/saga"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

// Ordering matters only for wrapped chains matching several sentinels;
// the first hit wins.
var errorMappings = []errorMapping{
	{domainErrors.ErrSaleItemNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrRefundNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrCustomerNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrAlreadyRefunded, http.StatusConflict, "already_refunded"},
	{domainErrors.ErrRefundInProgress, http.StatusConflict, "refund_in_progress"},
	{domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrRefundNotResumable, http.StatusConflict, "not_resumable"},
	{domainErrors.ErrAmountExceedsTotal, http.StatusUnprocessableEntity, "amount_exceeds_total"},
	{domainErrors.ErrCustomerRequired, http.StatusUnprocessableEntity, "customer_required"},
	{domainErrors.ErrInvalidRefundMethod, http.StatusBadRequest, "invalid_method"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError translates domain errors into HTTP responses. Anything
// unrecognized becomes an opaque 500; raw storage errors never reach
// the client. A saga stop keeps its step name in the response so the
// caller knows which refund to watch, but the underlying cause stays
// server-side.
func writeError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	if status == http.StatusInternalServerError {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			log.Error().Err(err).Str("step", stepErr.Step).Msg("refund stopped mid-saga")
			resp.Error = fmt.Sprintf("refund incomplete: stopped at step %q; it will be resumed automatically", stepErr.Step)
		} else {
			log.Error().Err(err).Msg("unhandled error in handler")
			resp.Error = "internal server error"
		}
	}

	writeJSON(w, status, resp)
}

func classifyError(err error) (status int, code string) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "validation_error"
	}

	// Domain rejections surfacing through a saga step keep their own
	// status, so this runs before the StepError check.
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		return http.StatusUnprocessableEntity, domainErr.Code
	}

	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		return http.StatusInternalServerError, "refund_incomplete"
	}

	return http.StatusInternalServerError, "internal_error"
}

// decodeAndValidate decodes the JSON body into dst and runs its validator
// tags, reporting the first failing field.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return domainErrors.NewValidationError(fieldErrs[0].Field(), fieldErrs[0].Tag()+" validation failed")
	}
	return domainErrors.NewValidationError("body", err.Error())
}
