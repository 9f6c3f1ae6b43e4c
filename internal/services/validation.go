package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/seaclub/backend/internal/ledger"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a validator that also knows the ledger's
// "category" and "direction" tags.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	ledger.RegisterValidations(v)
	return &ValidationHelper{
		validator: v,
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response. Field details are filled
// from validator errors and ledger validation errors.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)

		var fieldErrs validator.ValidationErrors
		var ledgerErr *ledger.ValidationError
		switch {
		case errors.As(validationErr, &fieldErrs):
			for _, err := range fieldErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		case errors.As(validationErr, &ledgerErr):
			errorResp.Details[ledgerErr.Field] = ledgerErr.Reason
		default:
			errorResp.Details["error"] = validationErr.Error()
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendLedgerError maps a ledger error onto an HTTP status.
func SendLedgerError(w http.ResponseWriter, err error) {
	var ve *ledger.ValidationError
	var nf *ledger.NotFoundError
	switch {
	case errors.As(err, &ve):
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, ve)
	case errors.As(err, &nf):
		SendErrorResponse(w, nf.Error(), http.StatusNotFound, nil)
	default:
		SendErrorResponse(w, "Ledger storage failure", http.StatusInternalServerError, nil)
	}
}

// SendJSON writes v with the given status.
func SendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
