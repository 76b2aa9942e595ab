package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/lifecycle"
	"github.com/wonny/p2pex/backend/internal/matching"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/internal/settlement"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var verr contracts.ValidationError
	switch {
	case errors.Is(err, orderbook.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrOrderExpired),
		errors.Is(err, lifecycle.ErrDeadlineNotElapsed),
		errors.Is(err, settlement.ErrStaleOrder):
		return http.StatusConflict
	case errors.Is(err, matching.ErrInvalidAmount),
		errors.Is(err, matching.ErrInvalidSide),
		errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// Request validation
// =============================================================================

// Validator wraps go-playground/validator with json field names
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports json field names
// and compares decimal.Decimal fields numerically
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &Validator{validate: v}
}

// RequestError lists the fields that failed validation
type RequestError struct {
	Fields map[string]string
}

func (e *RequestError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+" "+rule)
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// Struct validates s and returns a *RequestError for field failures
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	reqErr := &RequestError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		reqErr.Fields[fe.Field()] = rule
	}
	return reqErr
}

// decodeAndValidate reads a JSON body into dest and validates it.
// On failure it writes a 400 and returns false.
func (v *Validator) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}

	if err := v.Struct(dest); err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Fields: reqErr.Fields})
			return false
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}
