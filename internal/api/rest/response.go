package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	domainErrors "github.com/flowcomply/compliance-engine/internal/domain/errors"
)

// ResponseEnvelope wraps all API responses
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

// ResponseMeta contains response metadata
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse carries the AppError code and message.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  map[string][]string    `json:"fields,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

const maxBodySize = 1 << 20

type responder struct {
	validator  *validator.Validate
	apiVersion string
}

func newResponder(apiVersion string) *responder {
	return &responder{validator: validator.New(), apiVersion: apiVersion}
}

func (h *responder) writeSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	h.writeJSON(w, status, ResponseEnvelope{
		Success: true,
		Data:    data,
		Meta:    h.meta(r.Context()),
	})
}

// writeError renders err with its AppError status; anything else is a 500
// whose message is not exposed.
func (h *responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := &ErrorResponse{Code: domainErrors.CodeInternal, Message: "An internal error occurred"}

	var appErr *domainErrors.AppError
	var vErr *requestValidationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		resp.Code = domainErrors.CodeInvalidInput
		resp.Message = vErr.Message
		resp.Fields = vErr.Fields
	case errors.As(err, &appErr):
		status = appErr.StatusCode
		resp.Code = appErr.Code
		resp.Message = appErr.Message
		resp.Details = appErr.Details
		if appErr.Type == domainErrors.ErrorTypeInternal {
			resp.Details = nil
		}
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		resp.Code = "REQUEST_TIMEOUT"
		resp.Message = "Request timed out"
	}

	if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.IsValid() {
		resp.TraceID = sc.TraceID().String()
	}
	if status == http.StatusConflict {
		w.Header().Set("Retry-After", "5")
	}

	h.writeJSON(w, status, ResponseEnvelope{
		Success: false,
		Error:   resp,
		Meta:    h.meta(r.Context()),
	})
}

func (h *responder) meta(ctx context.Context) ResponseMeta {
	return ResponseMeta{
		RequestID: requestIDFrom(ctx),
		Timestamp: time.Now().UTC(),
		Version:   h.apiVersion,
	}
}

// writeJSON writes JSON response with proper headers
func (h *responder) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and runs struct validation.
func (h *responder) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return &requestValidationError{Message: "Content-Type must be application/json"}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return &requestValidationError{Message: fmt.Sprintf("Request body too large (max %d bytes)", maxBodySize)}
		}
		return &requestValidationError{Message: "Failed to read request body"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &requestValidationError{Message: "Invalid JSON: " + err.Error()}
	}
	if err := h.validator.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// requestValidationError is a malformed request body.
type requestValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *requestValidationError) Error() string {
	return e.Message
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &requestValidationError{Message: "Validation error: " + err.Error()}
	}

	fields := make(map[string][]string)
	for _, fe := range validationErrors {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "This field is required"
		case "min":
			msg = fmt.Sprintf("Minimum length is %s", fe.Param())
		case "max":
			msg = fmt.Sprintf("Maximum length is %s", fe.Param())
		case "printascii":
			msg = "Must contain printable ASCII characters only"
		default:
			msg = fmt.Sprintf("Failed %s validation", fe.Tag())
		}
		fields[fe.Field()] = append(fields[fe.Field()], msg)
	}
	return &requestValidationError{Message: "Validation failed", Fields: fields}
}
