// Package errors defines the JSON error body written by the portal endpoints.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Code classifies an error response.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeValidation:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeInternal:     http.StatusInternalServerError,
}

// Status returns the HTTP status written for c. Unknown codes are 500.
func (c Code) Status() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FieldError rejects a single query parameter.
type FieldError struct {
	Param   string `json:"param"`
	Message string `json:"message"`
}

// APIError is the body of every error response.
type APIError struct {
	Code      Code         `json:"code"`
	Message   string       `json:"message"`
	Fields    []FieldError `json:"fields,omitempty"`
	RequestID string       `json:"request_id"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an APIError.
func New(code Code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// Unauthorized is returned when no acting user could be resolved.
func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message)
}

// Internal hides a server-side failure behind message.
func Internal(message string) *APIError {
	return New(CodeInternal, message)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Write sends err stamped with the request id chi assigned to r.
func Write(w http.ResponseWriter, r *http.Request, err *APIError) {
	body := *err
	body.RequestID = middleware.GetReqID(r.Context())
	JSON(w, body.Code.Status(), body)
}

// Params collects rejected query parameters.
type Params []FieldError

// Reject records an invalid parameter.
func (p *Params) Reject(param, message string) {
	*p = append(*p, FieldError{Param: param, Message: message})
}

// Err returns nil when nothing was rejected, otherwise a VALIDATION_ERROR
// listing every rejected parameter.
func (p Params) Err() *APIError {
	if len(p) == 0 {
		return nil
	}
	msgs := make([]string, len(p))
	for i, f := range p {
		msgs[i] = f.Message
	}
	return &APIError{
		Code:    CodeValidation,
		Message: strings.Join(msgs, "; "),
		Fields:  p,
	}
}

// PanicReport describes a recovered handler panic.
type PanicReport struct {
	RequestID string
	Value     string
	Stack     []byte
}

// NewPanicReport captures the current goroutine's stack.
func NewPanicReport(requestID string, v any) PanicReport {
	return PanicReport{
		RequestID: requestID,
		Value:     fmt.Sprint(v),
		Stack:     debug.Stack(),
	}
}

// Attrs returns the report as slog key/value pairs.
func (p PanicReport) Attrs() []any {
	return []any{
		"request_id", p.RequestID,
		"panic", p.Value,
		"stack", string(p.Stack),
	}
}
