package service

import "net/http"

// Error codes surfaced by the connection service. Every failure maps to
// HTTP 400 with a short message; full detail stays in the server logs.
const (
	CodeAuthentication = "authentication_error"
	CodeAuthorization  = "authorization_error"
	CodeConfiguration  = "configuration_error"
	CodeSecurity       = "security_error"
	CodeUpstream       = "upstream_error"
	CodeCustody        = "custody_error"
	CodeNotFound       = "not_found"
	CodeValidation     = "validation_error"
)

// ServiceError is a caller-visible failure with a stable code.
type ServiceError struct {
	Code    string
	Message string
	Status  int
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError builds a caller-visible error. All codes respond 400.
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, Status: http.StatusBadRequest}
}
