package errors

import (
	"errors"
	"net/http"
)

// Error kinds. Every domain error unwraps to exactly one of these.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a domain error with a caller-facing message and machine code.
type Error struct {
	Kind    error
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind so errors.Is(err, ErrNotFound) works.
func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates a domain error of the given kind.
func New(kind error, message, code string) *Error {
	return &Error{Kind: kind, Message: message, Code: code}
}

var (
	// ErrEmailExists is returned when registering an email that is already taken.
	ErrEmailExists = New(ErrInvalidInput, "Email already exists", "EMAIL_EXISTS")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = New(ErrUnauthorized, "Invalid credentials", "INVALID_CREDENTIALS")
	// ErrInvalidToken is returned when a bearer token is missing, malformed, expired or revoked.
	ErrInvalidToken = New(ErrUnauthorized, "Invalid or expired token", "INVALID_TOKEN")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = New(ErrUnauthorized, "Invalid or expired refresh token", "INVALID_REFRESH_TOKEN")
	// ErrRoleRequired is returned when the actor lacks the role an operation needs.
	ErrRoleRequired = New(ErrForbidden, "Insufficient role", "ROLE_REQUIRED")

	ErrProjectNotFound   = New(ErrNotFound, "Project not found or not owned by buyer", "PROJECT_NOT_FOUND")
	ErrDeveloperNotFound = New(ErrNotFound, "Assigned developer not found or not a developer", "DEVELOPER_NOT_FOUND")
	ErrTaskNotFound      = New(ErrNotFound, "Task not found", "TASK_NOT_FOUND")
	ErrTaskNotAssigned   = New(ErrNotFound, "Task not found or not assigned to developer", "TASK_NOT_FOUND")

	ErrTaskNotTodo            = New(ErrInvalidState, "Task already started", "TASK_NOT_TODO")
	ErrTaskNotInProgress      = New(ErrInvalidState, "Task not in progress", "TASK_NOT_IN_PROGRESS")
	ErrTaskNotReadyForPayment = New(ErrInvalidState, "Task not ready for payment", "TASK_NOT_SUBMITTED")
	ErrTaskStateChanged       = New(ErrInvalidState, "Task state changed concurrently", "TASK_STATE_CHANGED")
	ErrSolutionUnavailable    = New(ErrInvalidState, "Solution is available once the task is paid", "SOLUTION_UNAVAILABLE")

	ErrNotProjectOwner = New(ErrForbidden, "Not authorized", "NOT_PROJECT_OWNER")

	ErrInvalidRole     = New(ErrInvalidInput, "Role must be buyer, developer or admin", "INVALID_ROLE")
	ErrInvalidHours    = New(ErrInvalidInput, "Hours spent must be positive with at most 2 decimals", "INVALID_HOURS")
	ErrInvalidRate     = New(ErrInvalidInput, "Hourly rate must be positive with at most 2 decimals", "INVALID_RATE")
	ErrSolutionMissing = New(ErrInvalidInput, "Solution file is required", "SOLUTION_MISSING")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var kindStatus = []struct {
	kind   error
	status int
	code   string
}{
	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrInvalidState, http.StatusBadRequest, "INVALID_STATE"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	for _, ks := range kindStatus {
		if !errors.Is(err, ks.kind) {
			continue
		}
		var domainErr *Error
		if errors.As(err, &domainErr) {
			return NewHTTPError(ks.status, domainErr.Message, domainErr.Code)
		}
		return NewHTTPError(ks.status, err.Error(), ks.code)
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
