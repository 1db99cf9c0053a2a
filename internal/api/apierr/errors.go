package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/typerace-go/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeResultNotFound      = "RESULT_NOT_FOUND"
	CodeSessionFull         = "SESSION_FULL"
	CodeSessionNotJoinable  = "SESSION_NOT_JOINABLE"
	CodeDuplicateMember     = "DUPLICATE_MEMBER"
	CodeStaleUpdate         = "STALE_UPDATE"
	CodeInsufficientPrompts = "INSUFFICIENT_PROMPTS"
	CodeSessionClosed       = "SESSION_CLOSED"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	CodeDuplicatePlayer     = "DUPLICATE_PLAYER"
	CodeAlreadyInSession    = "ALREADY_IN_SESSION"
	CodeInsufficientPlayers = "INSUFFICIENT_PLAYERS"
	CodeNotHost             = "NOT_HOST"
	CodeNotMember           = "NOT_MEMBER"
	CodeRoundNotStarted     = "ROUND_NOT_STARTED"
	CodeAlreadyStarted      = "ALREADY_STARTED"
	CodeMemberFinished      = "MEMBER_FINISHED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// domainErrors maps model sentinels to their status and code. Order matters:
// the specific not-found errors wrap ErrNotFound and must match first.
var domainErrors = []struct {
	target error
	status int
	code   string
}{
	{model.ErrValidation, http.StatusBadRequest, CodeValidation},
	{model.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
	{model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound},
	{model.ErrResultNotFound, http.StatusNotFound, CodeResultNotFound},
	{model.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{model.ErrSessionFull, http.StatusConflict, CodeSessionFull},
	{model.ErrSessionNotJoinable, http.StatusConflict, CodeSessionNotJoinable},
	{model.ErrDuplicateMember, http.StatusConflict, CodeDuplicateMember},
	{model.ErrStaleUpdate, http.StatusConflict, CodeStaleUpdate},
	{model.ErrInsufficientPrompts, http.StatusUnprocessableEntity, CodeInsufficientPrompts},
	{model.ErrSessionClosed, http.StatusGone, CodeSessionClosed},
	{model.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
	{model.ErrDuplicatePlayer, http.StatusConflict, CodeDuplicatePlayer},
	{model.ErrAlreadyInSession, http.StatusConflict, CodeAlreadyInSession},
	{model.ErrInsufficientPlayers, http.StatusConflict, CodeInsufficientPlayers},
	{model.ErrNotHost, http.StatusForbidden, CodeNotHost},
	{model.ErrNotMember, http.StatusForbidden, CodeNotMember},
	{model.ErrRoundNotStarted, http.StatusConflict, CodeRoundNotStarted},
	{model.ErrAlreadyStarted, http.StatusConflict, CodeAlreadyStarted},
	{model.ErrMemberFinished, http.StatusConflict, CodeMemberFinished},
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, d := range domainErrors {
		if errors.Is(err, d.target) {
			return &httpError{d.status, APIError{d.code, err.Error()}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// StatusFor returns the HTTP status an error maps to
func StatusFor(err error) int {
	return toHTTPError(err).status
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
