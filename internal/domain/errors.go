package domain

import (
	"errors"
)

// Fallback messages used when the backend does not supply one
const (
	APIErrorFallback         = "API_ERROR"
	MalformedResponseMessage = "MALFORMED_RESPONSE"
)

var (
	// ErrAuthUnavailable means no session token is present, i.e. the client
	// is not running inside the host platform. All data operations refuse.
	ErrAuthUnavailable = errors.New("session token unavailable: open the dashboard from inside Telegram")

	// ErrMalformedResponse means the envelope lacked the expected data shape
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is returned for an envelope with ok=false, a transport failure or
// a malformed response.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

// NewAPIError builds an APIError, falling back to the generic message
func NewAPIError(endpoint string, status int, message string, err error) *APIError {
	if message == "" {
		message = APIErrorFallback
	}
	return &APIError{
		Endpoint: endpoint,
		Status:   status,
		Message:  message,
		Err:      err,
	}
}

// NewMalformedResponseError wraps ErrMalformedResponse for an endpoint
func NewMalformedResponseError(endpoint string, status int) *APIError {
	return NewAPIError(endpoint, status, MalformedResponseMessage, ErrMalformedResponse)
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAPIError reports whether err carries an APIError
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
