package upstream

import "fmt"

// AuthError reports a credential rejected by the backend (HTTP 401/403).
type AuthError struct {
	// StatusCode is the HTTP status the backend returned.
	StatusCode int

	// Message is the backend's error body, truncated.
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream rejected credential (status %d): %s", e.StatusCode, e.Message)
}

// QuotaError reports an exhausted credential (HTTP 429).
type QuotaError struct {
	Message string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("upstream quota exhausted: %s", e.Message)
}

// RequestError is any other upstream failure.
type RequestError struct {
	// StatusCode is the HTTP status, 0 when the request never completed.
	StatusCode int

	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// ParseError reports a malformed upstream response.
type ParseError struct {
	RawLine string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream response parse error: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
