package market

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks transport failures: dial, timeout, truncated body.
	ErrNetwork = errors.New("network error")
	// ErrMalformed marks payloads that decoded but lack a required field.
	ErrMalformed = errors.New("malformed payload")
	// ErrNotFound marks a ticker the market does not know.
	ErrNotFound = errors.New("instrument not found")
)

// APIError is an upstream that answered but reported a failure.
type APIError struct {
	Source  string // tinkoff, fxrates
	Status  string // upstream status field, or HTTP status text
	Code    int    // HTTP status code
	Payload string // raw response body
}

func (e *APIError) Error() string {
	payload := e.Payload
	if len(payload) > 256 {
		payload = payload[:256] + "..."
	}
	return fmt.Sprintf("%s: upstream status %q (http %d): %s", e.Source, e.Status, e.Code, payload)
}

// Reason is a short, sheet-friendly description of err.
func Reason(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s %s", apiErr.Source, apiErr.Status)
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrNetwork):
		return "network error"
	case errors.Is(err, ErrMalformed):
		return "malformed payload"
	default:
		return err.Error()
	}
}
