package bookmaker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alejandrodnm/valuebot/internal/ports"
)

var (
	// ErrCircuitOpen is returned without any network attempt while a
	// bookmaker is cooling off after too many failures.
	ErrCircuitOpen = errors.New("bookmaker: circuit open, cooling off")
	// ErrNotSupported is ports.ErrNotSupported, re-exported for plug-ins.
	ErrNotSupported = ports.ErrNotSupported
	// ErrNoCredentials is returned when an authenticated call is attempted
	// without credentials.
	ErrNoCredentials = errors.New("bookmaker: no credentials configured")
)

// StatusError is an HTTP error response from a bookmaker API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bookmaker: http %d", e.Code)
	}
	return fmt.Sprintf("bookmaker: http %d: %s", e.Code, e.Body)
}

// IsAuthError reports whether err is a 401 or 403 response.
func IsAuthError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
}

// countsAsFailure reports whether err should feed the circuit breaker.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, ErrNotSupported):
		return false
	}
	return true
}
