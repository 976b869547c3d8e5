package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// maxErrorBody caps how much of an error body is read for context.
const maxErrorBody = 4 << 10

// remoteFailure builds the UnavailableError for a failed call. Exactly one of
// resp and err is expected; a 2xx response yields nil.
func remoteFailure(service, op string, resp *http.Response, err error) error {
	var reason string

	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		reason = op + ": circuit breaker open"
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		reason = op + ": retries exhausted"
	case err != nil:
		reason = fmt.Sprintf("%s: %v", op, err)
	case resp == nil:
		reason = op + ": no response"
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		reason = op + ": rate limited"
	default:
		reason = fmt.Sprintf("%s: status %d", op, resp.StatusCode)
		if msg := remoteMessage(resp.Body); msg != "" {
			reason += " (" + msg + ")"
		}
	}

	return domain.NewUnavailableError(service, reason)
}

// remoteMessage pulls a human-readable message out of an error body. Both
// {"error":{"message":...}} and {"message":...} are understood; anything else
// yields "".
func remoteMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}

	if payload.Error.Message != "" {
		return payload.Error.Message
	}

	return payload.Message
}
