package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNonDataResponse means the upstream answered with markup (an error
	// page) instead of data. Callers render it as "service unavailable".
	ErrNonDataResponse = errors.New("upstream returned non-data response")

	// ErrUnauthorized is the terminal authorization failure: the refresh
	// failed or the replayed request was rejected again.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRefreshFailed wraps the cause of a failed credential refresh.
	ErrRefreshFailed = errors.New("credential refresh failed")

	// ErrNoRefreshCredential is the refresh failure when nothing can be exchanged.
	ErrNoRefreshCredential = errors.New("no refresh credential")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    json.RawMessage
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: upstream returned %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: upstream returned %d", e.Method, e.Path, e.Status)
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// upstreamMessage digs the human message out of the API's error envelopes:
// {"error":{"message":..}}, {"error":".."} or {"message":".."}.
func upstreamMessage(body json.RawMessage) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if json.Unmarshal(env.Error, &plain) == nil && plain != "" {
			return plain
		}
	}
	return env.Message
}
