package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is a non-2xx response from the completions endpoint.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	RequestID  string
}

func newHTTPError(status int, body []byte, requestID string) *HTTPError {
	e := &HTTPError{StatusCode: status, Body: strings.TrimSpace(string(body)), RequestID: requestID}
	var raw map[string]any
	if json.Unmarshal(body, &raw) != nil {
		return e
	}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	}
	if msg, ok := src["message"].(string); ok {
		e.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		e.Code = code
	}
	return e
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "API returned HTTP error: status=%d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ". Response body: %s", e.Body)
	}
	return b.String()
}

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *HTTPError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.HTTPError.Error())
}

func (e *AuthError) Unwrap() error { return e.HTTPError }

// RateLimitError indicates 429 responses. RetryAfter is informational only.
type RateLimitError struct {
	*HTTPError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: provider asks to wait about %ds: %s", int(e.RetryAfter.Seconds()), e.HTTPError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.HTTPError.Error())
}

func (e *RateLimitError) Unwrap() error { return e.HTTPError }

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *HTTPError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.HTTPError.Error()) }

func (e *ServerError) Unwrap() error { return e.HTTPError }

// NetworkError wraps transport failures: refused connections, DNS, timeouts.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("Network error calling LLM API at %s: request timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("Network error calling LLM API at %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(e.Err, &nerr) && nerr.Timeout()
}

// MalformedResponseError means the 2xx envelope lacked choices[0].message.
type MalformedResponseError struct {
	Reason string
	Body   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("Failed to parse API response: %s. Response body: %s", e.Reason, e.Body)
}

// classifyAPIError maps a generic HTTPError to a more specific type where one exists.
func classifyAPIError(apiErr *HTTPError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{HTTPError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{HTTPError: apiErr, RetryAfter: ra}
	case sc >= 500 && sc <= 599:
		return &ServerError{HTTPError: apiErr}
	}
	return apiErr
}

// parseRetryAfterSeconds interprets a Retry-After header value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}
