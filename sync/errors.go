package sync

import "fmt"

// AuthError means a credential was rejected by the directory or the target
// platform. It always aborts the run.
type AuthError struct {
	Endpoint string
	Status   int
	Detail   string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authentication with %s failed (HTTP %d): %s", e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("authentication with %s failed (HTTP %d)", e.Endpoint, e.Status)
}

// ConfigError means a required configuration value is missing or invalid.
// It is raised before any network call.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Name, e.Reason)
}

type httpStatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %q error: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %q error: HTTP %d", e.Method, e.URL, e.Status)
}

func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}
