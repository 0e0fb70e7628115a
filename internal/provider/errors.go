package provider

import "fmt"

// ConfigError is raised synchronously before any network call when a
// provider is not configured or does not offer the requested model.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Provider, e.Reason)
}

// TransportError reports an HTTP or socket failure reaching the provider.
// StatusCode and Body carry the provider's response where one was received.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transport error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: transport error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError reports a submission the provider accepted on the wire but
// declined to run, distinct from a transport failure.
type RejectedError struct {
	Provider string
	Reason   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: submission rejected: %s", e.Provider, e.Reason)
}
