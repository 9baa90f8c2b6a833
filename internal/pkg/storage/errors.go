package storage

import "fmt"

// ConfigError indicates the storage client is missing required settings.
// It is always terminal: there is nothing to retry until config changes.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("storage not configured: missing %s", e.Missing)
}

// TransportError wraps a failed HTTP exchange with the storage endpoint.
// Status is 0 when the request never reached the server.
type TransportError struct {
	Op     string
	Key    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s %q failed: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s %q failed: status=%d body=%s", e.Op, e.Key, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
