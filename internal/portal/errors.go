package portal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCredentialsMissing is fatal and never retried; the portal cannot be
// reached without credentials in the config.
var ErrCredentialsMissing = errors.New("portal credentials not configured")

// ErrNotAuthenticated is returned by operations that need a completed
// login flow.
var ErrNotAuthenticated = errors.New("portal session not authenticated")

// AuthError wraps any failure of the login flow. The session is unusable
// afterwards and must be rebuilt by a new run.
type AuthError struct {
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed at stage %q: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SelectorExhaustedError means no selector in a stage's fallback chain
// matched within the stage timeout. Fatal for the whole flow.
type SelectorExhaustedError struct {
	Stage     string
	Selectors []string
	Timeout   time.Duration
}

func (e *SelectorExhaustedError) Error() string {
	return fmt.Sprintf("stage %q: no selector matched within %s (tried %s)",
		e.Stage, e.Timeout, strings.Join(e.Selectors, ", "))
}

// NavigationTimeoutError means a click did not produce a full navigation
// within its bound. Non-fatal: the flow falls through to the idle wait.
type NavigationTimeoutError struct {
	Timeout time.Duration
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("no navigation within %s", e.Timeout)
}

// DownloadTimeoutError means the download event never fired within the
// configured bound. Distinct from an empty download, which succeeds.
type DownloadTimeoutError struct {
	Timeout time.Duration
	Trigger error
}

func (e *DownloadTimeoutError) Error() string {
	if e.Trigger != nil {
		return fmt.Sprintf("download did not complete within %s (trigger error: %v)", e.Timeout, e.Trigger)
	}
	return fmt.Sprintf("download did not complete within %s", e.Timeout)
}

func (e *DownloadTimeoutError) Unwrap() error { return e.Trigger }

// ErrNoMatchingReport is returned when the saved custom reports on the
// reports page do not match the requested fields and filters. Creating a
// new saved report through the UI is not implemented.
var ErrNoMatchingReport = errors.New("no matching saved custom report found")
