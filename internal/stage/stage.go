// Package stage defines the result and error types shared by pipeline stages.
package stage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage failure sentinels. Every failed Result wraps exactly one of these
// around the underlying process or I/O error.
var (
	ErrProvisioning    = errors.New("provisioning failed")
	ErrConfiguration   = errors.New("configuration failed")
	ErrLaunch          = errors.New("launch failed")
	ErrLogParse        = errors.New("log collection failed")
	ErrRemoteExecution = errors.New("remote execution failed")
	ErrForward         = errors.New("forwarding failed")
)

// Status is the outcome of a single stage run.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ok":
		*s = StatusOK
	case "skipped":
		*s = StatusSkipped
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown stage status %q", text)
	}
	return nil
}

// Result is what a stage reports back to the driver.
type Result struct {
	Stage    string        `json:"stage"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration_ns"`
}

// Error returns the failure text, or "" for non-failed results.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// OK builds a successful result.
func OK(name, detail string) Result {
	return Result{Stage: name, Status: StatusOK, Detail: detail}
}

// Skipped builds a result for a stage whose input was absent.
func Skipped(name, detail string) Result {
	return Result{Stage: name, Status: StatusSkipped, Detail: detail}
}

// Failed builds a failed result wrapping cause with sentinel, so both
// errors.Is(err, sentinel) and errors.Is(err, cause) hold.
func Failed(name string, sentinel, cause error) Result {
	return Result{Stage: name, Status: StatusFailed, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
