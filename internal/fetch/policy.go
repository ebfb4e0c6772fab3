package fetch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/netx"
)

// ErrorKind classifies one failed request.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTimeout
	KindTransient
	KindMissing
	KindStatus
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindMissing:
		return "missing"
	case KindStatus:
		return "status"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

// Action is what the retry loop does after a failure.
type Action int

const (
	ActionRetry Action = iota
	ActionFail
	ActionFailover
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	case ActionFailover:
		return "failover"
	}
	return "unknown"
}

// Policy is the fixed-backoff retry policy. Attempts are numbered from 0;
// attempt MaxRetries is the last one.
type Policy struct {
	MaxRetries int
}

// Decide maps a failed attempt to the next action. failoverEligible is true
// when the origin belongs to a mirror family that has not been probed yet
// during this fetch.
func (p Policy) Decide(attempt int, kind ErrorKind, failoverEligible bool) Action {
	if kind == KindMissing && failoverEligible {
		return ActionFailover
	}
	if attempt >= p.MaxRetries {
		return ActionFail
	}
	return ActionRetry
}

// ClassifyStatus maps a non-2xx status code to an ErrorKind.
func ClassifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return KindTransient
	case http.StatusForbidden, http.StatusNotFound:
		return KindMissing
	}
	if code >= 200 && code < 300 {
		return KindNone
	}
	return KindStatus
}

// ClassifyError maps a transport error to an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.Code)
	}
	if netx.IsTimeout(err) {
		return KindTimeout
	}
	return KindNetwork
}

// StatusError is a response with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Error is returned when every attempt of a fetch failed. It matches
// common.ErrFetchFailed and the last underlying error.
type Error struct {
	URL      string
	Attempts int
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts (%s): %v", e.URL, e.Attempts, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{common.ErrFetchFailed, e.Err}
}

// StatusCode returns the last HTTP status, or 0 for transport errors.
func (e *Error) StatusCode() int {
	var se *StatusError
	if errors.As(e.Err, &se) {
		return se.Code
	}
	return 0
}
