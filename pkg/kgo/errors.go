package kgo

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/twmb/kgocore/pkg/kerr"
	"github.com/twmb/kgocore/pkg/kmsg"
)

// ChannelError is returned by a Channel when a send fails at the transport
// level (spec §6, §7). Fatal kinds (decode, framing, OOM) must propagate
// unconditionally without broker eviction or retry.
type ChannelError struct {
	Cause error
	Fatal bool
}

func (e *ChannelError) Error() string  { return e.Cause.Error() }
func (e *ChannelError) Unwrap() error  { return e.Cause }

// NewTransportError wraps a transient transport failure (connection reset,
// dial failure, timeout) that should trigger broker eviction and recovery.
func NewTransportError(cause error) *ChannelError { return &ChannelError{Cause: cause} }

// NewFatalChannelError wraps a decode/framing/OOM failure that must
// propagate unconditionally (spec §4.F step 5).
func NewFatalChannelError(cause error) *ChannelError { return &ChannelError{Cause: cause, Fatal: true} }

// RouteMissingError is the Failure(RouteType) result of the router (§4.B),
// also used as the payload of a retry-exhausted error after recovery gives
// up on a route miss.
type RouteMissingError struct {
	Route RouteType
}

func (e *RouteMissingError) Error() string {
	return fmt.Sprintf("no route available: %s", e.Route)
}

// RetryExhaustedError is raised when a RetryPolicy's attempt budget is
// spent, whether the underlying cause was a route miss, a protocol error,
// or a channel error (spec §7).
type RetryExhaustedError struct {
	Attempts int
	Route    RouteType
	Last     error // last request/response error observed, may be nil
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s) for route %s: %v", e.Attempts, e.Route, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// BootstrapExhaustedError is raised when every bootstrap server has failed
// across the configured bootstrap retry policy (spec §4.E).
type BootstrapExhaustedError struct {
	Attempts int
	Last     error
}

func (e *BootstrapExhaustedError) Error() string {
	return fmt.Sprintf("bootstrap exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *BootstrapExhaustedError) Unwrap() error { return e.Last }

// EscalationError wraps a protocol error the core refuses to absorb
// (spec §4.C Escalate, §6).
type EscalationError struct {
	Code     *kerr.Error
	Request  kmsg.Request
	Response kmsg.Response
	Endpoint EndPoint
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("escalated error %v from %s for request %s", e.Code, e.Endpoint, e.Request.Key())
}

func newEscalationError(code *kerr.Error, req kmsg.Request, resp kmsg.Response, ep EndPoint) error {
	return errors.WithStack(&EscalationError{Code: code, Request: req, Response: resp, Endpoint: ep})
}
