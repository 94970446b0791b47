// Package kerr holds the protocol error codes that can appear inside an
// otherwise successful broker response, plus small helpers for working with
// them. It mirrors the shape of the teacher lineage's own kerr package
// (Code, Error, ErrorForCode, IsRetriable, named sentinel errors) rather than
// pulling in a generic error-code table, since the codes named here are the
// ones spec'd for this core, not the full upstream protocol.
package kerr

import "fmt"

// Code is a protocol-level error code as carried inside a response.
type Code int16

// Error is a named protocol error. The zero value is NoError.
type Error struct {
	Code    Code
	Message string

	// Retriable is true if a client encountering this error alone
	// (outside of any routing implication) should simply try again
	// without any cluster-state change.
	Retriable bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Named error codes. Values are arbitrary but stable within this module;
// they do not need to match the upstream Kafka wire protocol's numbering
// since wire codec design is out of scope (spec §1 Non-goals) — only the
// classification behavior spec'd in §4.C matters.
var (
	NoError = &Error{Code: 0, Message: "NoError"}

	NotCoordinatorForGroup        = &Error{Code: 1, Message: "NotCoordinatorForGroup", Retriable: true}
	GroupCoordinatorNotAvailable  = &Error{Code: 2, Message: "GroupCoordinatorNotAvailable", Retriable: true}
	LeaderNotAvailable            = &Error{Code: 3, Message: "LeaderNotAvailable", Retriable: true}
	RequestTimedOut               = &Error{Code: 4, Message: "RequestTimedOut", Retriable: true}
	GroupLoadInProgress           = &Error{Code: 5, Message: "GroupLoadInProgress", Retriable: true}
	NotEnoughReplicas             = &Error{Code: 6, Message: "NotEnoughReplicas", Retriable: true}
	NotEnoughReplicasAfterAppend  = &Error{Code: 7, Message: "NotEnoughReplicasAfterAppend", Retriable: true}
	IllegalGeneration             = &Error{Code: 8, Message: "IllegalGeneration"}
	OffsetOutOfRange              = &Error{Code: 9, Message: "OffsetOutOfRange"}
	UnknownMemberId                = &Error{Code: 10, Message: "UnknownMemberId"}
	UnknownTopicOrPartition       = &Error{Code: 11, Message: "UnknownTopicOrPartition"}
	InvalidMessage                = &Error{Code: 12, Message: "InvalidMessage"}
	NotLeaderForPartition         = &Error{Code: 13, Message: "NotLeaderForPartition", Retriable: true}
	RebalanceInProgress           = &Error{Code: 14, Message: "RebalanceInProgress", Retriable: true}
)

var byCode = map[Code]*Error{
	NoError.Code:                      NoError,
	NotCoordinatorForGroup.Code:       NotCoordinatorForGroup,
	GroupCoordinatorNotAvailable.Code: GroupCoordinatorNotAvailable,
	LeaderNotAvailable.Code:           LeaderNotAvailable,
	RequestTimedOut.Code:              RequestTimedOut,
	GroupLoadInProgress.Code:          GroupLoadInProgress,
	NotEnoughReplicas.Code:            NotEnoughReplicas,
	NotEnoughReplicasAfterAppend.Code: NotEnoughReplicasAfterAppend,
	IllegalGeneration.Code:            IllegalGeneration,
	OffsetOutOfRange.Code:             OffsetOutOfRange,
	UnknownMemberId.Code:              UnknownMemberId,
	UnknownTopicOrPartition.Code:      UnknownTopicOrPartition,
	InvalidMessage.Code:               InvalidMessage,
	NotLeaderForPartition.Code:        NotLeaderForPartition,
	RebalanceInProgress.Code:          RebalanceInProgress,
}

// ErrorForCode returns the named Error for code, or nil if code is NoError's
// code (0). Unknown non-zero codes get a synthesized, non-retriable Error so
// callers never have to nil-check against an unrecognized code.
func ErrorForCode(code Code) *Error {
	if code == 0 {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	return &Error{Code: code, Message: "UnknownServerError"}
}

// IsRetriable reports whether err (nil-safe) is a protocol error that is
// safe to retry without any routing change.
func IsRetriable(err *Error) bool {
	return err != nil && err.Retriable
}
