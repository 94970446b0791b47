package kgo

import (
	"github.com/twmb/kgocore/pkg/kerr"
	"github.com/twmb/kgocore/pkg/kmsg"
)

// RecoveryActionKind tags what the engine should do after classifying a
// response (spec §3 RecoveryAction).
type RecoveryActionKind int8

const (
	ActionNone RecoveryActionKind = iota
	ActionRefreshMetadata
	ActionWaitAndRetry
	ActionPassThru
	ActionEscalate
)

// RecoveryAction is the classifier's verdict (spec §3). For
// ActionRefreshMetadata, exactly one of Topics or GroupID is meaningful,
// depending on whether the fault came from topic routing or group
// coordinator routing.
type RecoveryAction struct {
	Kind    RecoveryActionKind
	Topics  []string
	GroupID string
}

// classify is a pure, total function over responses (spec §4.C, §8
// invariant 6): it returns a nil code and the zero RecoveryAction when
// there is nothing to recover from.
func classify(req kmsg.Request, resp kmsg.Response) (*kerr.Error, RecoveryAction) {
	switch r := resp.(type) {

	case *kmsg.MetadataResponse:
		return classifyNestedTopics(req, r.Topics, func(t kmsg.MetadataResponseTopic) (*kerr.Error, []kmsg.MetadataResponseTopicPartition, string) {
			return t.ErrorCode, t.Partitions, t.Topic
		}, func(p kmsg.MetadataResponseTopicPartition) *kerr.Error { return p.ErrorCode },
			metadataOverride)

	case *kmsg.FetchResponse:
		return classifyNestedTopics(req, r.Topics, func(t kmsg.FetchResponseTopic) (*kerr.Error, []kmsg.FetchResponsePartition, string) {
			return nil, t.Partitions, t.Topic
		}, func(p kmsg.FetchResponsePartition) *kerr.Error { return p.ErrorCode },
			metadataOverride)

	case *kmsg.OffsetResponse:
		return classifyNestedTopics(req, r.Topics, func(t kmsg.OffsetResponseTopic) (*kerr.Error, []kmsg.OffsetResponsePartition, string) {
			return nil, t.Partitions, t.Topic
		}, func(p kmsg.OffsetResponsePartition) *kerr.Error { return p.ErrorCode },
			metadataOverride)

	case *kmsg.OffsetFetchResponse:
		return classifyNestedTopics(req, r.Topics, func(t kmsg.OffsetFetchResponseTopic) (*kerr.Error, []kmsg.OffsetFetchResponseTopicPartition, string) {
			return nil, t.Partitions, t.Topic
		}, func(p kmsg.OffsetFetchResponseTopicPartition) *kerr.Error { return p.ErrorCode },
			passThruOverride(kerr.UnknownMemberId.Code, kerr.IllegalGeneration.Code, kerr.RebalanceInProgress.Code))

	case *kmsg.OffsetCommitResponse:
		return classifyNestedTopics(req, r.Topics, func(t kmsg.OffsetCommitResponseTopic) (*kerr.Error, []kmsg.OffsetCommitResponseTopicPartition, string) {
			return nil, t.Partitions, t.Topic
		}, func(p kmsg.OffsetCommitResponseTopicPartition) *kerr.Error { return p.ErrorCode },
			passThruOverride(kerr.UnknownMemberId.Code, kerr.IllegalGeneration.Code, kerr.RebalanceInProgress.Code))

	case *kmsg.HeartbeatResponse:
		return topLevelWithOverride(req, r.ErrorCode, passThruOverride(kerr.UnknownMemberId.Code, kerr.IllegalGeneration.Code, kerr.RebalanceInProgress.Code))
	case *kmsg.SyncGroupResponse:
		return topLevelWithOverride(req, r.ErrorCode, passThruOverride(kerr.UnknownMemberId.Code, kerr.IllegalGeneration.Code, kerr.RebalanceInProgress.Code))
	case *kmsg.JoinGroupResponse:
		return topLevelWithOverride(req, r.ErrorCode, passThruOverride(kerr.UnknownMemberId.Code))

	case *kmsg.ProduceResponse:
		// Producer layer handles acks; the core never recovers on its
		// behalf (spec §4.C).
		return nil, RecoveryAction{}

	case *kmsg.GroupCoordinatorResponse:
		return topLevel(req, r.ErrorCode)
	case *kmsg.ApiVersionsResponse:
		return topLevel(req, r.ErrorCode)

	default:
		return nil, RecoveryAction{}
	}
}

// topLevel classifies a flat (non-nested) response by its single error
// code, applying the default top-level table from spec §4.C. req supplies
// the group id a coordinator-routing fault should refresh, when req is a
// GroupRequest.
func topLevel(req kmsg.Request, code *kerr.Error) (*kerr.Error, RecoveryAction) {
	if code == nil {
		return nil, RecoveryAction{}
	}
	switch code.Code {
	case kerr.NotCoordinatorForGroup.Code, kerr.GroupCoordinatorNotAvailable.Code:
		// Spec §4.C / §9: the table lists NotCoordinatorForGroup under
		// both RefreshMetadata and PassThru. When req names a group,
		// the refresh is scoped to that group's coordinator — not a
		// topic metadata refresh, which would leave the stale
		// coordinator mapping untouched and the fault unresolved.
		if gr, ok := req.(kmsg.GroupRequest); ok {
			return code, RecoveryAction{Kind: ActionRefreshMetadata, GroupID: gr.GroupID()}
		}
		return code, RecoveryAction{Kind: ActionRefreshMetadata}
	case kerr.LeaderNotAvailable.Code, kerr.RequestTimedOut.Code, kerr.GroupLoadInProgress.Code,
		kerr.NotEnoughReplicas.Code, kerr.NotEnoughReplicasAfterAppend.Code:
		return code, RecoveryAction{Kind: ActionWaitAndRetry}
	case kerr.IllegalGeneration.Code, kerr.OffsetOutOfRange.Code, kerr.UnknownMemberId.Code:
		return code, RecoveryAction{Kind: ActionPassThru}
	default:
		return code, RecoveryAction{Kind: ActionEscalate}
	}
}

type override func(code *kerr.Error, topic string) (RecoveryAction, bool)

func metadataOverride(code *kerr.Error, topic string) (RecoveryAction, bool) {
	if code != nil && (code.Code == kerr.UnknownTopicOrPartition.Code || code.Code == kerr.NotLeaderForPartition.Code) {
		return RecoveryAction{Kind: ActionRefreshMetadata, Topics: []string{topic}}, true
	}
	return RecoveryAction{}, false
}

func passThruOverride(codes ...kerr.Code) override {
	set := map[kerr.Code]bool{}
	for _, c := range codes {
		set[c] = true
	}
	return func(code *kerr.Error, _ string) (RecoveryAction, bool) {
		if code != nil && set[code.Code] {
			return RecoveryAction{Kind: ActionPassThru}, true
		}
		return RecoveryAction{}, false
	}
}

func topLevelWithOverride(req kmsg.Request, code *kerr.Error, ov override) (*kerr.Error, RecoveryAction) {
	if code == nil {
		return nil, RecoveryAction{}
	}
	if action, ok := ov(code, ""); ok {
		return code, action
	}
	return topLevel(req, code)
}

// classifyNestedTopics scans topics, then partitions within each topic, in
// received order, and returns the first non-NoError entry found, with ov
// consulted before falling back to the default top-level table
// (spec §4.C "scan in order and return the first non-NoError entry").
func classifyNestedTopics[T any, P any](
	req kmsg.Request,
	topics []T,
	topicFields func(T) (*kerr.Error, []P, string),
	partErr func(P) *kerr.Error,
	ov override,
) (*kerr.Error, RecoveryAction) {
	for _, t := range topics {
		topicErr, parts, topicName := topicFields(t)
		if topicErr != nil {
			if action, ok := ov(topicErr, topicName); ok {
				return topicErr, action
			}
			return topLevel(req, topicErr)
		}
		for _, p := range parts {
			pe := partErr(p)
			if pe != nil {
				if action, ok := ov(pe, topicName); ok {
					return pe, action
				}
				return topLevel(req, pe)
			}
		}
	}
	return nil, RecoveryAction{}
}
