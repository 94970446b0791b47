// Package kmsg is the protocol message catalogue consumed by the routing
// core. Spec §1 declares the wire message catalogue an out-of-scope
// external collaborator ("consumed as tagged variants") and §1's
// Non-goals exclude wire codec design outright, so this package holds
// only the request/response shapes the router (§4.B) and classifier
// (§4.C) actually dispatch on — not a serializer, not the full upstream
// protocol surface.
package kmsg

import "github.com/twmb/kgocore/pkg/kerr"

// Key names a request/response kind for the tagged-variant dispatch the
// router and classifier perform.
type Key int8

const (
	KeyProduce Key = iota
	KeyFetch
	KeyOffset
	KeyMetadata
	KeyOffsetCommit
	KeyOffsetFetch
	KeyGroupCoordinator
	KeyJoinGroup
	KeyHeartbeat
	KeySyncGroup
	KeyLeaveGroup
	KeyDescribeGroups
	KeyListGroups
	KeyApiVersions
)

func (k Key) String() string {
	switch k {
	case KeyProduce:
		return "Produce"
	case KeyFetch:
		return "Fetch"
	case KeyOffset:
		return "Offset"
	case KeyMetadata:
		return "Metadata"
	case KeyOffsetCommit:
		return "OffsetCommit"
	case KeyOffsetFetch:
		return "OffsetFetch"
	case KeyGroupCoordinator:
		return "GroupCoordinator"
	case KeyJoinGroup:
		return "JoinGroup"
	case KeyHeartbeat:
		return "Heartbeat"
	case KeySyncGroup:
		return "SyncGroup"
	case KeyLeaveGroup:
		return "LeaveGroup"
	case KeyDescribeGroups:
		return "DescribeGroups"
	case KeyListGroups:
		return "ListGroups"
	case KeyApiVersions:
		return "ApiVersions"
	default:
		return "Unknown"
	}
}

// Request is any request this core can route.
type Request interface {
	Key() Key
}

// Response is any response this core can classify and, where applicable,
// gather.
type Response interface {
	Key() Key
}

// GroupRequest is implemented by every request that is routed to a
// consumer-group coordinator (spec §4.B).
type GroupRequest interface {
	Request
	GroupID() string
}

// --- Bootstrap-routed requests -------------------------------------------

type MetadataRequestTopic struct {
	Topic string
}

// MetadataRequest with a nil Topics fetches metadata for all topics.
type MetadataRequest struct {
	Topics []MetadataRequestTopic
}

func (*MetadataRequest) Key() Key { return KeyMetadata }

type MetadataResponseBroker struct {
	NodeID int32
	Host   string
	Port   uint16
}

type MetadataResponseTopicPartition struct {
	Partition int32
	Leader    int32 // < 0 means leaderless
	ErrorCode *kerr.Error
}

type MetadataResponseTopic struct {
	Topic      string
	ErrorCode  *kerr.Error
	Partitions []MetadataResponseTopicPartition
}

type MetadataResponse struct {
	Brokers []MetadataResponseBroker
	Topics  []MetadataResponseTopic
}

func (*MetadataResponse) Key() Key { return KeyMetadata }

type GroupCoordinatorRequest struct {
	Group string
}

func (*GroupCoordinatorRequest) Key() Key { return KeyGroupCoordinator }

type GroupCoordinatorResponse struct {
	ErrorCode *kerr.Error
	NodeID    int32
}

func (*GroupCoordinatorResponse) Key() Key { return KeyGroupCoordinator }

type ApiVersionsRequest struct{}

func (*ApiVersionsRequest) Key() Key { return KeyApiVersions }

type ApiVersion struct {
	Key        int16
	MinVersion int16
	MaxVersion int16
}

type ApiVersionsResponse struct {
	ErrorCode *kerr.Error
	ApiKeys   []ApiVersion
}

func (*ApiVersionsResponse) Key() Key { return KeyApiVersions }

// --- AllBrokers-routed requests -------------------------------------------

type DescribeGroupsRequest struct {
	Groups []string
}

func (*DescribeGroupsRequest) Key() Key { return KeyDescribeGroups }

type DescribeGroupsResponseGroup struct {
	Group     string
	ErrorCode *kerr.Error
}

type DescribeGroupsResponse struct {
	Groups []DescribeGroupsResponseGroup
}

func (*DescribeGroupsResponse) Key() Key { return KeyDescribeGroups }

type ListGroupsRequest struct{}

func (*ListGroupsRequest) Key() Key { return KeyListGroups }

type ListGroupsResponseGroup struct {
	Group        string
	ProtocolType string
}

type ListGroupsResponse struct {
	ErrorCode *kerr.Error
	Groups    []ListGroupsResponseGroup
}

func (*ListGroupsResponse) Key() Key { return KeyListGroups }

// --- Group-coordinator-routed requests ------------------------------------

type OffsetCommitRequestTopicPartition struct {
	Partition int32
	Offset    int64
}

type OffsetCommitRequestTopic struct {
	Topic      string
	Partitions []OffsetCommitRequestTopicPartition
}

type OffsetCommitRequest struct {
	Group  string
	Topics []OffsetCommitRequestTopic
}

func (r *OffsetCommitRequest) Key() Key      { return KeyOffsetCommit }
func (r *OffsetCommitRequest) GroupID() string { return r.Group }

type OffsetCommitResponseTopicPartition struct {
	Partition int32
	ErrorCode *kerr.Error
}

type OffsetCommitResponseTopic struct {
	Topic      string
	Partitions []OffsetCommitResponseTopicPartition
}

type OffsetCommitResponse struct {
	Topics []OffsetCommitResponseTopic
}

func (*OffsetCommitResponse) Key() Key { return KeyOffsetCommit }

type OffsetFetchRequestTopic struct {
	Topic      string
	Partitions []int32
}

type OffsetFetchRequest struct {
	Group  string
	Topics []OffsetFetchRequestTopic
}

func (r *OffsetFetchRequest) Key() Key      { return KeyOffsetFetch }
func (r *OffsetFetchRequest) GroupID() string { return r.Group }

type OffsetFetchResponseTopicPartition struct {
	Partition int32
	Offset    int64
	ErrorCode *kerr.Error
}

type OffsetFetchResponseTopic struct {
	Topic      string
	Partitions []OffsetFetchResponseTopicPartition
}

type OffsetFetchResponse struct {
	Topics []OffsetFetchResponseTopic
}

func (*OffsetFetchResponse) Key() Key { return KeyOffsetFetch }

type JoinGroupRequest struct {
	Group string
}

func (r *JoinGroupRequest) Key() Key      { return KeyJoinGroup }
func (r *JoinGroupRequest) GroupID() string { return r.Group }

type JoinGroupResponse struct {
	ErrorCode *kerr.Error
	MemberID  string
}

func (*JoinGroupResponse) Key() Key { return KeyJoinGroup }

type SyncGroupRequest struct {
	Group string
}

func (r *SyncGroupRequest) Key() Key      { return KeySyncGroup }
func (r *SyncGroupRequest) GroupID() string { return r.Group }

type SyncGroupResponse struct {
	ErrorCode *kerr.Error
}

func (*SyncGroupResponse) Key() Key { return KeySyncGroup }

type HeartbeatRequest struct {
	Group string
}

func (r *HeartbeatRequest) Key() Key      { return KeyHeartbeat }
func (r *HeartbeatRequest) GroupID() string { return r.Group }

type HeartbeatResponse struct {
	ErrorCode *kerr.Error
}

func (*HeartbeatResponse) Key() Key { return KeyHeartbeat }

type LeaveGroupRequest struct {
	Group string
}

func (r *LeaveGroupRequest) Key() Key      { return KeyLeaveGroup }
func (r *LeaveGroupRequest) GroupID() string { return r.Group }

type LeaveGroupResponse struct {
	ErrorCode *kerr.Error
}

func (*LeaveGroupResponse) Key() Key { return KeyLeaveGroup }

// --- Topic-routed requests (partition-by-leader) --------------------------

type FetchRequestPartition struct {
	Partition int32
}

type FetchRequestTopic struct {
	Topic      string
	Partitions []FetchRequestPartition
}

// FetchRequest is deliberately a plain struct, not a pointer-sharing
// envelope: the router rebuilds one of these per broker, copying every
// envelope field besides Topics (spec §4.B).
type FetchRequest struct {
	ReplicaID   int32
	MaxWaitTime int32
	MinBytes    int32
	MaxBytes    int32
	Topics      []FetchRequestTopic
}

func (*FetchRequest) Key() Key { return KeyFetch }

type FetchResponsePartition struct {
	Partition int32
	ErrorCode *kerr.Error
	Records   []byte
}

type FetchResponseTopic struct {
	Topic      string
	Partitions []FetchResponsePartition
}

type FetchResponse struct {
	ThrottleTime int32
	Topics       []FetchResponseTopic
}

func (*FetchResponse) Key() Key { return KeyFetch }

type ProduceRequestPartition struct {
	Partition int32
	Records   []byte
}

type ProduceRequestTopic struct {
	Topic      string
	Partitions []ProduceRequestPartition
}

type ProduceRequest struct {
	RequiredAcks int16
	Timeout      int32
	Topics       []ProduceRequestTopic
}

func (*ProduceRequest) Key() Key { return KeyProduce }

type ProduceResponsePartition struct {
	Partition  int32
	ErrorCode  *kerr.Error
	BaseOffset int64
}

type ProduceResponseTopic struct {
	Topic      string
	Partitions []ProduceResponsePartition
}

type ProduceResponse struct {
	Topics []ProduceResponseTopic
}

func (*ProduceResponse) Key() Key { return KeyProduce }

type OffsetRequestPartition struct {
	Partition int32
	Timestamp int64
}

type OffsetRequestTopic struct {
	Topic      string
	Partitions []OffsetRequestPartition
}

type OffsetRequest struct {
	ReplicaID int32
	Topics    []OffsetRequestTopic
}

func (*OffsetRequest) Key() Key { return KeyOffset }

type OffsetResponsePartition struct {
	Partition int32
	ErrorCode *kerr.Error
	Offset    int64
}

type OffsetResponseTopic struct {
	Topic      string
	Partitions []OffsetResponsePartition
}

type OffsetResponse struct {
	Topics []OffsetResponseTopic
}

func (*OffsetResponse) Key() Key { return KeyOffset }
