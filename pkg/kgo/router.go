package kgo

import (
	"fmt"
	"sort"

	"github.com/twmb/kgocore/pkg/kmsg"
)

// RouteType tags the cause of a routing miss (spec §3).
type RouteType struct {
	kind routeKind

	topics  []string // Topic
	groupID string    // Group
}

type routeKind int8

const (
	routeBootstrap routeKind = iota
	routeTopic
	routeGroup
	routeAllBrokers
)

func bootstrapRoute() RouteType           { return RouteType{kind: routeBootstrap} }
func topicRoute(topics []string) RouteType { return RouteType{kind: routeTopic, topics: topics} }
func groupRoute(groupID string) RouteType { return RouteType{kind: routeGroup, groupID: groupID} }
func allBrokersRoute() RouteType           { return RouteType{kind: routeAllBrokers} }

func (r RouteType) String() string {
	switch r.kind {
	case routeBootstrap:
		return "Bootstrap"
	case routeTopic:
		return fmt.Sprintf("Topic(%v)", r.topics)
	case routeGroup:
		return fmt.Sprintf("Group(%s)", r.groupID)
	case routeAllBrokers:
		return "AllBrokers"
	default:
		return "Unknown"
	}
}

// routedRequest pairs a sub-request with the broker it must be sent to
// (spec §4.B).
type routedRequest struct {
	broker Broker
	req    kmsg.Request
}

// route is a pure function: (state, request) -> routes | Failure(RouteType)
// (spec §4.B). It never returns a successful empty route list
// (spec §8 invariant 4).
func route(state *ClusterState, req kmsg.Request) ([]routedRequest, *RouteMissingError) {
	switch t := req.(type) {

	case *kmsg.MetadataRequest, *kmsg.GroupCoordinatorRequest, *kmsg.ApiVersionsRequest:
		if state.BootstrapBroker == nil {
			return nil, &RouteMissingError{Route: bootstrapRoute()}
		}
		return []routedRequest{{broker: *state.BootstrapBroker, req: req}}, nil

	case *kmsg.DescribeGroupsRequest, *kmsg.ListGroupsRequest:
		return routeAllBrokersFn(state, req)

	case kmsg.GroupRequest:
		broker, ok := state.BrokersByGroup[t.GroupID()]
		if !ok {
			return nil, &RouteMissingError{Route: groupRoute(t.GroupID())}
		}
		return []routedRequest{{broker: broker, req: req}}, nil

	case *kmsg.FetchRequest:
		return routeFetch(state, t)
	case *kmsg.ProduceRequest:
		return routeProduce(state, t)
	case *kmsg.OffsetRequest:
		return routeOffset(state, t)

	default:
		return nil, &RouteMissingError{Route: bootstrapRoute()}
	}
}

func routeAllBrokersFn(state *ClusterState, req kmsg.Request) ([]routedRequest, *RouteMissingError) {
	if len(state.BrokersByNodeID) == 0 {
		return nil, &RouteMissingError{Route: allBrokersRoute()}
	}
	ids := make([]int32, 0, len(state.BrokersByNodeID))
	for id := range state.BrokersByNodeID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	routes := make([]routedRequest, 0, len(ids))
	for _, id := range ids {
		routes = append(routes, routedRequest{broker: state.BrokersByNodeID[id], req: req})
	}
	return routes, nil
}

// leaderFor resolves the broker for (topic, partition), or false if
// unrouteable (spec §4.B "tryFindTopicPartitionBroker").
func leaderFor(state *ClusterState, topic string, partition int32) (Broker, bool) {
	b, ok := state.BrokersByTopicPartition[TopicPartition{Topic: topic, Partition: partition}]
	return b, ok
}

func routeFetch(state *ClusterState, req *kmsg.FetchRequest) ([]routedRequest, *RouteMissingError) {
	byBroker := map[Broker]*kmsg.FetchRequest{}
	order := []Broker{}
	missing := map[string]bool{}
	var missingOrder []string

	for _, topic := range req.Topics {
		for _, part := range topic.Partitions {
			broker, ok := leaderFor(state, topic.Topic, part.Partition)
			if !ok {
				if !missing[topic.Topic] {
					missing[topic.Topic] = true
					missingOrder = append(missingOrder, topic.Topic)
				}
				continue
			}
			sub, exists := byBroker[broker]
			if !exists {
				sub = &kmsg.FetchRequest{
					ReplicaID:   req.ReplicaID,
					MaxWaitTime: req.MaxWaitTime,
					MinBytes:    req.MinBytes,
					MaxBytes:    req.MaxBytes,
				}
				byBroker[broker] = sub
				order = append(order, broker)
			}
			addFetchPartition(sub, topic.Topic, part)
		}
	}

	if len(missingOrder) > 0 {
		return nil, &RouteMissingError{Route: topicRoute(missingOrder)}
	}
	if len(order) == 0 {
		return nil, &RouteMissingError{Route: topicRoute(nil)}
	}

	routes := make([]routedRequest, 0, len(order))
	for _, b := range order {
		routes = append(routes, routedRequest{broker: b, req: byBroker[b]})
	}
	return routes, nil
}

func addFetchPartition(req *kmsg.FetchRequest, topic string, part kmsg.FetchRequestPartition) {
	for i := range req.Topics {
		if req.Topics[i].Topic == topic {
			req.Topics[i].Partitions = append(req.Topics[i].Partitions, part)
			return
		}
	}
	req.Topics = append(req.Topics, kmsg.FetchRequestTopic{Topic: topic, Partitions: []kmsg.FetchRequestPartition{part}})
}

func routeProduce(state *ClusterState, req *kmsg.ProduceRequest) ([]routedRequest, *RouteMissingError) {
	byBroker := map[Broker]*kmsg.ProduceRequest{}
	order := []Broker{}
	var missingOrder []string
	missing := map[string]bool{}

	for _, topic := range req.Topics {
		for _, part := range topic.Partitions {
			broker, ok := leaderFor(state, topic.Topic, part.Partition)
			if !ok {
				if !missing[topic.Topic] {
					missing[topic.Topic] = true
					missingOrder = append(missingOrder, topic.Topic)
				}
				continue
			}
			sub, exists := byBroker[broker]
			if !exists {
				sub = &kmsg.ProduceRequest{RequiredAcks: req.RequiredAcks, Timeout: req.Timeout}
				byBroker[broker] = sub
				order = append(order, broker)
			}
			addProducePartition(sub, topic.Topic, part)
		}
	}

	if len(missingOrder) > 0 {
		return nil, &RouteMissingError{Route: topicRoute(missingOrder)}
	}
	if len(order) == 0 {
		return nil, &RouteMissingError{Route: topicRoute(nil)}
	}

	routes := make([]routedRequest, 0, len(order))
	for _, b := range order {
		routes = append(routes, routedRequest{broker: b, req: byBroker[b]})
	}
	return routes, nil
}

func addProducePartition(req *kmsg.ProduceRequest, topic string, part kmsg.ProduceRequestPartition) {
	for i := range req.Topics {
		if req.Topics[i].Topic == topic {
			req.Topics[i].Partitions = append(req.Topics[i].Partitions, part)
			return
		}
	}
	req.Topics = append(req.Topics, kmsg.ProduceRequestTopic{Topic: topic, Partitions: []kmsg.ProduceRequestPartition{part}})
}

func routeOffset(state *ClusterState, req *kmsg.OffsetRequest) ([]routedRequest, *RouteMissingError) {
	byBroker := map[Broker]*kmsg.OffsetRequest{}
	order := []Broker{}
	var missingOrder []string
	missing := map[string]bool{}

	for _, topic := range req.Topics {
		for _, part := range topic.Partitions {
			broker, ok := leaderFor(state, topic.Topic, part.Partition)
			if !ok {
				if !missing[topic.Topic] {
					missing[topic.Topic] = true
					missingOrder = append(missingOrder, topic.Topic)
				}
				continue
			}
			sub, exists := byBroker[broker]
			if !exists {
				sub = &kmsg.OffsetRequest{ReplicaID: req.ReplicaID}
				byBroker[broker] = sub
				order = append(order, broker)
			}
			addOffsetPartition(sub, topic.Topic, part)
		}
	}

	if len(missingOrder) > 0 {
		return nil, &RouteMissingError{Route: topicRoute(missingOrder)}
	}
	if len(order) == 0 {
		return nil, &RouteMissingError{Route: topicRoute(nil)}
	}

	routes := make([]routedRequest, 0, len(order))
	for _, b := range order {
		routes = append(routes, routedRequest{broker: b, req: byBroker[b]})
	}
	return routes, nil
}

func addOffsetPartition(req *kmsg.OffsetRequest, topic string, part kmsg.OffsetRequestPartition) {
	for i := range req.Topics {
		if req.Topics[i].Topic == topic {
			req.Topics[i].Partitions = append(req.Topics[i].Partitions, part)
			return
		}
	}
	req.Topics = append(req.Topics, kmsg.OffsetRequestTopic{Topic: topic, Partitions: []kmsg.OffsetRequestPartition{part}})
}
