package kgo

import (
	"testing"

	"github.com/twmb/kgocore/pkg/kmsg"
)

func stateWithTopic(t *testing.T) *ClusterState {
	t.Helper()
	s := ZeroState()
	s = s.updateMetadata(
		[]Broker{{NodeID: 1, Host: "b1", Port: 9092}, {NodeID: 2, Host: "b2", Port: 9092}},
		[]MetadataEntry{
			{Topic: "t", Partition: 0, LeaderNodeID: 1},
			{Topic: "t", Partition: 1, LeaderNodeID: 2},
		},
	)
	return s
}

func TestRouteNeverReturnsEmptySuccess(t *testing.T) {
	s := stateWithTopic(t)
	req := &kmsg.FetchRequest{Topics: []kmsg.FetchRequestTopic{{Topic: "t", Partitions: []kmsg.FetchRequestPartition{{Partition: 0}}}}}
	routes, rmErr := route(s, req)
	if rmErr != nil {
		t.Fatalf("unexpected route miss: %v", rmErr)
	}
	if len(routes) == 0 {
		t.Fatal("route returned a nil error but zero routes")
	}
}

func TestRouteFetchSplitsByLeader(t *testing.T) {
	s := stateWithTopic(t)
	req := &kmsg.FetchRequest{Topics: []kmsg.FetchRequestTopic{{Topic: "t", Partitions: []kmsg.FetchRequestPartition{
		{Partition: 0}, {Partition: 1},
	}}}}
	routes, rmErr := route(s, req)
	if rmErr != nil {
		t.Fatalf("unexpected route miss: %v", rmErr)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2 (one per leader)", len(routes))
	}
	seen := map[int32]bool{}
	for _, r := range routes {
		seen[r.broker.NodeID] = true
		fr := r.req.(*kmsg.FetchRequest)
		if len(fr.Topics) != 1 || len(fr.Topics[0].Partitions) != 1 {
			t.Fatalf("sub-request not split correctly: %+v", fr)
		}
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected routes to brokers 1 and 2, got %v", seen)
	}
}

func TestRouteFetchMissingTopicFails(t *testing.T) {
	s := ZeroState()
	req := &kmsg.FetchRequest{Topics: []kmsg.FetchRequestTopic{{Topic: "missing", Partitions: []kmsg.FetchRequestPartition{{Partition: 0}}}}}
	_, rmErr := route(s, req)
	if rmErr == nil {
		t.Fatal("expected route miss for unknown topic")
	}
}

func TestRouteBootstrapRequestsNeedBootstrapBroker(t *testing.T) {
	s := ZeroState()
	_, rmErr := route(s, &kmsg.MetadataRequest{})
	if rmErr == nil {
		t.Fatal("expected route miss with no bootstrap broker set")
	}

	s = s.updateBootstrapBroker(Broker{NodeID: bootstrapNodeID, Host: "seed", Port: 9092})
	routes, rmErr := route(s, &kmsg.MetadataRequest{})
	if rmErr != nil {
		t.Fatalf("unexpected route miss: %v", rmErr)
	}
	if len(routes) != 1 || routes[0].broker.NodeID != bootstrapNodeID {
		t.Fatalf("got %+v, want single route to the bootstrap broker", routes)
	}
}

func TestRouteGroupRequestNeedsCoordinator(t *testing.T) {
	s := ZeroState()
	_, rmErr := route(s, &kmsg.HeartbeatRequest{Group: "g"})
	if rmErr == nil {
		t.Fatal("expected route miss with no known coordinator")
	}

	s = s.updateGroupCoordinator(Broker{NodeID: 1, Host: "b1", Port: 9092}, "g")
	routes, rmErr := route(s, &kmsg.HeartbeatRequest{Group: "g"})
	if rmErr != nil {
		t.Fatalf("unexpected route miss: %v", rmErr)
	}
	if len(routes) != 1 || routes[0].broker.NodeID != 1 {
		t.Fatalf("got %+v, want single route to node 1", routes)
	}
}

func TestRouteAllBrokersFansToEveryKnownBroker(t *testing.T) {
	s := stateWithTopic(t)
	routes, rmErr := route(s, &kmsg.ListGroupsRequest{})
	if rmErr != nil {
		t.Fatalf("unexpected route miss: %v", rmErr)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2 (one per broker)", len(routes))
	}
}

func TestRouteAllBrokersFailsWithNoBrokers(t *testing.T) {
	_, rmErr := route(ZeroState(), &kmsg.ListGroupsRequest{})
	if rmErr == nil {
		t.Fatal("expected route miss with no known brokers")
	}
}
