package kgo

import "testing"

func TestUpdateMetadataBumpsVersion(t *testing.T) {
	s := ZeroState()
	n := s.updateMetadata(nil, nil)
	if n.Version != s.Version+1 {
		t.Fatalf("Version = %d, want %d", n.Version, s.Version+1)
	}
	if s.Version != 0 {
		t.Fatalf("receiver mutated: Version = %d", s.Version)
	}
}

func TestUpdateMetadataDropsPartitionsForLeaderlessEntries(t *testing.T) {
	s := ZeroState()
	s = s.updateMetadata([]Broker{{NodeID: 1, Host: "a", Port: 9092}}, []MetadataEntry{
		{Topic: "t", Partition: 0, LeaderNodeID: 1},
	})
	if _, ok := s.BrokersByTopicPartition[TopicPartition{Topic: "t", Partition: 0}]; !ok {
		t.Fatal("expected partition to be routed after first update")
	}

	s = s.updateMetadata([]Broker{{NodeID: 1, Host: "a", Port: 9092}}, []MetadataEntry{
		{Topic: "t", Partition: 0, LeaderNodeID: -1},
	})
	if _, ok := s.BrokersByTopicPartition[TopicPartition{Topic: "t", Partition: 0}]; ok {
		t.Fatal("expected leaderless partition to be removed from routing")
	}
}

func TestUpdateMetadataLeavesUnresolvedLeaderMappingUntouched(t *testing.T) {
	s := ZeroState()
	s = s.updateMetadata([]Broker{{NodeID: 1, Host: "a", Port: 9092}}, []MetadataEntry{
		{Topic: "t", Partition: 0, LeaderNodeID: 1},
	})
	prior := s.BrokersByTopicPartition[TopicPartition{Topic: "t", Partition: 0}]

	// A later refresh claims partition 0's leader is node 2, but node 2
	// is not in the accompanying broker list: the prior mapping to node
	// 1 must survive untouched (Open Question decision, see DESIGN.md).
	s2 := s.updateMetadata([]Broker{{NodeID: 1, Host: "a", Port: 9092}}, []MetadataEntry{
		{Topic: "t", Partition: 0, LeaderNodeID: 2},
	})
	got := s2.BrokersByTopicPartition[TopicPartition{Topic: "t", Partition: 0}]
	if got != prior {
		t.Fatalf("got %+v, want untouched prior mapping %+v", got, prior)
	}
}

func TestRemoveBrokerDropsDependentMappings(t *testing.T) {
	s := ZeroState()
	s = s.updateMetadata([]Broker{{NodeID: 1, Host: "a", Port: 9092}}, []MetadataEntry{
		{Topic: "t", Partition: 0, LeaderNodeID: 1},
	})
	s = s.updateGroupCoordinator(Broker{NodeID: 1, Host: "a", Port: 9092}, "g")

	s = s.removeBroker(Broker{NodeID: 1, Host: "a", Port: 9092})

	if _, ok := s.BrokersByNodeID[1]; ok {
		t.Fatal("broker should be removed")
	}
	if _, ok := s.BrokersByTopicPartition[TopicPartition{Topic: "t", Partition: 0}]; ok {
		t.Fatal("topic-partition mapping should be dropped with its broker")
	}
	if _, ok := s.BrokersByGroup["g"]; ok {
		t.Fatal("group coordinator mapping should be dropped with its broker")
	}
}

func TestContainsTopicMetadata(t *testing.T) {
	s := ZeroState()
	s = s.updateMetadata([]Broker{{NodeID: 1}}, []MetadataEntry{{Topic: "t", Partition: 0, LeaderNodeID: 1}})
	if !s.containsTopicMetadata([]string{"t"}) {
		t.Fatal("expected t to be covered")
	}
	if s.containsTopicMetadata([]string{"t", "other"}) {
		t.Fatal("expected other to be uncovered")
	}
}
