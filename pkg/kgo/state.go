package kgo

// TopicPartition identifies an ordered log (spec GLOSSARY).
type TopicPartition struct {
	Topic     string
	Partition int32
}

// MetadataEntry is one (topic, partition, leader) triple as reported by a
// MetadataResponse (spec §4.A updateMetadata).
type MetadataEntry struct {
	Topic        string
	Partition    int32
	LeaderNodeID int32 // < 0 means leaderless
}

// ClusterState is an immutable snapshot of everything the core knows about
// the cluster (spec §3). Every mutator returns a new *ClusterState with
// Version bumped; the receiver is never modified. Readers take a snapshot
// via StateCell.Peek and operate on it purely.
type ClusterState struct {
	Version int64

	BootstrapBroker *Broker

	BrokersByNodeID         map[int32]Broker
	BrokersByTopicPartition map[TopicPartition]Broker
	BrokersByGroup          map[string]Broker

	ChansByNodeID   map[int32]Channel
	ChansByEndPoint map[EndPoint]Channel
}

// ZeroState returns the empty state a handle is constructed with
// (spec §3 Lifecycle).
func ZeroState() *ClusterState {
	return &ClusterState{
		BrokersByNodeID:         map[int32]Broker{},
		BrokersByTopicPartition: map[TopicPartition]Broker{},
		BrokersByGroup:          map[string]Broker{},
		ChansByNodeID:           map[int32]Channel{},
		ChansByEndPoint:         map[EndPoint]Channel{},
	}
}

// clone makes a shallow, independent copy of every map so the receiver
// remains untouched by subsequent writes to the copy (copy-on-write,
// matching the teacher's own cloneTopics/mergeTopicPartitions pattern in
// pkg/kgo/metadata.go).
func (s *ClusterState) clone() *ClusterState {
	n := &ClusterState{
		Version:                 s.Version,
		BootstrapBroker:         s.BootstrapBroker,
		BrokersByNodeID:         make(map[int32]Broker, len(s.BrokersByNodeID)),
		BrokersByTopicPartition: make(map[TopicPartition]Broker, len(s.BrokersByTopicPartition)),
		BrokersByGroup:          make(map[string]Broker, len(s.BrokersByGroup)),
		ChansByNodeID:           make(map[int32]Channel, len(s.ChansByNodeID)),
		ChansByEndPoint:         make(map[EndPoint]Channel, len(s.ChansByEndPoint)),
	}
	for k, v := range s.BrokersByNodeID {
		n.BrokersByNodeID[k] = v
	}
	for k, v := range s.BrokersByTopicPartition {
		n.BrokersByTopicPartition[k] = v
	}
	for k, v := range s.BrokersByGroup {
		n.BrokersByGroup[k] = v
	}
	for k, v := range s.ChansByNodeID {
		n.ChansByNodeID[k] = v
	}
	for k, v := range s.ChansByEndPoint {
		n.ChansByEndPoint[k] = v
	}
	return n
}

// updateMetadata rebuilds brokersByNodeId from brokers and applies each
// (topic, partition, leader) triple (spec §4.A, invariant 5).
func (s *ClusterState) updateMetadata(brokers []Broker, entries []MetadataEntry) *ClusterState {
	n := s.clone()
	n.Version++

	n.BrokersByNodeID = make(map[int32]Broker, len(brokers))
	for _, b := range brokers {
		n.BrokersByNodeID[b.NodeID] = b
	}

	for _, e := range entries {
		tp := TopicPartition{Topic: e.Topic, Partition: e.Partition}
		if e.LeaderNodeID < 0 {
			delete(n.BrokersByTopicPartition, tp)
			continue
		}
		if leader, ok := n.BrokersByNodeID[e.LeaderNodeID]; ok {
			n.BrokersByTopicPartition[tp] = leader
		}
		// Leader id does not resolve to a known broker: we cannot
		// route there yet, so we leave any prior mapping untouched
		// rather than guess (see DESIGN.md Open Question decision).
	}

	// Invariant 2: drop anything now referencing a broker absent from
	// the rebuilt brokersByNodeId, unless it is a bootstrap sentinel.
	for tp, b := range n.BrokersByTopicPartition {
		if b.IsBootstrapSentinel() {
			continue
		}
		if _, ok := n.BrokersByNodeID[b.NodeID]; !ok {
			delete(n.BrokersByTopicPartition, tp)
		}
	}
	for g, b := range n.BrokersByGroup {
		if b.IsBootstrapSentinel() {
			continue
		}
		if _, ok := n.BrokersByNodeID[b.NodeID]; !ok {
			delete(n.BrokersByGroup, g)
		}
	}

	return n
}

// updateGroupCoordinator sets the coordinator for groupID (spec §4.A).
func (s *ClusterState) updateGroupCoordinator(broker Broker, groupID string) *ClusterState {
	n := s.clone()
	n.Version++
	n.BrokersByGroup[groupID] = broker
	return n
}

// updateBootstrapBroker records the broker that supplied initial metadata
// (spec §4.A).
func (s *ClusterState) updateBootstrapBroker(broker Broker) *ClusterState {
	n := s.clone()
	n.Version++
	n.BootstrapBroker = &broker
	return n
}

// addChannel installs ch for broker, keyed by both nodeId and endpoint
// (spec §4.A, invariant 1).
func (s *ClusterState) addChannel(broker Broker, ch Channel) *ClusterState {
	n := s.clone()
	n.Version++
	n.ChansByNodeID[broker.NodeID] = ch
	n.ChansByEndPoint[ch.EndPoint()] = ch
	return n
}

// removeBroker drops broker and everything that pointed at it
// (spec §4.A invariant 4). The channel, if present, is closed
// asynchronously so the writer never blocks on network teardown.
func (s *ClusterState) removeBroker(broker Broker) *ClusterState {
	n := s.clone()
	n.Version++

	if ch, ok := n.ChansByNodeID[broker.NodeID]; ok {
		delete(n.ChansByEndPoint, ch.EndPoint())
		delete(n.ChansByNodeID, broker.NodeID)
		go ch.Close()
	}
	delete(n.BrokersByNodeID, broker.NodeID)

	for tp, b := range n.BrokersByTopicPartition {
		if b.NodeID == broker.NodeID {
			delete(n.BrokersByTopicPartition, tp)
		}
	}
	for g, b := range n.BrokersByGroup {
		if b.NodeID == broker.NodeID {
			delete(n.BrokersByGroup, g)
		}
	}
	if n.BootstrapBroker != nil && *n.BootstrapBroker == broker {
		n.BootstrapBroker = nil
	}

	return n
}

// topicPartitions is a pure projection of known topics to their known
// partitions (spec §4.A).
func (s *ClusterState) topicPartitions() map[string][]int32 {
	out := map[string][]int32{}
	for tp := range s.BrokersByTopicPartition {
		out[tp.Topic] = append(out[tp.Topic], tp.Partition)
	}
	return out
}

// containsTopicMetadata reports whether every topic in topics has at least
// one known partition (spec §4.A).
func (s *ClusterState) containsTopicMetadata(topics []string) bool {
	known := s.topicPartitions()
	for _, t := range topics {
		if len(known[t]) == 0 {
			return false
		}
	}
	return true
}

// channelForBroker returns the cached channel for broker, if any.
func (s *ClusterState) channelForBroker(broker Broker) (Channel, bool) {
	ch, ok := s.ChansByNodeID[broker.NodeID]
	return ch, ok
}
