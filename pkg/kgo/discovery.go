package kgo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/twmb/kgocore/pkg/kmsg"
)

// discovery implements component E: bootstrap, metadata fetch, and
// group-coordinator fetch, each of which consumes the State Cell
// (spec §4.E).
type discovery struct {
	cfg    *cfg
	dialer Dialer
	engine *engine // used by fetchMetadata/fetchGroupCoordinator to recurse through the Request Engine
	logger Logger
}

// bootstrapAgainst tries every configured bootstrap server in order
// against cur, returning the first successfully-connected state. It never
// touches the StateCell itself; callers (critical or not) decide whether
// the result gets committed.
func (d *discovery) bootstrapAgainst(ctx context.Context, cur *ClusterState) (*ClusterState, error) {
	uris, err := ParseBrokerURIs(d.cfg.bootstrapServers)
	if err != nil {
		return cur, err
	}
	if len(uris) == 0 {
		return cur, errors.New("no bootstrap servers configured")
	}

	broker := Broker{NodeID: bootstrapNodeID}
	var lastErr error
	for _, uri := range uris {
		b := broker
		b.Host, b.Port = uri.Host, uri.Port

		eps, err := d.dialer.Resolve(ctx, b)
		if err != nil {
			lastErr = err
			continue
		}
		for _, ep := range eps {
			ch, err := d.dialer.Dial(ctx, ep, d.cfg.connID, d.cfg.clientID)
			if err != nil {
				lastErr = err
				continue
			}
			next := cur.addChannel(b, ch)
			next = next.updateBootstrapBroker(b)
			d.logger.Log(LogLevelInfo, "bootstrap succeeded", "broker", b)
			return next, nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no bootstrap servers reachable")
	}
	return cur, lastErr
}

// bootstrap is the top-level, retried bootstrap entry point
// (spec §4.E op 1). It is always called non-critically: bootstrap never
// recurses into itself.
func (d *discovery) bootstrap(ctx context.Context, cell *StateCell) (*ClusterState, error) {
	policy := d.cfg.bootstrapConnectRetryPolicy
	rs := policy.newState()
	var lastErr error
	for {
		next, err := cell.UpdateAsyncState(func(cur *ClusterState) (*ClusterState, error) {
			return d.bootstrapAgainst(ctx, cur)
		})
		if err == nil {
			return next, nil
		}
		lastErr = err
		var ok bool
		rs, ok = policy.awaitNextState(ctx, rs)
		if !ok {
			d.logger.Log(LogLevelError, "bootstrap exhausted", "attempts", rs.Attempt(), "err", lastErr)
			return nil, &BootstrapExhaustedError{Attempts: rs.Attempt(), Last: lastErr}
		}
	}
}

// fetchMetadataAgainst routes and sends a MetadataRequest through the
// Request Engine, operating against cur, and applies the result via
// updateMetadata (spec §4.E op 2). callerVersion implements the
// short-circuit rule (spec §4.D): if cur is already newer than the caller's
// observed version and already covers every requested topic, the refresh
// is skipped. A refresh of all topics (empty topics) is never skipped.
//
// The nested engine call this makes is always critical: by the time this
// runs, the caller already holds the StateCell's writer slot (either
// directly, via UpdateAsyncState, or transitively through an outer
// critical frame), so this call must operate on cur in place rather than
// risk re-acquiring that slot.
func (d *discovery) fetchMetadataAgainst(ctx context.Context, cur *ClusterState, topics []string, callerVersion int64) (*ClusterState, error) {
	if cur.Version > callerVersion && len(topics) > 0 && cur.containsTopicMetadata(topics) {
		return cur, nil // short-circuit: another updater already covered us
	}

	req := &kmsg.MetadataRequest{}
	for _, t := range topics {
		req.Topics = append(req.Topics, kmsg.MetadataRequestTopic{Topic: t})
	}

	resp, next, err := d.engine.sendRecoverFrame(ctx, req, d.cfg.requestRetryPolicy.newState(), frame{critical: true, local: cur})
	if err != nil {
		return cur, err
	}
	meta := resp.(*kmsg.MetadataResponse)

	brokers := make([]Broker, 0, len(meta.Brokers))
	for _, b := range meta.Brokers {
		brokers = append(brokers, Broker{NodeID: b.NodeID, Host: b.Host, Port: b.Port})
	}
	entries := make([]MetadataEntry, 0, len(meta.Topics))
	for _, t := range meta.Topics {
		for _, p := range t.Partitions {
			if p.Leader < 0 {
				d.logger.Log(LogLevelWarn, "leaderless partition", "topic", t.Topic, "partition", p.Partition)
			}
			entries = append(entries, MetadataEntry{Topic: t.Topic, Partition: p.Partition, LeaderNodeID: p.Leader})
		}
	}

	return next.updateMetadata(brokers, entries), nil
}

// fetchMetadata is the non-critical, top-level entry point for a metadata
// refresh, used by the engine's recover() dispatch.
func (d *discovery) fetchMetadata(ctx context.Context, cell *StateCell, topics []string, callerVersion int64) (*ClusterState, error) {
	return cell.UpdateAsyncState(func(cur *ClusterState) (*ClusterState, error) {
		return d.fetchMetadataAgainst(ctx, cur, topics, callerVersion)
	})
}

// fetchGroupCoordinatorAgainst routes and sends a GroupCoordinatorRequest
// through the Request Engine, operating against cur (spec §4.E op 3). The
// nested engine call is always critical, for the same reason given on
// fetchMetadataAgainst.
//
// Per spec §9 Open Questions, the short-circuit condition for
// group-coordinator refresh is permanently disabled upstream; this module
// preserves that and always performs the refresh when asked.
func (d *discovery) fetchGroupCoordinatorAgainst(ctx context.Context, cur *ClusterState, groupID string) (*ClusterState, error) {
	req := &kmsg.GroupCoordinatorRequest{Group: groupID}

	resp, next, err := d.engine.sendRecoverFrame(ctx, req, d.cfg.requestRetryPolicy.newState(), frame{critical: true, local: cur})
	if err != nil {
		return cur, err
	}
	gcr := resp.(*kmsg.GroupCoordinatorResponse)

	coordinator, ok := next.BrokersByNodeID[gcr.NodeID]
	if !ok {
		// The coordinator response named a node we have no metadata
		// for yet; record a Broker carrying only that node id (no host
		// or port). The next updateMetadata drops this mapping unless
		// its broker list includes the node.
		coordinator = Broker{NodeID: gcr.NodeID}
	}

	return next.updateGroupCoordinator(coordinator, groupID), nil
}

func (d *discovery) fetchGroupCoordinator(ctx context.Context, cell *StateCell, groupID string) (*ClusterState, error) {
	return cell.UpdateAsyncState(func(cur *ClusterState) (*ClusterState, error) {
		return d.fetchGroupCoordinatorAgainst(ctx, cur, groupID)
	})
}
