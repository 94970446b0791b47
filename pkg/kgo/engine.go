package kgo

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/twmb/kgocore/pkg/kerr"
	"github.com/twmb/kgocore/pkg/kmsg"
)

// engine implements component F, the Request Engine: route, send, classify,
// recover, retry (spec §4.F).
type engine struct {
	cfg    *cfg
	cell   *StateCell
	dialer Dialer
	disc   *discovery
	logger Logger
}

// frame carries the critical/non-critical mode a send is running under
// (spec §4.E). When critical, every state read and every state mutation
// this call chain produces flows through local rather than the StateCell,
// because the caller already holds the cell's writer slot; committing is
// deferred to whichever non-critical frame started the chain.
type frame struct {
	critical bool
	local    *ClusterState
}

func (fr frame) view(cell *StateCell) *ClusterState {
	if fr.critical {
		return fr.local
	}
	return cell.Peek()
}

func (fr frame) withState(s *ClusterState) frame {
	if fr.critical {
		fr.local = s
	}
	return fr
}

// Send is the top-level, always non-critical entry point (spec §4.F).
func (e *engine) Send(ctx context.Context, req kmsg.Request) (kmsg.Response, error) {
	resp, _, err := e.sendRecoverFrame(ctx, req, e.cfg.requestRetryPolicy.newState(), frame{})
	return resp, err
}

// sendRecoverFrame is the route -> send -> classify -> recover -> retry
// loop (spec §4.F steps 1-2). Besides Send, discovery's
// fetchMetadataAgainst/fetchGroupCoordinatorAgainst call it with a
// critical frame to issue their own requests without re-entering the
// StateCell's writer queue.
func (e *engine) sendRecoverFrame(ctx context.Context, req kmsg.Request, rs RetryState, fr frame) (kmsg.Response, *ClusterState, error) {
	state := fr.view(e.cell)

	routes, rmErr := route(state, req)
	if rmErr != nil {
		nrs, ok := e.cfg.requestRetryPolicy.awaitNextState(ctx, rs)
		if !ok {
			return nil, state, &RetryExhaustedError{Attempts: rs.Attempt(), Route: rmErr.Route, Last: rmErr}
		}
		next, err := e.recover(ctx, rmErr.Route, state.Version, fr)
		if err != nil {
			return nil, state, err
		}
		fr = fr.withState(next)
		return e.sendRecoverFrame(ctx, req, nrs, fr)
	}

	if len(routes) == 1 {
		return e.sendWithRecovery(ctx, routes[0], rs, fr)
	}
	return e.scatterGather(ctx, req, routes, fr)
}

// recover performs a single discovery refresh for rt (spec §4.E/§4.F step
// 2). Non-critical recoveries acquire the StateCell's writer slot for the
// duration of the refresh, which is also what gives concurrent callers the
// thundering-herd short-circuit (spec §4.D, §5).
func (e *engine) recover(ctx context.Context, rt RouteType, callerVersion int64, fr frame) (*ClusterState, error) {
	perform := func(cur *ClusterState) (*ClusterState, error) {
		switch rt.kind {
		case routeBootstrap:
			return e.disc.bootstrapAgainst(ctx, cur)
		case routeGroup:
			return e.disc.fetchGroupCoordinatorAgainst(ctx, cur, rt.groupID)
		case routeTopic:
			return e.disc.fetchMetadataAgainst(ctx, cur, rt.topics, callerVersion)
		case routeAllBrokers:
			return e.disc.fetchMetadataAgainst(ctx, cur, nil, callerVersion)
		default:
			return cur, errors.Errorf("unknown route type %v", rt)
		}
	}
	if fr.critical {
		return perform(fr.local)
	}
	return e.cell.UpdateAsyncState(perform)
}

// sendWithRecovery sends a single routed sub-request and applies spec
// §4.F step 4/5: channel acquisition failures and classified protocol
// errors both funnel through a RouteType-derived recovery, then retry.
func (e *engine) sendWithRecovery(ctx context.Context, rr routedRequest, rs RetryState, fr frame) (kmsg.Response, *ClusterState, error) {
	ch, state, err := e.acquireChannel(ctx, rr.broker, fr)
	if err != nil {
		return e.handleChannelFailure(ctx, rr, rs, fr, err)
	}

	resp, err := ch.Send(ctx, rr.req)
	if err != nil {
		var cerr *ChannelError
		if errors.As(err, &cerr) && cerr.Fatal {
			return nil, state, err // decode/framing/OOM: propagate unconditionally (spec §4.F step 5)
		}
		return e.handleChannelFailure(ctx, rr, rs, fr, err)
	}

	code, action := classify(rr.req, resp)
	switch action.Kind {
	case ActionNone, ActionPassThru:
		return resp, state, nil

	case ActionEscalate:
		return nil, state, newEscalationError(code, rr.req, resp, ch.EndPoint())

	case ActionRefreshMetadata:
		rt := topicRoute(action.Topics)
		if action.GroupID != "" {
			rt = groupRoute(action.GroupID)
		}
		nrs, ok := e.cfg.requestRetryPolicy.awaitNextState(ctx, rs)
		if !ok {
			return nil, state, &RetryExhaustedError{Attempts: rs.Attempt(), Route: rt, Last: codeErr(code)}
		}
		next, err := e.recover(ctx, rt, state.Version, fr)
		if err != nil {
			return nil, state, err
		}
		fr = fr.withState(next)
		// Leadership may have moved to a different broker entirely, so
		// recurse into the full route engine rather than resending to
		// the same broker (spec §4.F step 4).
		return e.sendRecoverFrame(ctx, rr.req, nrs, fr)

	case ActionWaitAndRetry:
		nrs, ok := e.cfg.requestRetryPolicy.awaitNextState(ctx, rs)
		if !ok {
			return nil, state, &RetryExhaustedError{Attempts: rs.Attempt(), Route: bootstrapRoute(), Last: codeErr(code)}
		}
		return e.sendWithRecovery(ctx, rr, nrs, fr)

	default:
		return resp, state, nil
	}
}

func codeErr(code *kerr.Error) error {
	if code == nil {
		return nil
	}
	return code
}

// acquireChannel resolves or opens a Channel for broker, preferring a
// cached channel already known live (spec §4.F step 4, §8 invariant 1).
func (e *engine) acquireChannel(ctx context.Context, broker Broker, fr frame) (Channel, *ClusterState, error) {
	state := fr.view(e.cell)
	if ch, ok := state.channelForBroker(broker); ok {
		if err := ch.EnsureOpen(ctx); err == nil {
			return ch, state, nil
		}
	}

	dial := func(cur *ClusterState) (*ClusterState, error) {
		eps, err := e.dialer.Resolve(ctx, broker)
		if err != nil {
			return cur, err
		}
		if len(eps) == 0 {
			return cur, errors.Errorf("no endpoints resolved for %s", broker)
		}
		for _, ep := range eps {
			if ch, ok := cur.ChansByEndPoint[ep]; ok {
				return cur.addChannel(broker, ch), nil
			}
		}
		var lastErr error
		for _, ep := range eps {
			ch, err := e.dialer.Dial(ctx, ep, e.cfg.connID, e.cfg.clientID)
			if err != nil {
				lastErr = err
				continue
			}
			return cur.addChannel(broker, ch), nil
		}
		return cur, lastErr
	}

	var next *ClusterState
	var err error
	if fr.critical {
		next, err = dial(fr.local)
	} else {
		next, err = e.cell.UpdateAsyncState(dial)
	}
	if err != nil {
		return nil, state, NewTransportError(err)
	}
	ch, _ := next.channelForBroker(broker)
	return ch, next, nil
}

// handleChannelFailure evicts the failed broker, refreshes whatever
// discovery the failing request's kind implies, and retries
// (spec §4.F step 4).
func (e *engine) handleChannelFailure(ctx context.Context, rr routedRequest, rs RetryState, fr frame, cause error) (kmsg.Response, *ClusterState, error) {
	rt := deriveRouteTypeForFailure(rr.req)

	nrs, ok := e.cfg.requestRetryPolicy.awaitNextState(ctx, rs)
	if !ok {
		return nil, fr.view(e.cell), &RetryExhaustedError{Attempts: rs.Attempt(), Route: rt, Last: cause}
	}

	evict := func(cur *ClusterState) *ClusterState { return cur.removeBroker(rr.broker) }
	var evicted *ClusterState
	if fr.critical {
		evicted = evict(fr.local)
	} else {
		evicted = e.cell.Update(evict)
	}
	fr = fr.withState(evicted)

	next, err := e.recover(ctx, rt, evicted.Version, fr)
	if err != nil {
		return nil, evicted, err
	}
	fr = fr.withState(next)

	if rt.kind == routeAllBrokers {
		// An AllBrokers leg's sibling legs are already in flight against
		// their own brokers (scatterGather fanned out once, up front);
		// re-running route() here would fan this single leg back out to
		// every broker again and double-count their responses on merge.
		// Retrying this leg alone against the same broker, now with a
		// fresh channel, is what the refreshed discovery state actually
		// changed for it.
		return e.sendWithRecovery(ctx, rr, nrs, fr)
	}
	return e.sendRecoverFrame(ctx, rr.req, nrs, fr)
}

// deriveRouteTypeForFailure classifies a request by the discovery it
// implies when its channel has just failed (spec §4.F step 4).
func deriveRouteTypeForFailure(req kmsg.Request) RouteType {
	switch t := req.(type) {
	case *kmsg.MetadataRequest, *kmsg.GroupCoordinatorRequest, *kmsg.ApiVersionsRequest:
		return bootstrapRoute()
	case *kmsg.DescribeGroupsRequest, *kmsg.ListGroupsRequest:
		return allBrokersRoute()
	case kmsg.GroupRequest:
		return groupRoute(t.GroupID())
	case *kmsg.FetchRequest:
		return topicRoute(fetchTopics(t))
	case *kmsg.ProduceRequest:
		return topicRoute(produceTopics(t))
	case *kmsg.OffsetRequest:
		return topicRoute(offsetTopics(t))
	default:
		return bootstrapRoute()
	}
}

func fetchTopics(r *kmsg.FetchRequest) []string {
	out := make([]string, 0, len(r.Topics))
	for _, t := range r.Topics {
		out = append(out, t.Topic)
	}
	return out
}

func produceTopics(r *kmsg.ProduceRequest) []string {
	out := make([]string, 0, len(r.Topics))
	for _, t := range r.Topics {
		out = append(out, t.Topic)
	}
	return out
}

func offsetTopics(r *kmsg.OffsetRequest) []string {
	out := make([]string, 0, len(r.Topics))
	for _, t := range r.Topics {
		out = append(out, t.Topic)
	}
	return out
}

// scatterGather fans a multi-broker route out concurrently and merges the
// per-broker responses back into one logical response (spec §4.F step 3).
// Scatter/gather only ever runs non-critically: every request kind routed
// to more than one broker (Topic splits, AllBrokers) is a top-level client
// call, never a discovery-internal one.
func (e *engine) scatterGather(ctx context.Context, req kmsg.Request, routes []routedRequest, fr frame) (kmsg.Response, *ClusterState, error) {
	type result struct {
		resp kmsg.Response
		err  error
	}
	results := make([]result, len(routes))

	var wg sync.WaitGroup
	for i, rr := range routes {
		wg.Add(1)
		go func(i int, rr routedRequest) {
			defer wg.Done()
			resp, _, err := e.sendWithRecovery(ctx, rr, e.cfg.requestRetryPolicy.newState(), fr)
			results[i] = result{resp: resp, err: err}
		}(i, rr)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, fr.view(e.cell), r.err
		}
	}

	resps := make([]kmsg.Response, len(results))
	for i, r := range results {
		resps[i] = r.resp
	}

	merged, err := mergeResponses(req, resps)
	return merged, fr.view(e.cell), err
}

// mergeResponses concatenates per-broker responses in route iteration
// order, which is what makes scatter/gather deterministic (spec §5, §4.F
// step 3: "gather rules apply to Fetch, Offset, and ListGroups").
func mergeResponses(req kmsg.Request, resps []kmsg.Response) (kmsg.Response, error) {
	switch req.(type) {
	case *kmsg.FetchRequest:
		out := &kmsg.FetchResponse{}
		for _, r := range resps {
			fr := r.(*kmsg.FetchResponse)
			if fr.ThrottleTime > out.ThrottleTime {
				out.ThrottleTime = fr.ThrottleTime
			}
			out.Topics = append(out.Topics, fr.Topics...)
		}
		return out, nil

	case *kmsg.OffsetRequest:
		out := &kmsg.OffsetResponse{}
		for _, r := range resps {
			out.Topics = append(out.Topics, r.(*kmsg.OffsetResponse).Topics...)
		}
		return out, nil

	case *kmsg.ListGroupsRequest:
		out := &kmsg.ListGroupsResponse{}
		for _, r := range resps {
			lr := r.(*kmsg.ListGroupsResponse)
			if lr.ErrorCode != nil && out.ErrorCode == nil {
				out.ErrorCode = lr.ErrorCode
			}
			out.Groups = append(out.Groups, lr.Groups...)
		}
		return out, nil

	case *kmsg.DescribeGroupsRequest:
		out := &kmsg.DescribeGroupsResponse{}
		for _, r := range resps {
			out.Groups = append(out.Groups, r.(*kmsg.DescribeGroupsResponse).Groups...)
		}
		return out, nil

	default:
		return nil, errors.Errorf("unsupported fan-out for request kind %T", req)
	}
}
