package kgo

import (
	"context"
	"sync/atomic"

	"github.com/twmb/kgocore/pkg/kmsg"
)

// Handle is the public façade over the routing and recovery core
// (spec §3 component G / ConnectionHandle). It owns the StateCell, the
// Request Engine, and discovery, and is the only type application code
// is expected to hold a reference to.
type Handle struct {
	cfg cfg

	cell   *StateCell
	engine *engine
	disc   *discovery

	apiVersions atomic.Pointer[map[int16]int16] // apiKey -> negotiated max version

	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewHandle builds a Handle and performs the initial bootstrap (spec §3
// Lifecycle: construct -> bootstrap -> ready). It blocks until bootstrap
// either succeeds or exhausts its retry policy.
func NewHandle(ctx context.Context, opts ...Opt) (*Handle, error) {
	c := defaultCfg()
	for _, opt := range opts {
		opt.apply(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	hctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cfg:       c,
		cell:      NewStateCell(ZeroState()),
		ctx:       hctx,
		ctxCancel: cancel,
	}
	h.disc = &discovery{cfg: &h.cfg, dialer: c.dialer, logger: c.logger}
	h.engine = &engine{cfg: &h.cfg, cell: h.cell, dialer: c.dialer, disc: h.disc, logger: c.logger}
	h.disc.engine = h.engine

	if _, err := h.disc.bootstrap(hctx, h.cell); err != nil {
		cancel()
		return nil, err
	}

	if c.autoApiVersions {
		if err := h.negotiateApiVersions(hctx); err != nil {
			cancel()
			return nil, err
		}
	}

	return h, nil
}

// negotiateApiVersions issues an ApiVersions request to the bootstrap
// broker, gated at MinAutoApiVersionsBroker (spec §4.G, §6
// autoApiVersions), and replaces the cached api-version lookup with the
// negotiated one. A configured server version below the baseline simply
// has nothing to negotiate: the request is skipped, not failed.
func (h *Handle) negotiateApiVersions(ctx context.Context) error {
	if h.cfg.serverVersion < MinAutoApiVersionsBroker {
		return nil
	}
	state := h.cell.Peek()
	if state.BootstrapBroker == nil {
		return nil
	}
	resp, err := h.engine.Send(ctx, &kmsg.ApiVersionsRequest{})
	if err != nil {
		return err
	}
	avr := resp.(*kmsg.ApiVersionsResponse)
	versions := make(map[int16]int16, len(avr.ApiKeys))
	for _, v := range avr.ApiKeys {
		versions[v.Key] = v.MaxVersion
	}
	h.apiVersions.Store(&versions)
	return nil
}

// ApiVersion returns the negotiated version for apiKey, and whether
// negotiation has happened and named that key at all (spec §4.G
// "apiVersion(apiKey) -> version"). Always reports ok == false until
// autoApiVersions has run, and for any apiKey the broker didn't list.
func (h *Handle) ApiVersion(apiKey int16) (version int16, ok bool) {
	versions := h.apiVersions.Load()
	if versions == nil {
		return 0, false
	}
	v, ok := (*versions)[apiKey]
	return v, ok
}

// Send routes req, sends it, and recovers from any retriable fault before
// returning (spec §4.F). The context governs cancellation of the call as a
// whole, including any recovery it triggers.
func (h *Handle) Send(ctx context.Context, req kmsg.Request) (kmsg.Response, error) {
	select {
	case <-h.ctx.Done():
		return nil, h.ctx.Err()
	default:
	}
	return h.engine.Send(ctx, req)
}

// GetMetadata forces a metadata refresh for topics and returns the
// resulting snapshot's view, without routing any other request
// (spec §4.E op 2, supplemental observability surface).
func (h *Handle) GetMetadata(ctx context.Context, topics []string) (*ClusterState, error) {
	return h.disc.fetchMetadata(ctx, h.cell, topics, h.cell.Peek().Version)
}

// GetGroupCoordinator forces a coordinator lookup for groupID
// (spec §4.E op 3).
func (h *Handle) GetGroupCoordinator(ctx context.Context, groupID string) (*ClusterState, error) {
	return h.disc.fetchGroupCoordinator(ctx, h.cell, groupID)
}

// DiscoveredBrokers returns every broker the core currently knows about,
// in no particular order (supplemental observability surface, SPEC_FULL.md).
func (h *Handle) DiscoveredBrokers() []Broker {
	state := h.cell.Peek()
	out := make([]Broker, 0, len(state.BrokersByNodeID))
	for _, b := range state.BrokersByNodeID {
		out = append(out, b)
	}
	return out
}

// SeedBrokers returns the configured bootstrap server list, unparsed
// (supplemental observability surface, SPEC_FULL.md).
func (h *Handle) SeedBrokers() []string {
	out := make([]string, len(h.cfg.bootstrapServers))
	copy(out, h.cfg.bootstrapServers)
	return out
}

// Done returns a channel closed once the Handle is closed, for callers
// that want to select on it alongside their own work.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Close tears down every open channel and stops accepting new sends.
// It is safe to call more than once.
func (h *Handle) Close() {
	select {
	case <-h.ctx.Done():
		return
	default:
	}
	h.ctxCancel()

	state := h.cell.Peek()
	for _, ch := range state.ChansByNodeID {
		ch.Close()
	}
}
