package kgo

import (
	"context"
	"fmt"

	"github.com/twmb/kgocore/pkg/kmsg"
)

// bootstrapNodeID is the sentinel nodeId for a Broker that exists only to
// hand out an initial bootstrap connection (spec §9: "Bootstrap broker
// sentinel uses nodeId = -2").
const bootstrapNodeID int32 = -2

// Broker identifies a cluster node (spec §3). Value equality is by all
// three fields, which is automatic for this struct since it holds no
// pointers or slices.
type Broker struct {
	NodeID int32
	Host   string
	Port   uint16
}

func (b Broker) String() string { return fmt.Sprintf("%s:%d(%d)", b.Host, b.Port, b.NodeID) }

// IsBootstrapSentinel reports whether b is a bootstrap-only entry that need
// not appear in brokersByNodeId (spec §3 invariant 2).
func (b Broker) IsBootstrapSentinel() bool { return b.NodeID < 0 }

// EndPoint is a resolved IP + port (spec §3).
type EndPoint struct {
	IP   string
	Port uint16
}

func (e EndPoint) String() string { return fmt.Sprintf("%s:%d", e.IP, e.Port) }

// Channel is an opaque handle to a live bidirectional broker connection
// (spec §6). It is the abstract wire-channel collaborator; TCP framing,
// correlation, and serialization live on the other side of this seam.
type Channel interface {
	// Send issues req and waits for its matching response. A transient
	// transport failure should be returned wrapped in a *ChannelError
	// with Fatal=false; a decode/framing/OOM failure must be wrapped
	// with Fatal=true so the engine propagates it unconditionally.
	Send(ctx context.Context, req kmsg.Request) (kmsg.Response, error)

	// Close tears down the connection. It is safe to call more than
	// once.
	Close()

	// EndPoint returns the resolved endpoint this channel is connected
	// to. It never changes for the lifetime of the channel.
	EndPoint() EndPoint

	// EnsureOpen is consulted before a cached channel is reused; it
	// returns an error if the channel is known to be dead.
	EnsureOpen(ctx context.Context) error
}

// Dialer opens Channels to resolved endpoints. It is the seam through
// which DNS resolution (spec §6 Dns.IPv4.getAll) and the real TCP connect
// (spec §6 Channel.connect) are injected, so tests can substitute an
// in-memory fake without touching the routing core.
type Dialer interface {
	// Resolve resolves broker to one or more candidate endpoints,
	// accepting a pre-parsed IP without a DNS round-trip (spec §6).
	Resolve(ctx context.Context, broker Broker) ([]EndPoint, error)

	// Dial opens a Channel to ep, tagging the connection with connID
	// and clientID the way spec §6's Channel.connect contract requires.
	Dial(ctx context.Context, ep EndPoint, connID, clientID string) (Channel, error)
}
