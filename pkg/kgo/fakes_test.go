package kgo

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/kgocore/pkg/kmsg"
)

// fakeChannel is an in-memory Channel test double. Every Send is recorded
// in sent and answered by the single handler the channel was dialed with.
type fakeChannel struct {
	mu      sync.Mutex
	ep      EndPoint
	dead    bool
	handler func(kmsg.Request) (kmsg.Response, error)
	sent    []kmsg.Request
}

func (c *fakeChannel) Send(ctx context.Context, req kmsg.Request) (kmsg.Response, error) {
	c.mu.Lock()
	c.sent = append(c.sent, req)
	h := c.handler
	c.mu.Unlock()
	return h(req)
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

func (c *fakeChannel) EndPoint() EndPoint { return c.ep }

func (c *fakeChannel) EnsureOpen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return fmt.Errorf("fakeChannel: dead")
	}
	return nil
}

// fakeDialer resolves every Broker to a deterministic fake endpoint
// (10.0.0.<NodeID+100>) and opens fakeChannels from a per-node factory,
// letting tests script each broker's behavior independently.
type fakeDialer struct {
	mu       sync.Mutex
	factory  map[int32]func(kmsg.Request) (kmsg.Response, error)
	dialErr  map[int32]error
	dialedAt map[int32]int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		factory:  map[int32]func(kmsg.Request) (kmsg.Response, error){},
		dialErr:  map[int32]error{},
		dialedAt: map[int32]int{},
	}
}

func (d *fakeDialer) Resolve(ctx context.Context, broker Broker) ([]EndPoint, error) {
	return []EndPoint{{IP: fmt.Sprintf("10.0.0.%d", broker.NodeID+100), Port: broker.Port}}, nil
}

func (d *fakeDialer) Dial(ctx context.Context, ep EndPoint, connID, clientID string) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, err := range d.dialErr {
		if fmt.Sprintf("10.0.0.%d", id+100) == ep.IP && err != nil {
			return nil, err
		}
	}
	for id, h := range d.factory {
		if fmt.Sprintf("10.0.0.%d", id+100) == ep.IP {
			d.dialedAt[id]++
			return &fakeChannel{ep: ep, handler: h}, nil
		}
	}
	return &fakeChannel{ep: ep, handler: func(kmsg.Request) (kmsg.Response, error) {
		return nil, fmt.Errorf("fakeDialer: no handler registered for endpoint %s", ep)
	}}, nil
}

func (d *fakeDialer) on(nodeID int32, h func(kmsg.Request) (kmsg.Response, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factory[nodeID] = h
}

func (d *fakeDialer) failDial(nodeID int32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr[nodeID] = err
}
