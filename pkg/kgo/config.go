package kgo

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// cfg holds every configuration option a Handle is built from (spec §6).
// It is unexported: callers build it up through Opt values passed to NewHandle,
// mirroring the teacher lineage's own cfg/Opt convention.
type cfg struct {
	bootstrapServers []string

	bootstrapConnectRetryPolicy RetryPolicy
	requestRetryPolicy          RetryPolicy

	clientID string
	connID   string

	serverVersion   int16
	autoApiVersions bool

	dialer Dialer
	logger Logger
}

// MinAutoApiVersionsBroker is the auto-api-capable baseline (spec §4.G,
// §6 autoApiVersions): ApiVersions negotiation is only attempted against a
// configured server version at or above this, and is silently skipped
// below it rather than failed.
const MinAutoApiVersionsBroker int16 = 0

// Opt is a configuration option for NewHandle (spec §6).
type Opt interface {
	apply(*cfg)
}

type optFunc func(*cfg)

func (f optFunc) apply(c *cfg) { f(c) }

// WithBootstrapServers sets the ordered list of bootstrap server URIs
// (spec §6 bootstrapServers). Required: NewHandle returns an error without it.
func WithBootstrapServers(servers ...string) Opt {
	return optFunc(func(c *cfg) { c.bootstrapServers = servers })
}

// WithBootstrapConnectRetryPolicy overrides the default bootstrap retry
// policy (spec §6).
func WithBootstrapConnectRetryPolicy(p RetryPolicy) Opt {
	return optFunc(func(c *cfg) { c.bootstrapConnectRetryPolicy = p })
}

// WithRequestRetryPolicy overrides the default per-request retry policy
// (spec §6).
func WithRequestRetryPolicy(p RetryPolicy) Opt {
	return optFunc(func(c *cfg) { c.requestRetryPolicy = p })
}

// WithClientID sets the client identifier handed to every Dial call
// (spec §6).
func WithClientID(id string) Opt {
	return optFunc(func(c *cfg) { c.clientID = id })
}

// WithConnID overrides the connection identifier normally generated from
// a random UUID (spec §6 connId).
func WithConnID(id string) Opt {
	return optFunc(func(c *cfg) { c.connID = id })
}

// WithAutoApiVersions enables the connect-time ApiVersions negotiation
// (spec §6 autoApiVersions), gated against serverVersion at
// MinAutoApiVersionsBroker.
func WithAutoApiVersions() Opt {
	return optFunc(func(c *cfg) { c.autoApiVersions = true })
}

// WithServerVersion records the configured server version used to gate
// autoApiVersions (spec §4.G: "if the configured server version is >= the
// auto-api-capable baseline"). Defaults to MinAutoApiVersionsBroker, i.e.
// negotiation proceeds unless explicitly configured below the baseline.
func WithServerVersion(v int16) Opt {
	return optFunc(func(c *cfg) { c.serverVersion = v })
}

// WithDialer overrides the Dialer collaborator (spec §6 Dns/Channel.connect
// seam). Tests substitute an in-memory fake here.
func WithDialer(d Dialer) Opt {
	return optFunc(func(c *cfg) { c.dialer = d })
}

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Opt {
	return optFunc(func(c *cfg) { c.logger = l })
}

func defaultCfg() cfg {
	return cfg{
		bootstrapConnectRetryPolicy: defaultBootstrapRetryPolicy(),
		requestRetryPolicy:          defaultRequestRetryPolicy(),
		clientID:                    "kgocore",
		connID:                      uuid.NewString(),
		serverVersion:               MinAutoApiVersionsBroker,
		logger:                      nopLogger{},
	}
}

func (c *cfg) validate() error {
	if len(c.bootstrapServers) == 0 {
		return errors.New("kgo: at least one bootstrap server is required")
	}
	if _, err := ParseBrokerURIs(c.bootstrapServers); err != nil {
		return errors.Wrap(err, "kgo: invalid bootstrap server")
	}
	if c.dialer == nil {
		return errors.New("kgo: a Dialer is required")
	}
	if c.bootstrapConnectRetryPolicy == nil {
		return errors.New("kgo: a bootstrap connect retry policy is required")
	}
	if c.requestRetryPolicy == nil {
		return errors.New("kgo: a request retry policy is required")
	}
	return nil
}
