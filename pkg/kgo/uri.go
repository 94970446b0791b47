package kgo

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

const defaultBrokerPort = 9092

// brokerURIPattern matches ^(scheme://)?host(:port)?, scheme in {kafka,
// tcp} (spec §6). Host characters allow dots, dashes, and underscores,
// matching the boundary case "host-with.dots_and_dash".
var brokerURIPattern = regexp.MustCompile(`^(?:(kafka|tcp)://)?([A-Za-z0-9][A-Za-z0-9._-]*)(?::(\d+))?$`)

// BrokerURI is a parsed bootstrap server entry (spec §6 bootstrapServers).
type BrokerURI struct {
	Host string
	Port uint16
}

// String renders the canonical form, always scheme "kafka" (spec §6).
func (u BrokerURI) String() string {
	return "kafka://" + u.Host + ":" + strconv.Itoa(int(u.Port))
}

// ParseBrokerURI parses one bootstrapServers entry (spec §6). Invalid
// input raises an argument error.
func ParseBrokerURI(raw string) (BrokerURI, error) {
	m := brokerURIPattern.FindStringSubmatch(raw)
	if m == nil {
		return BrokerURI{}, errors.Errorf("invalid broker uri %q", raw)
	}

	host := m[2]
	port := defaultBrokerPort
	if m[3] != "" {
		p, err := strconv.Atoi(m[3])
		if err != nil || p < 0 || p > 65535 {
			return BrokerURI{}, errors.Errorf("invalid broker uri %q: bad port", raw)
		}
		port = p
	}

	return BrokerURI{Host: host, Port: uint16(port)}, nil
}

// ParseBrokerURIs parses every entry in raws, preserving order
// (spec §6 bootstrapServers: "ordered list of URIs").
func ParseBrokerURIs(raws []string) ([]BrokerURI, error) {
	out := make([]BrokerURI, 0, len(raws))
	for _, raw := range raws {
		u, err := ParseBrokerURI(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
