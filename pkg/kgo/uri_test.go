package kgo

import "testing"

func TestParseBrokerURI(t *testing.T) {
	cases := []struct {
		raw     string
		wantOk  bool
		host    string
		port    uint16
	}{
		{raw: "host", wantOk: true, host: "host", port: defaultBrokerPort},
		{raw: "host:123", wantOk: true, host: "host", port: 123},
		{raw: "kafka://host", wantOk: true, host: "host", port: defaultBrokerPort},
		{raw: "tcp://host:9", wantOk: true, host: "host", port: 9},
		{raw: "host-with.dots_and_dash", wantOk: true, host: "host-with.dots_and_dash", port: defaultBrokerPort},
		{raw: "!!!", wantOk: false},
		{raw: "host:notaport", wantOk: false},
		{raw: "host:99999", wantOk: false},
		{raw: "", wantOk: false},
	}

	for _, c := range cases {
		u, err := ParseBrokerURI(c.raw)
		if c.wantOk && err != nil {
			t.Errorf("ParseBrokerURI(%q): unexpected error: %v", c.raw, err)
			continue
		}
		if !c.wantOk {
			if err == nil {
				t.Errorf("ParseBrokerURI(%q): expected error, got %v", c.raw, u)
			}
			continue
		}
		if u.Host != c.host || u.Port != c.port {
			t.Errorf("ParseBrokerURI(%q) = %+v, want host=%s port=%d", c.raw, u, c.host, c.port)
		}
	}
}

func TestParseBrokerURIsPreservesOrder(t *testing.T) {
	uris, err := ParseBrokerURIs([]string{"a:1", "b:2", "c:3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, u := range uris {
		if u.Host != want[i] {
			t.Errorf("uris[%d].Host = %s, want %s", i, u.Host, want[i])
		}
	}
}

func TestParseBrokerURIsFailsOnFirstBadEntry(t *testing.T) {
	if _, err := ParseBrokerURIs([]string{"good:1", "!!!"}); err == nil {
		t.Fatal("expected error")
	}
}
