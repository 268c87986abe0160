package discovery

import "testing"

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort string
		wantErr  bool
	}{
		{"127.0.0.1:9090", "127.0.0.1", "9090", false},
		{"0.0.0.0:9091", "0.0.0.0", "9091", false},
		{"no-colon-here", "", "", true},
	}

	for _, c := range cases {
		host, port, err := splitHostPort(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("splitHostPort(%q): expected error, got none", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("splitHostPort(%q): unexpected error: %v", c.in, err)
		}
		if host != c.wantHost || port != c.wantPort {
			t.Errorf("splitHostPort(%q) = %q, %q, want %q, %q", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}

func TestNewEmptyAddrUsesDefault(t *testing.T) {
	r, err := New("", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.client == nil {
		t.Fatal("expected a non-nil consul client even with an empty addr")
	}
}
