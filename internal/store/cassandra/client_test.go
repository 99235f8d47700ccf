package cassandra

import "testing"

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{name: "round_engine", expected: true},
		{name: "Games2024", expected: true},
		{name: "", expected: false},
		{name: "1games", expected: false},
		{name: "games; DROP", expected: false},
		{name: "games-prod", expected: false},
		{name: "a_very_long_keyspace_name_that_goes_past_the_limit", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validIdentifier(tt.name); got != tt.expected {
				t.Errorf("validIdentifier(%q) = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no hosts", cfg: Config{Keyspace: "round_engine", Consistency: "QUORUM"}},
		{name: "bad keyspace", cfg: Config{Hosts: []string{"127.0.0.1"}, Keyspace: "bad-name", Consistency: "QUORUM"}},
		{name: "bad consistency", cfg: Config{Hosts: []string{"127.0.0.1"}, Keyspace: "round_engine", Consistency: "MOST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
