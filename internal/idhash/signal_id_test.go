package idhash

import (
	"testing"

	"solana-copy-trader/internal/domain"
)

func TestComputeSignalID(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		source    string
		mint      string
		direction domain.Direction
	}{
		{
			name:      "buy",
			signature: "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
			source:    "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			mint:      "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
			direction: domain.Buy,
		},
		{
			name:      "sell",
			signature: "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
			source:    "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			mint:      "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
			direction: domain.Sell,
		},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSignalID(tt.signature, tt.source, tt.mint, tt.direction)
			if len(got) != 64 {
				t.Errorf("ComputeSignalID() length = %d, want 64", len(got))
			}

			got2 := ComputeSignalID(tt.signature, tt.source, tt.mint, tt.direction)
			if got != got2 {
				t.Errorf("ComputeSignalID() not deterministic: %s != %s", got, got2)
			}

			if prev, ok := seen[got]; ok {
				t.Errorf("ComputeSignalID() collision between %s and %s", prev, tt.name)
			}
			seen[got] = tt.name
		})
	}
}

func TestComputeSignalID_FieldBoundaries(t *testing.T) {
	a := ComputeSignalID("ab", "c", "m", domain.Buy)
	b := ComputeSignalID("a", "bc", "m", domain.Buy)
	if a == b {
		t.Error("expected separator to keep field boundaries distinct")
	}
}

func TestComputeFillID(t *testing.T) {
	id := ComputeFillID("plan-1", "sig-1")
	if len(id) != 64 {
		t.Errorf("ComputeFillID() length = %d, want 64", len(id))
	}
	if id != ComputeFillID("plan-1", "sig-1") {
		t.Error("ComputeFillID() not deterministic")
	}
	if id == ComputeFillID("plan-2", "sig-1") {
		t.Error("different plans must yield different fill IDs")
	}
}
