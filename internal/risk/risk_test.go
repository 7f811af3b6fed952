package risk

import "testing"

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 50}
	if !limits.Allow(49.9) {
		t.Fatalf("expected notional under limit to pass")
	}
	if limits.Allow(50.1) {
		t.Fatalf("expected notional above limit to fail")
	}
}

func TestAllowDisabled(t *testing.T) {
	if !(Limits{}).Allow(1e9) {
		t.Fatalf("expected zero cap to disable the check")
	}
	if !(Limits{MaxNotionalPerTrade: -1}).Allow(1e9) {
		t.Fatalf("expected negative cap to disable the check")
	}
}
