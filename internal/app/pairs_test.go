package app

import "testing"

func TestPairs_PairMarksBothBusy(t *testing.T) {
	p := NewPairs()
	if p.IsBusy("a") || p.IsBusy("b") {
		t.Fatalf("fresh registry must be idle")
	}

	p.Pair("a", "b")

	if !p.IsBusy("a") || !p.IsBusy("b") {
		t.Fatalf("both parties must be busy after pairing")
	}
	if p.IsBusy("c") {
		t.Fatalf("third parties are unaffected")
	}
}

func TestPairs_UnpairIsSymmetric(t *testing.T) {
	p := NewPairs()
	p.Pair("a", "b")

	peer, ok := p.Unpair("a")
	if !ok || peer != "b" {
		t.Fatalf("expected peer b, got %q ok=%v", peer, ok)
	}
	if p.IsBusy("a") || p.IsBusy("b") {
		t.Fatalf("unpairing one side must clear both")
	}
}

func TestPairs_UnpairIsIdempotent(t *testing.T) {
	p := NewPairs()
	p.Pair("a", "b")

	if _, ok := p.Unpair("b"); !ok {
		t.Fatalf("first unpair should find the pairing")
	}
	if _, ok := p.Unpair("b"); ok {
		t.Fatalf("second unpair must be a no-op")
	}
	if _, ok := p.Unpair("a"); ok {
		t.Fatalf("peer side is already cleared")
	}
}

func TestPairs_RepairAfterTeardown(t *testing.T) {
	p := NewPairs()
	p.Pair("a", "b")
	p.Unpair("a")
	p.Pair("a", "c")

	peer, ok := p.Unpair("a")
	if !ok || peer != "c" {
		t.Fatalf("expected new pairing with c, got %q ok=%v", peer, ok)
	}
	if p.IsBusy("b") {
		t.Fatalf("b must not be dragged into a's new call")
	}
}
