package registry

import (
	"math/big"
	"testing"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/event"
	"CTFIndexer/internal/state"
)

func meta(tx string, block int64) event.Meta {
	return event.Meta{BlockNumber: block, Timestamp: block * 2, TransactionHash: tx, LogIndex: 0}
}

func TestRegisterFirstSeenWins(t *testing.T) {
	s := state.NewStore()
	r := New(s)

	if !r.Register("tok1", "0xmkt1", 0, meta("0xt1", 100)) {
		t.Fatal("first registration rejected")
	}
	// conflicting re-registration must be a no-op
	if r.Register("tok1", "0xmkt2", 1, meta("0xt2", 200)) {
		t.Fatal("re-registration accepted")
	}

	tok, ok := r.Get("tok1")
	if !ok {
		t.Fatal("token not found")
	}
	if tok.Market != "0xmkt1" || tok.OutcomeIndex != 0 {
		t.Errorf("mapping = (%s, %d), want (0xmkt1, 0)", tok.Market, tok.OutcomeIndex)
	}
	if tok.FirstSeenTxHash != "0xt1" || tok.FirstSeenBlock != 100 {
		t.Errorf("provenance = (%s, %d), want first sighting", tok.FirstSeenTxHash, tok.FirstSeenBlock)
	}
}

func TestRegisterIndexSet(t *testing.T) {
	s := state.NewStore()
	r := New(s)

	r.Register("tok0", "0xmkt", 0, meta("0xt", 1))
	r.Register("tok1", "0xmkt", 1, meta("0xt", 1))

	t0, _ := r.Get("tok0")
	t1, _ := r.Get("tok1")
	if t0.IndexSet.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("outcome 0 index set = %s, want 1", t0.IndexSet)
	}
	if t1.IndexSet.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("outcome 1 index set = %s, want 2", t1.IndexSet)
	}
	if t0.Collateral != entity.USDCAddress {
		t.Errorf("collateral = %s, want USDC", t0.Collateral)
	}
}

func TestRegisterRejectsCollateralID(t *testing.T) {
	s := state.NewStore()
	r := New(s)

	if r.Register("0", "0xmkt", 0, meta("0xt", 1)) {
		t.Error("collateral sentinel id was registered")
	}
	if r.Register("", "0xmkt", 0, meta("0xt", 1)) {
		t.Error("empty token id was registered")
	}
}

func TestLookups(t *testing.T) {
	s := state.NewStore()
	r := New(s)
	r.Register("tok1", "0xmkt", 1, meta("0xt", 1))

	if !r.IsRegistered("tok1") {
		t.Error("IsRegistered(tok1) = false")
	}
	if r.IsRegistered("tok2") {
		t.Error("IsRegistered(tok2) = true")
	}
	if m, ok := r.MarketForToken("tok1"); !ok || m != "0xmkt" {
		t.Errorf("MarketForToken = (%s, %t)", m, ok)
	}
	if idx, ok := r.OutcomeForToken("tok1"); !ok || idx != 1 {
		t.Errorf("OutcomeForToken = (%d, %t)", idx, ok)
	}
	if _, ok := r.MarketForToken("tok2"); ok {
		t.Error("MarketForToken found unregistered token")
	}
}

func TestRefreshPositionOutcome(t *testing.T) {
	s := state.NewStore()
	r := New(s)

	p := entity.NewPosition("0xuser", "0xmkt", "tok1")
	r.RefreshPositionOutcome(p)
	if p.OutcomeIndex != 0 {
		t.Fatalf("outcome before registration = %d, want 0", p.OutcomeIndex)
	}

	r.Register("tok1", "0xmkt", 1, meta("0xt", 1))
	r.RefreshPositionOutcome(p)
	if p.OutcomeIndex != 1 {
		t.Errorf("outcome after registration = %d, want 1", p.OutcomeIndex)
	}
}
