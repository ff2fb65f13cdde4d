package core

import (
	"math/big"
	"testing"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/event"
)

func transfer(tx string, block int64, from, to, tokenID string, value int64) *event.TransferSingle {
	return &event.TransferSingle{
		Meta:     blockMeta(tx, block, 0),
		Operator: "0xoperator",
		From:     from,
		To:       to,
		TokenID:  tokenID,
		Value:    big.NewInt(value),
	}
}

func TestDuplicateEventSkipped(t *testing.T) {
	ix, _ := newTestIndexer()
	evt := prepCondition("0xc1", 2, blockMeta("0xt1", 100, 0))

	mustProcess(t, ix, evt)
	mustProcess(t, ix, evt)
	mustProcess(t, ix, evt)

	g, _ := ix.Store().GlobalStats()
	if g.TotalMarkets != 1 {
		t.Errorf("totalMarkets after replay = %d, want 1", g.TotalMarkets)
	}
	if ix.Sequence() != 1 {
		t.Errorf("sequence = %d, want 1 (duplicates consume none)", ix.Sequence())
	}
}

func TestDuplicateFillAppliesAggregatesOnce(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)

	fill := orderFilled("0xf1", 102, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 5_000_000, 50_000)
	mustProcess(t, ix, fill)
	mustProcess(t, ix, fill)

	g, _ := ix.Store().GlobalStats()
	if g.TotalTrades != 1 {
		t.Errorf("totalTrades = %d, want 1", g.TotalTrades)
	}
	taker, _ := ix.Store().User("0xtaker")
	if taker.TradeCount != 1 {
		t.Errorf("taker tradeCount = %d, want 1", taker.TradeCount)
	}
	pos, _ := ix.Store().Position(entity.PositionID("0xtaker", "0xc1", tokYes))
	if pos.TotalBought.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("totalBought = %s, want one fill's worth", pos.TotalBought)
	}
}

func TestReplayDeterminism(t *testing.T) {
	run := func() [32]byte {
		ix, _ := newTestIndexer()
		seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)
		mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeNegRisk,
			"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 6_000_000, 10_000))
		mustProcess(t, ix, transfer("0xt1", 103, entity.ZeroAddress, "0xtaker", tokYes, 10_000_000))
		mustProcess(t, ix, orderFilled("0xf2", 104, event.ExchangeNegRisk,
			"0xmaker", "0xtaker", "0", tokYes, 4_000_000, 10_000_000, 0))
		mustProcess(t, ix, &event.ConditionResolution{
			Meta:             blockMeta("0xr1", 105, 0),
			ConditionID:      "0xc1",
			PayoutNumerators: []*big.Int{big.NewInt(0), big.NewInt(1)},
		})
		return ix.StateHash()
	}

	h1 := run()
	h2 := run()
	if h1 != h2 {
		t.Errorf("replay produced different chain tips: %x vs %x", h1, h2)
	}

	// a different sequence must not collide
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)
	if ix.StateHash() == h1 {
		t.Error("prefix replay matched full replay hash")
	}
}

func TestTransfersMoveBalances(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	// mint 10 to alice, send 4 to bob, burn 2 from bob
	mustProcess(t, ix, transfer("0xt1", 102, entity.ZeroAddress, "0xalice", tokYes, 10_000_000))
	mustProcess(t, ix, transfer("0xt2", 103, "0xalice", "0xbob", tokYes, 4_000_000))
	mustProcess(t, ix, transfer("0xt3", 104, "0xbob", entity.ZeroAddress, tokYes, 2_000_000))

	alice, _ := ix.Store().Position(entity.PositionID("0xalice", "0xc1", tokYes))
	bob, _ := ix.Store().Position(entity.PositionID("0xbob", "0xc1", tokYes))
	if alice.Balance.Cmp(big.NewInt(6_000_000)) != 0 {
		t.Errorf("alice balance = %s, want 6000000", alice.Balance)
	}
	if bob.Balance.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Errorf("bob balance = %s, want 2000000", bob.Balance)
	}

	if err := ix.CheckInvariants(); err != nil {
		t.Errorf("conservation check failed: %v", err)
	}
}

func TestTransferUnregisteredTokenSkipped(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, transfer("0xt1", 100, entity.ZeroAddress, "0xalice", "777", 10_000_000))

	if n := ix.Store().PositionCount(); n != 0 {
		t.Errorf("unregistered transfer created %d positions", n)
	}
	if _, ok := ix.Store().User("0xalice"); ok {
		t.Error("user created for skipped transfer")
	}
}

func TestTransferBatch(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	mustProcess(t, ix, &event.TransferBatch{
		Meta:     blockMeta("0xt1", 102, 0),
		Operator: "0xoperator",
		From:     entity.ZeroAddress,
		To:       "0xalice",
		TokenIDs: []string{tokNo, tokYes, "777"},
		Values:   []*big.Int{big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(9)},
	})

	// both registered tokens credited, the unregistered one skipped
	if n := ix.Store().PositionCount(); n != 2 {
		t.Fatalf("positions = %d, want 2", n)
	}
	no, _ := ix.Store().Position(entity.PositionID("0xalice", "0xc1", tokNo))
	if no.Balance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("no-token balance = %s", no.Balance)
	}
	if no.OutcomeIndex != 0 {
		t.Errorf("no-token outcomeIndex = %d, want 0", no.OutcomeIndex)
	}
	yes, _ := ix.Store().Position(entity.PositionID("0xalice", "0xc1", tokYes))
	if yes.OutcomeIndex != 1 {
		t.Errorf("yes-token outcomeIndex = %d, want 1", yes.OutcomeIndex)
	}
}

func TestNegativeBalanceAllowed(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	// alice sends tokens she was never credited; the ledger goes negative
	// rather than clamping, preserving conservation
	mustProcess(t, ix, transfer("0xt1", 102, "0xalice", "0xbob", tokYes, 3_000_000))

	alice, _ := ix.Store().Position(entity.PositionID("0xalice", "0xc1", tokYes))
	if alice.Balance.Cmp(big.NewInt(-3_000_000)) != 0 {
		t.Errorf("alice balance = %s, want -3000000", alice.Balance)
	}
	if err := ix.CheckInvariants(); err != nil {
		t.Errorf("conservation check failed: %v", err)
	}
}

func TestOutputsCarryMutations(t *testing.T) {
	ix, persist := newTestIndexer()
	mustProcess(t, ix, prepCondition("0xc1", 2, blockMeta("0xt1", 100, 0)))

	out := <-persist
	if out.Sequence != 0 {
		t.Errorf("sequence = %d, want 0", out.Sequence)
	}
	if out.EventID != "0xt1-0" {
		t.Errorf("eventID = %s", out.EventID)
	}
	if len(out.Mutations) == 0 {
		t.Fatal("no mutations emitted")
	}
	// first touch was the market itself
	if out.Mutations[0].Kind != entity.KindMarket || out.Mutations[0].ID != "0xc1" {
		t.Errorf("first mutation = %s/%s", out.Mutations[0].Kind, out.Mutations[0].ID)
	}
	if out.StateHash == out.PrevHash {
		t.Error("state hash did not advance")
	}
}

func TestRestoreResumesChain(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, prepCondition("0xc1", 2, blockMeta("0xt1", 100, 0)))
	mustProcess(t, ix, prepCondition("0xc2", 2, blockMeta("0xt2", 101, 0)))
	tip := ix.StateHash()
	seq := ix.Sequence()

	resumed, _ := newTestIndexer()
	resumed.Restore(seq, tip, 101, 0)
	if resumed.Sequence() != seq {
		t.Errorf("sequence after restore = %d, want %d", resumed.Sequence(), seq)
	}
	if resumed.StateHash() != tip {
		t.Error("chain tip not restored")
	}

	// the next hash must chain off the restored tip, not genesis
	fresh, _ := newTestIndexer()
	next := prepCondition("0xc3", 2, blockMeta("0xt3", 102, 0))
	mustProcess(t, resumed, next)
	mustProcess(t, fresh, next)
	if resumed.StateHash() == fresh.StateHash() {
		t.Error("restored chain tip had no effect on the next hash")
	}
	if resumed.Sequence() != seq+1 {
		t.Errorf("sequence = %d, want %d", resumed.Sequence(), seq+1)
	}
}

func TestOrderingRegressionTolerated(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, prepCondition("0xc1", 2, blockMeta("0xt1", 100, 0)))
	// earlier block: behind the watermark but still applied
	mustProcess(t, ix, prepCondition("0xc2", 2, blockMeta("0xt2", 99, 0)))

	if _, ok := ix.Store().Market("0xc2"); !ok {
		t.Error("regressed event was not applied")
	}
	g, _ := ix.Store().GlobalStats()
	if g.TotalMarkets != 2 {
		t.Errorf("totalMarkets = %d, want 2", g.TotalMarkets)
	}
}
