package core

import (
	"math/big"
	"testing"

	"CTFIndexer/internal/event"
)

func newTestIndexer() (*Indexer, chan Output) {
	persist := make(chan Output, 4096)
	projection := make(chan Output, 4096)
	return NewIndexer(0, persist, projection, nil, nil), persist
}

func blockMeta(tx string, block, logIndex int64) event.Meta {
	return event.Meta{
		BlockNumber:     block,
		Timestamp:       block * 2,
		TransactionHash: tx,
		LogIndex:        logIndex,
	}
}

func prepCondition(id string, slots int, meta event.Meta) *event.ConditionPreparation {
	return &event.ConditionPreparation{
		Meta:             meta,
		ConditionID:      id,
		Oracle:           "0xoracle",
		QuestionID:       "0xquestion",
		OutcomeSlotCount: slots,
	}
}

func mustProcess(t *testing.T, ix *Indexer, evt event.Event) {
	t.Helper()
	if err := ix.ProcessEvent(evt); err != nil {
		t.Fatalf("ProcessEvent(%s): %v", evt.EventType(), err)
	}
}

func TestConditionPreparation(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, prepCondition("0xc1", 2, blockMeta("0xt1", 100, 0)))

	m, ok := ix.Store().Market("0xc1")
	if !ok {
		t.Fatal("market not created")
	}
	if m.OutcomeSlotCount != 2 || m.Oracle != "0xoracle" {
		t.Errorf("market fields = (%d, %s)", m.OutcomeSlotCount, m.Oracle)
	}
	if m.Resolved {
		t.Error("fresh market marked resolved")
	}
	if m.WinningOutcome != -1 {
		t.Errorf("winning outcome = %d, want -1 (undetermined)", m.WinningOutcome)
	}

	g, _ := ix.Store().GlobalStats()
	if g.TotalMarkets != 1 {
		t.Errorf("totalMarkets = %d, want 1", g.TotalMarkets)
	}
	day, ok := ix.Store().DailyStats("0")
	if !ok || day.NewMarkets != 1 {
		t.Error("daily newMarkets not bumped")
	}
}

func TestPreparationOverwritesPlaceholder(t *testing.T) {
	ix, _ := newTestIndexer()

	// resolution first: lazily created placeholder
	mustProcess(t, ix, &event.ConditionResolution{
		Meta:             blockMeta("0xt1", 100, 0),
		ConditionID:      "0xc1",
		PayoutNumerators: []*big.Int{big.NewInt(1), big.NewInt(0)},
	})
	m, _ := ix.Store().Market("0xc1")
	if !m.Resolved || m.WinningOutcome != 0 {
		t.Fatalf("placeholder = (resolved=%t, winner=%d)", m.Resolved, m.WinningOutcome)
	}

	// late preparation replaces the placeholder outright
	mustProcess(t, ix, prepCondition("0xc1", 2, blockMeta("0xt2", 101, 0)))
	m, _ = ix.Store().Market("0xc1")
	if m.Resolved {
		t.Error("preparation did not reset resolved flag")
	}
	if m.WinningOutcome != -1 || m.PayoutNumerators != nil {
		t.Error("preparation did not reset resolution data")
	}
	if m.TradeCount != 0 || m.TotalVolume.Sign() != 0 {
		t.Error("preparation did not zero aggregates")
	}
}

func TestConditionResolutionWinningOutcome(t *testing.T) {
	cases := []struct {
		name    string
		payouts []int64
		want    int
	}{
		{"second wins", []int64{0, 1}, 1},
		{"first wins", []int64{1, 0}, 0},
		{"tie goes to lowest index", []int64{5, 5}, 0},
		{"all zero stays undetermined", []int64{0, 0}, -1},
		{"multi outcome", []int64{0, 0, 7, 3}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix, _ := newTestIndexer()
			mustProcess(t, ix, prepCondition("0xc1", len(tc.payouts), blockMeta("0xt1", 100, 0)))

			payouts := make([]*big.Int, len(tc.payouts))
			for i, p := range tc.payouts {
				payouts[i] = big.NewInt(p)
			}
			mustProcess(t, ix, &event.ConditionResolution{
				Meta:             blockMeta("0xt2", 101, 0),
				ConditionID:      "0xc1",
				PayoutNumerators: payouts,
			})

			m, _ := ix.Store().Market("0xc1")
			if !m.Resolved {
				t.Fatal("market not resolved")
			}
			if m.WinningOutcome != tc.want {
				t.Errorf("winningOutcome = %d, want %d", m.WinningOutcome, tc.want)
			}
		})
	}
}

func TestResolutionForUnknownMarketCreatesIt(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, &event.ConditionResolution{
		Meta:             blockMeta("0xt1", 100, 0),
		ConditionID:      "0xmissing",
		PayoutNumerators: []*big.Int{big.NewInt(0), big.NewInt(1)},
	})

	m, ok := ix.Store().Market("0xmissing")
	if !ok {
		t.Fatal("market not lazily created")
	}
	if !m.Resolved || m.WinningOutcome != 1 {
		t.Errorf("market = (resolved=%t, winner=%d)", m.Resolved, m.WinningOutcome)
	}
	g, _ := ix.Store().GlobalStats()
	if g.ResolvedMarkets != 1 {
		t.Errorf("resolvedMarkets = %d, want 1", g.ResolvedMarkets)
	}
}

func TestPositionSplitRequiresMarket(t *testing.T) {
	ix, _ := newTestIndexer()

	// unknown market: no record, but the user is still ensured
	mustProcess(t, ix, &event.PositionSplit{
		Meta:        blockMeta("0xt1", 100, 0),
		Stakeholder: "0xalice",
		ConditionID: "0xnope",
		Amount:      big.NewInt(1_000_000),
	})
	if _, ok := ix.Store().Split("0xt1-0"); ok {
		t.Error("split recorded against unknown market")
	}
	if _, ok := ix.Store().User("0xalice"); !ok {
		t.Error("user not ensured on skipped split")
	}

	mustProcess(t, ix, prepCondition("0xc1", 2, blockMeta("0xt2", 101, 0)))
	mustProcess(t, ix, &event.PositionSplit{
		Meta:        blockMeta("0xt3", 102, 0),
		Stakeholder: "0xalice",
		ConditionID: "0xc1",
		Amount:      big.NewInt(1_000_000),
	})
	sp, ok := ix.Store().Split("0xt3-0")
	if !ok {
		t.Fatal("split not recorded")
	}
	if sp.Stakeholder != "0xalice" || sp.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("split = (%s, %s)", sp.Stakeholder, sp.Amount)
	}
}

func TestPositionsMergeNeedsNoMarket(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, &event.PositionsMerge{
		Meta:        blockMeta("0xt1", 100, 0),
		Stakeholder: "0xbob",
		ConditionID: "0xnope",
		Amount:      big.NewInt(500_000),
	})
	if _, ok := ix.Store().Merge("0xt1-0"); !ok {
		t.Error("merge not recorded for unknown market")
	}
}

func TestPayoutRedemption(t *testing.T) {
	ix, _ := newTestIndexer()
	mustProcess(t, ix, &event.PayoutRedemption{
		Meta:        blockMeta("0xt1", 100, 0),
		Redeemer:    "0xcarol",
		ConditionID: "0xc1",
		IndexSets:   []*big.Int{big.NewInt(1), big.NewInt(2)},
		Payout:      big.NewInt(2_000_000),
	})
	r, ok := ix.Store().Redemption("0xt1-0")
	if !ok {
		t.Fatal("redemption not recorded")
	}
	if r.Payout.Cmp(big.NewInt(2_000_000)) != 0 || len(r.IndexSets) != 2 {
		t.Errorf("redemption = (%s, %d index sets)", r.Payout, len(r.IndexSets))
	}
	if _, ok := ix.Store().User("0xcarol"); !ok {
		t.Error("redeemer not ensured")
	}
}
