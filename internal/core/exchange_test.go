package core

import (
	"math/big"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/event"
)

const (
	tokYes = "101"
	tokNo  = "100"
)

// seedMarket prepares a condition and registers its token pair.
func seedMarket(t *testing.T, ix *Indexer, conditionID string, ex event.Exchange, block int64) {
	t.Helper()
	mustProcess(t, ix, prepCondition(conditionID, 2, blockMeta("0xprep-"+conditionID, block, 0)))
	mustProcess(t, ix, &event.TokenRegistered{
		Meta:        blockMeta("0xreg-"+conditionID, block+1, 0),
		Exchange:    ex,
		Token0:      tokNo,
		Token1:      tokYes,
		ConditionID: conditionID,
	})
}

func orderFilled(tx string, block int64, ex event.Exchange, maker, taker, makerAsset, takerAsset string, makerAmt, takerAmt, fee int64) *event.OrderFilled {
	return &event.OrderFilled{
		Meta:              blockMeta(tx, block, 0),
		Exchange:          ex,
		OrderHash:         "0xorder",
		Maker:             maker,
		Taker:             taker,
		MakerAssetID:      makerAsset,
		TakerAssetID:      takerAsset,
		MakerAmountFilled: big.NewInt(makerAmt),
		TakerAmountFilled: big.NewInt(takerAmt),
		Fee:               big.NewInt(fee),
	}
}

func mustDecimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestTokenRegisteredMapsBothOutcomes(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	no, ok := ix.Store().Token(tokNo)
	if !ok || no.OutcomeIndex != 0 {
		t.Errorf("token0 mapping = (%v, ok=%t)", no, ok)
	}
	yes, ok := ix.Store().Token(tokYes)
	if !ok || yes.OutcomeIndex != 1 {
		t.Errorf("token1 mapping = (%v, ok=%t)", yes, ok)
	}
	if yes.IndexSet.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("token1 indexSet = %s, want 2", yes.IndexSet)
	}
}

func TestOrderFilledTakerBuy(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	// maker supplies 10 shares, taker pays 5 USDC: taker bought at 0.5
	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeLegacy,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 5_000_000, 50_000))

	tr, ok := ix.Store().Trade("0xf1-0")
	if !ok {
		t.Fatal("trade not recorded")
	}
	if tr.Side != entity.SideBuy {
		t.Errorf("side = %s, want BUY", tr.Side)
	}
	if tr.Trader != "0xtaker" || tr.Counterparty != "0xmaker" {
		t.Errorf("parties = (%s, %s)", tr.Trader, tr.Counterparty)
	}
	if tr.Amount.Cmp(big.NewInt(10_000_000)) != 0 || tr.Cost.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Errorf("amount/cost = (%s, %s)", tr.Amount, tr.Cost)
	}
	if tr.Price.Cmp(mustDecimal(t, "0.5")) != 0 {
		t.Errorf("price = %s, want 0.5", tr.Price.Text('f'))
	}
	if tr.Exchange != entity.ExchangeLegacy {
		t.Errorf("exchange = %s", tr.Exchange)
	}
}

func TestOrderFilledTakerSell(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	// taker supplies 10 shares, maker pays 4 USDC: taker sold at 0.4
	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeLegacy,
		"0xmaker", "0xtaker", "0", tokYes, 4_000_000, 10_000_000, 0))

	tr, _ := ix.Store().Trade("0xf1-0")
	if tr.Side != entity.SideSell {
		t.Errorf("side = %s, want SELL", tr.Side)
	}
	if tr.Price.Cmp(mustDecimal(t, "0.4")) != 0 {
		t.Errorf("price = %s, want 0.4", tr.Price.Text('f'))
	}
}

func TestOrderFilledUnregisteredDropped(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeLegacy,
		"0xmaker", "0xtaker", "999", "998", 1_000_000, 1_000_000, 0))

	if _, ok := ix.Store().Trade("0xf1-0"); ok {
		t.Error("trade recorded for unregistered assets")
	}
	if _, ok := ix.Store().User("0xtaker"); ok {
		t.Error("user created for dropped fill")
	}
	g, ok := ix.Store().GlobalStats()
	if ok && g.TotalTrades != 0 {
		t.Errorf("totalTrades = %d, want 0", g.TotalTrades)
	}
}

func TestOrderFilledFeeToTakerOnly(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeLegacy,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 5_000_000, 50_000))

	taker, _ := ix.Store().User("0xtaker")
	maker, _ := ix.Store().User("0xmaker")
	if taker.TotalFeesPaid.Cmp(big.NewInt(50_000)) != 0 {
		t.Errorf("taker fees = %s, want 50000", taker.TotalFeesPaid)
	}
	if maker.TotalFeesPaid.Sign() != 0 {
		t.Errorf("maker fees = %s, want 0", maker.TotalFeesPaid)
	}
	// both sides count the volume
	if taker.TotalVolume.Cmp(big.NewInt(5_000_000)) != 0 || maker.TotalVolume.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Errorf("volumes = (%s, %s)", taker.TotalVolume, maker.TotalVolume)
	}
}

func TestLegacyFillSkipsPositionsAndDailyUsers(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeLegacy,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 5_000_000, 0))

	if n := ix.Store().PositionCount(); n != 0 {
		t.Errorf("legacy fill created %d positions", n)
	}
	day, ok := ix.Store().DailyStats("0")
	if !ok {
		t.Fatal("daily stats missing")
	}
	if day.ActiveUsers != 0 || day.NewUsers != 0 {
		t.Errorf("legacy daily users = (active=%d, new=%d), want zeroes", day.ActiveUsers, day.NewUsers)
	}
	if day.TradeCount != 1 {
		t.Errorf("daily tradeCount = %d, want 1", day.TradeCount)
	}
}

func TestNegRiskFillTracksPositionsAndDailyUsers(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)

	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 5_000_000, 0))

	day, _ := ix.Store().DailyStats("0")
	if day.NewUsers != 2 {
		t.Errorf("newUsers = %d, want 2", day.NewUsers)
	}
	if day.ActiveUsers != 2 {
		t.Errorf("activeUsers = %d, want 2", day.ActiveUsers)
	}

	// taker bought at 0.5
	takerPos, ok := ix.Store().Position(entity.PositionID("0xtaker", "0xc1", tokYes))
	if !ok {
		t.Fatal("taker position missing")
	}
	if takerPos.AvgBuyPrice.Cmp(mustDecimal(t, "0.5")) != 0 {
		t.Errorf("taker avgBuyPrice = %s, want 0.5", takerPos.AvgBuyPrice.Text('f'))
	}
	if takerPos.TotalBought.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("taker totalBought = %s", takerPos.TotalBought)
	}

	// maker sold the same shares; with no prior buys the whole sale books as PnL
	makerPos, ok := ix.Store().Position(entity.PositionID("0xmaker", "0xc1", tokYes))
	if !ok {
		t.Fatal("maker position missing")
	}
	if makerPos.AvgSellPrice.Cmp(mustDecimal(t, "0.5")) != 0 {
		t.Errorf("maker avgSellPrice = %s, want 0.5", makerPos.AvgSellPrice.Text('f'))
	}
	if makerPos.RealizedPnL.Cmp(mustDecimal(t, "5000000")) != 0 {
		t.Errorf("maker realizedPnL = %s, want 5000000", makerPos.RealizedPnL.Text('f'))
	}
}

func TestNegRiskVWAPAndRealizedPnL(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)

	// buy 10 @ 0.60
	mustProcess(t, ix, orderFilled("0xf1", 102, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 6_000_000, 0))
	// buy 10 @ 0.40 => avg 0.50
	mustProcess(t, ix, orderFilled("0xf2", 103, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 10_000_000, 4_000_000, 0))

	pos, _ := ix.Store().Position(entity.PositionID("0xtaker", "0xc1", tokYes))
	if pos.AvgBuyPrice.Cmp(mustDecimal(t, "0.5")) != 0 {
		t.Fatalf("avgBuyPrice = %s, want 0.5", pos.AvgBuyPrice.Text('f'))
	}

	// sell 10 @ 0.65 => pnl (0.65-0.50)*10_000_000 raw = 1.5 USDC
	mustProcess(t, ix, orderFilled("0xf3", 104, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", "0", tokYes, 6_500_000, 10_000_000, 0))

	pos, _ = ix.Store().Position(entity.PositionID("0xtaker", "0xc1", tokYes))
	if pos.RealizedPnL.Cmp(mustDecimal(t, "1500000")) != 0 {
		t.Errorf("realizedPnL = %s, want 1500000", pos.RealizedPnL.Text('f'))
	}
	if pos.TotalSold.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("totalSold = %s", pos.TotalSold)
	}
	// buy basis unchanged by the sale
	if pos.AvgBuyPrice.Cmp(mustDecimal(t, "0.5")) != 0 {
		t.Errorf("avgBuyPrice after sale = %s, want 0.5", pos.AvgBuyPrice.Text('f'))
	}
}

func TestParticipationCountedOnce(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeLegacy, 100)

	txs := []string{"0xfa", "0xfb", "0xfc"}
	for i, tx := range txs {
		mustProcess(t, ix, orderFilled(tx, 102+int64(i), event.ExchangeLegacy,
			"0xmaker", "0xtaker", tokYes, "0", 1_000_000, 500_000, 0))
	}

	m, _ := ix.Store().Market("0xc1")
	if m.UniqueTraders != 2 {
		t.Errorf("uniqueTraders = %d, want 2", m.UniqueTraders)
	}
	taker, _ := ix.Store().User("0xtaker")
	if taker.MarketsTraded != 1 {
		t.Errorf("marketsTraded = %d, want 1", taker.MarketsTraded)
	}
	p, ok := ix.Store().Participation(entity.ParticipationID("0xtaker", "0xc1"))
	if !ok {
		t.Fatal("participation missing")
	}
	if p.TradeCount != 3 {
		t.Errorf("participation tradeCount = %d, want 3", p.TradeCount)
	}
}

func TestDailyActiveUserOncePerDay(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)

	dayTs := int64(86400 * 100)
	fill1 := orderFilled("0xf1", 1000, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 1_000_000, 500_000, 0)
	fill1.Meta.Timestamp = dayTs
	mustProcess(t, ix, fill1)

	fill2 := orderFilled("0xf2", 1001, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 1_000_000, 500_000, 0)
	fill2.Meta.Timestamp = dayTs + 3600
	mustProcess(t, ix, fill2)

	day, _ := ix.Store().DailyStats("8640000")
	if day.ActiveUsers != 2 {
		t.Errorf("same-day activeUsers = %d, want 2 (each party once)", day.ActiveUsers)
	}

	// next day: both count again
	fill3 := orderFilled("0xf3", 1002, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 1_000_000, 500_000, 0)
	fill3.Meta.Timestamp = dayTs + 86400
	mustProcess(t, ix, fill3)

	day2, _ := ix.Store().DailyStats("8726400")
	if day2.ActiveUsers != 2 {
		t.Errorf("next-day activeUsers = %d, want 2", day2.ActiveUsers)
	}
	if day2.NewUsers != 0 {
		t.Errorf("next-day newUsers = %d, want 0", day2.NewUsers)
	}
}

func TestDailyActiveUserCountsEarlierDayBucket(t *testing.T) {
	ix, _ := newTestIndexer()
	seedMarket(t, ix, "0xc1", event.ExchangeNegRisk, 100)

	// first trade lands on day 101, then a straggler fill from day 100
	// arrives. Buckets differ, so both days count the traders as active.
	dayTs := int64(86400 * 100)
	fill1 := orderFilled("0xf1", 1001, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 1_000_000, 500_000, 0)
	fill1.Meta.Timestamp = dayTs + 86400
	mustProcess(t, ix, fill1)

	fill2 := orderFilled("0xf2", 1000, event.ExchangeNegRisk,
		"0xmaker", "0xtaker", tokYes, "0", 1_000_000, 500_000, 0)
	fill2.Meta.Timestamp = dayTs
	mustProcess(t, ix, fill2)

	late, _ := ix.Store().DailyStats("8726400")
	if late.ActiveUsers != 2 {
		t.Errorf("later-day activeUsers = %d, want 2", late.ActiveUsers)
	}
	early, ok := ix.Store().DailyStats("8640000")
	if !ok {
		t.Fatal("earlier day bucket missing")
	}
	if early.ActiveUsers != 2 {
		t.Errorf("earlier-day activeUsers = %d, want 2", early.ActiveUsers)
	}
	if early.NewUsers != 0 {
		t.Errorf("earlier-day newUsers = %d, want 0 (both users known)", early.NewUsers)
	}
}
