package entity_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/testutil"
)

func mustDec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// The fingerprint encoding is the only input to the state hash; any change
// to it silently forks every chain tip. The golden file pins the exact
// rendering of one fully populated entity per kind.
func TestFingerprintGolden(t *testing.T) {
	m := entity.NewMarket("0xc1")
	m.QuestionID = "0xq1"
	m.Oracle = "0xoracle"
	m.OutcomeSlotCount = 2
	m.CreationTimestamp = 1700000000
	m.CreationBlock = 100
	m.CreationTxHash = "0xt1"
	m.Resolved = true
	m.ResolutionTimestamp = 1700003600
	m.ResolutionBlock = 105
	m.PayoutNumerators = []*big.Int{big.NewInt(0), big.NewInt(1)}
	m.WinningOutcome = 1
	m.TradeCount = 3
	m.TotalVolume = big.NewInt(15_000_000)
	m.UniqueTraders = 2

	u := entity.NewUser("0xalice")
	u.TradeCount = 2
	u.TotalVolume = big.NewInt(10_000_000)
	u.TotalFeesPaid = big.NewInt(50_000)
	u.MarketsTraded = 1
	u.FirstTradeTimestamp = 1700000000
	u.FirstTradeBlock = 100
	u.LastTradeTimestamp = 1700003600

	p := entity.NewPosition("0xalice", "0xc1", "101")
	p.OutcomeIndex = 1
	p.Balance = big.NewInt(6_000_000)
	p.TotalBought = big.NewInt(10_000_000)
	p.TotalSold = big.NewInt(4_000_000)
	p.AvgBuyPrice = mustDec(t, "0.5")
	p.AvgSellPrice = mustDec(t, "0.65")
	p.RealizedPnL = mustDec(t, "600000")
	p.TradeCount = 2
	p.LastUpdated = 1700003600

	tm := &entity.TokenMapping{
		ID:                 "101",
		TokenID:            "101",
		Market:             "0xc1",
		OutcomeIndex:       1,
		IndexSet:           big.NewInt(2),
		Collateral:         entity.USDCAddress,
		FirstSeenTxHash:    "0xreg",
		FirstSeenBlock:     101,
		FirstSeenTimestamp: 1700000100,
	}

	mp := &entity.MarketParticipation{
		ID:                  entity.ParticipationID("0xalice", "0xc1"),
		User:                "0xalice",
		Market:              "0xc1",
		TradeCount:          2,
		Volume:              big.NewInt(10_000_000),
		FirstTradeTimestamp: 1700000000,
		LastTradeTimestamp:  1700003600,
	}

	g := entity.NewGlobalStats()
	g.TotalMarkets = 1
	g.ResolvedMarkets = 1
	g.TotalTrades = 3
	g.TotalVolume = big.NewInt(15_000_000)
	g.TotalFees = big.NewInt(50_000)
	g.TotalUsers = 2
	g.LastUpdatedBlock = 105
	g.LastUpdatedTimestamp = 1700003600

	d := &entity.DailyStats{
		ID:           "1699920000",
		DayTimestamp: 1699920000,
		NewMarkets:   1,
		TradeCount:   3,
		Volume:       big.NewInt(15_000_000),
		Fees:         big.NewInt(50_000),
		NewUsers:     2,
		ActiveUsers:  2,
	}

	tr := &entity.Trade{
		ID:              "0xt1-0",
		Market:          "0xc1",
		Trader:          "0xalice",
		Counterparty:    "0xbob",
		TokenID:         "101",
		OutcomeIndex:    1,
		Side:            entity.SideBuy,
		Amount:          big.NewInt(10_000_000),
		Price:           mustDec(t, "0.5"),
		Cost:            big.NewInt(5_000_000),
		Fee:             big.NewInt(50_000),
		Timestamp:       1700000000,
		BlockNumber:     100,
		TransactionHash: "0xt1",
		LogIndex:        0,
		Exchange:        entity.ExchangeLegacy,
	}

	s := &entity.Split{
		ID: "0xs1-0", Stakeholder: "0xalice", Market: "0xc1",
		Amount: big.NewInt(1_000_000), Timestamp: 1700000000,
		BlockNumber: 100, TransactionHash: "0xs1",
	}
	mg := &entity.Merge{
		ID: "0xm1-0", Stakeholder: "0xalice", Market: "0xc1",
		Amount: big.NewInt(1_000_000), Timestamp: 1700000000,
		BlockNumber: 100, TransactionHash: "0xm1",
	}
	r := &entity.Redemption{
		ID: "0xr1-0", Redeemer: "0xalice", Market: "0xc1",
		IndexSets: []*big.Int{big.NewInt(1), big.NewInt(2)},
		Payout:    big.NewInt(2_000_000), Timestamp: 1700003600,
		BlockNumber: 105, TransactionHash: "0xr1",
	}

	all := []entity.Entity{m, u, p, tm, mp, g, d, tr, s, mg, r}
	lines := make([]string, len(all))
	for i, e := range all {
		lines[i] = e.Fingerprint()
	}
	testutil.AssertGolden(t, "fingerprints.golden", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestFingerprintNormalizesDecimals(t *testing.T) {
	a := entity.NewPosition("0xalice", "0xc1", "101")
	a.AvgBuyPrice = mustDec(t, "0.50")
	b := entity.NewPosition("0xalice", "0xc1", "101")
	b.AvgBuyPrice = mustDec(t, "0.5")

	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("equal values rendered differently:\n%s\n%s", a.Fingerprint(), b.Fingerprint())
	}
}

func TestFingerprintNilDefaults(t *testing.T) {
	// a bare struct with nil big.Ints and decimals must still render
	p := &entity.Position{ID: "x", User: "u", Market: "m", TokenID: "t"}
	fp := p.Fingerprint()
	if !strings.Contains(fp, "|0|0|0|0|0|0|") {
		t.Errorf("nil numerics not rendered as zeroes: %s", fp)
	}
}
