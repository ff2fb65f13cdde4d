package entity

// Numeric scales. USDC and outcome-token shares both use 6 decimals on chain.
const (
	USDCDecimals  = 6
	ShareDecimals = 6
)

// Addresses (Polygon mainnet, lower-cased hex).
const (
	ZeroAddress           = "0x0000000000000000000000000000000000000000"
	USDCAddress           = "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"
	CTFAddress            = "0x4d97dcd97ec945f40cf65f87097ace5ea0476045"
	LegacyExchangeAddress = "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e"
	NegRiskExchange       = "0xc5d563a36ae78145c45a50134d48a1215220f80a"
	NegRiskAdapter        = "0xd91e80cf2e7be2e162c6513ced06f1dd0da35296"
)

// GlobalStatsID is the fixed id of the singleton stats row.
const GlobalStatsID = "global"

// SecondsPerDay is the daily stats bucket width.
const SecondsPerDay int64 = 86400

// Exchange identifiers on Trade rows.
const (
	ExchangeLegacy  = "legacy"
	ExchangeNegRisk = "negrisk"
)

// Side is a trade direction from the taker's point of view.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// DayBucket floors a unix timestamp (seconds) to the start of its day.
func DayBucket(timestamp int64) int64 {
	return timestamp / SecondsPerDay * SecondsPerDay
}
