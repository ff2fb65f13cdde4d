package event

import "math/big"

// Exchange identifies which order-book deployment emitted an event.
type Exchange int32

const (
	ExchangeUnknown Exchange = iota
	ExchangeLegacy
	ExchangeNegRisk
)

func (e Exchange) String() string {
	switch e {
	case ExchangeLegacy:
		return "legacy"
	case ExchangeNegRisk:
		return "negrisk"
	default:
		return "unknown"
	}
}

// TokenRegistered pairs two complementary outcome token ids with their
// condition. Token0 maps to outcome 0, Token1 to outcome 1.
type TokenRegistered struct {
	Meta
	Exchange    Exchange
	Token0      string
	Token1      string
	ConditionID string
}

// OrderFilled is a matched order. MakerAssetID/TakerAssetID are "0" for
// the collateral side; exactly one of them should name an outcome token.
type OrderFilled struct {
	Meta
	Exchange          Exchange
	OrderHash         string
	Maker             string
	Taker             string
	MakerAssetID      string
	TakerAssetID      string
	MakerAmountFilled *big.Int
	TakerAmountFilled *big.Int
	Fee               *big.Int
}

func (e *TokenRegistered) EventID() string { return e.Meta.ID() }
func (e *TokenRegistered) EventType() Type { return TypeTokenRegistered }
func (e *TokenRegistered) EventMeta() Meta { return e.Meta }
func (e *OrderFilled) EventID() string     { return e.Meta.ID() }
func (e *OrderFilled) EventType() Type     { return TypeOrderFilled }
func (e *OrderFilled) EventMeta() Meta     { return e.Meta }
