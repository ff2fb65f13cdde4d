// Package pricing implements the exact decimal arithmetic behind trade
// prices, volume-weighted cost bases and realized profit. All inputs are
// raw on-chain integer amounts (6-decimal scaling for both USDC and
// outcome-token shares); all outputs are arbitrary-precision decimals so
// replays are bit-for-bit reproducible.
package pricing

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

// Ctx is the shared decimal context. 34 significant digits, half-even
// rounding. Every operation in this package goes through it so results
// never depend on caller-supplied contexts.
var Ctx = apd.Context{
	Precision:   34,
	MaxExponent: apd.MaxExponent,
	MinExponent: apd.MinExponent,
	Rounding:    apd.RoundHalfEven,
	Traps:       apd.DefaultTraps,
}

// scale is 10^6, the shared USDC/share fixed-point denominator.
var scale = apd.New(1, 6)

// ToDecimal converts a raw integer amount to its human-scale decimal
// value (divides by 10^6). Nil is treated as zero.
func ToDecimal(raw *big.Int) *apd.Decimal {
	d := rawDecimal(raw)
	out := new(apd.Decimal)
	if _, err := Ctx.Quo(out, d, scale); err != nil {
		return new(apd.Decimal)
	}
	return out
}

// rawDecimal renders the integer amount as a decimal verbatim, without
// the fixed-point rescaling. Nil is treated as zero.
func rawDecimal(raw *big.Int) *apd.Decimal {
	d := new(apd.Decimal)
	if raw == nil {
		return d
	}
	d.Coeff.Set(new(apd.BigInt).SetMathBigInt(raw))
	if raw.Sign() < 0 {
		d.Negative = true
		d.Coeff.Abs(&d.Coeff)
	}
	return d
}

// CalculatePrice returns collateral paid per share: (usdc/10^6)/(shares/10^6).
// Zero shares yields zero, not an error; a fill with no shares has no price.
func CalculatePrice(usdcAmount, shareAmount *big.Int) *apd.Decimal {
	if shareAmount == nil || shareAmount.Sign() == 0 {
		return new(apd.Decimal)
	}
	u := ToDecimal(usdcAmount)
	s := ToDecimal(shareAmount)
	out := new(apd.Decimal)
	if _, err := Ctx.Quo(out, u, s); err != nil {
		return new(apd.Decimal)
	}
	return out
}

// CalculateVWAP folds one fill into a running volume-weighted average:
//
//	vwap' = (avg*total + price*amount) / (total + amount)
//
// A zero amount leaves the average untouched. A zero prior total makes the
// fill price the new average outright.
func CalculateVWAP(currentAvg *apd.Decimal, totalAmount *big.Int, fillPrice *apd.Decimal, fillAmount *big.Int) *apd.Decimal {
	if fillAmount == nil || fillAmount.Sign() == 0 {
		return cloneDec(currentAvg)
	}
	if totalAmount == nil || totalAmount.Sign() == 0 {
		return cloneDec(fillPrice)
	}

	total := ToDecimal(totalAmount)
	amt := ToDecimal(fillAmount)

	var prior, fill, num, den apd.Decimal
	if _, err := Ctx.Mul(&prior, nz(currentAvg), total); err != nil {
		return cloneDec(currentAvg)
	}
	if _, err := Ctx.Mul(&fill, nz(fillPrice), amt); err != nil {
		return cloneDec(currentAvg)
	}
	if _, err := Ctx.Add(&num, &prior, &fill); err != nil {
		return cloneDec(currentAvg)
	}
	if _, err := Ctx.Add(&den, total, amt); err != nil {
		return cloneDec(currentAvg)
	}
	out := new(apd.Decimal)
	if _, err := Ctx.Quo(out, &num, &den); err != nil {
		return cloneDec(currentAvg)
	}
	return out
}

// CalculateRealizedPnL returns (sellPrice - avgBuyPrice) * amount for an
// average-cost basis. Lots are not tracked; the basis is whatever the
// running buy VWAP is at the moment of the sale. The amount stays in raw
// 6-decimal units, so the result is PnL in raw USDC units, the same
// fixed-point convention every other stored aggregate uses.
func CalculateRealizedPnL(sellPrice, avgBuyPrice *apd.Decimal, amount *big.Int) *apd.Decimal {
	amt := rawDecimal(amount)
	var diff apd.Decimal
	if _, err := Ctx.Sub(&diff, nz(sellPrice), nz(avgBuyPrice)); err != nil {
		return new(apd.Decimal)
	}
	out := new(apd.Decimal)
	if _, err := Ctx.Mul(out, &diff, amt); err != nil {
		return new(apd.Decimal)
	}
	return out
}

func nz(d *apd.Decimal) *apd.Decimal {
	if d == nil {
		return new(apd.Decimal)
	}
	return d
}

func cloneDec(d *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	if d != nil {
		out.Set(d)
	}
	return out
}
