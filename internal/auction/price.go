package auction

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

// PriceAt evaluates the Dutch auction decay law at unix time t:
//
//	price = startPrice - (startPrice - endPrice) * clamp((t - start) / (end - start), 0, 1)
//
// The product is taken before the division with a 512-bit intermediate, so
// the result is exact up to floor rounding. Nil prices count as zero and
// negative or oversized values are clamped to the uint256 range.
func PriceAt(start, end int64, startPrice, endPrice *big.Int, t int64) *big.Int {
	sp := toUint256(startPrice)
	ep := toUint256(endPrice)

	// degenerate window: the price drops to endPrice at start
	if end <= start {
		if t >= start {
			return ep.ToBig()
		}
		return sp.ToBig()
	}
	if t <= start {
		return sp.ToBig()
	}
	if t >= end {
		return ep.ToBig()
	}

	elapsed := uint256.NewInt(uint64(t - start))
	duration := uint256.NewInt(uint64(end - start))

	if sp.Cmp(ep) >= 0 {
		diff := new(uint256.Int).Sub(sp, ep)
		step, _ := new(uint256.Int).MulDivOverflow(diff, elapsed, duration)
		return new(uint256.Int).Sub(sp, step).ToBig()
	}

	// an increasing schedule is not produced by the contract but the law
	// still interpolates linearly
	diff := new(uint256.Int).Sub(ep, sp)
	step, _ := new(uint256.Int).MulDivOverflow(diff, elapsed, duration)
	return new(uint256.Int).Add(sp, step).ToBig()
}

// LocalPrice is the client-side estimate of the auction price at now.
func (a *Auction) LocalPrice(now time.Time) *big.Int {
	return PriceAt(a.StartTime, a.EndTime, a.StartPrice, a.EndPrice, now.Unix())
}

// DisplayPrice prefers the contract-reported price and falls back to the
// local interpolation when none was read.
func (a *Auction) DisplayPrice(now time.Time) *big.Int {
	if a.CurrentPrice != nil {
		return new(big.Int).Set(a.CurrentPrice)
	}
	return a.LocalPrice(now)
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func toUint256(x *big.Int) *uint256.Int {
	switch {
	case x == nil || x.Sign() <= 0:
		return new(uint256.Int)
	case x.Cmp(maxUint256) > 0:
		v, _ := uint256.FromBig(maxUint256)
		return v
	}
	v, _ := uint256.FromBig(x)
	return v
}
