package auction

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestPriceAtBoundaries(t *testing.T) {
	start, end := int64(1000), int64(2000)
	sp, ep := big.NewInt(1000), big.NewInt(900)

	assert.Equal(t, "1000", PriceAt(start, end, sp, ep, 0).String())
	assert.Equal(t, "1000", PriceAt(start, end, sp, ep, start).String())
	assert.Equal(t, "950", PriceAt(start, end, sp, ep, 1500).String())
	assert.Equal(t, "900", PriceAt(start, end, sp, ep, end).String())
	assert.Equal(t, "900", PriceAt(start, end, sp, ep, 5000).String())
}

func TestPriceAtIsMonotonicAndLinear(t *testing.T) {
	start, end := int64(1_700_000_000), int64(1_700_003_600)
	sp, ep := ether(100), ether(90)

	prev := PriceAt(start, end, sp, ep, start-10)
	for ts := start - 10; ts <= end+10; ts += 7 {
		p := PriceAt(start, end, sp, ep, ts)
		require.True(t, p.Cmp(prev) <= 0, "price increased at t=%d: %s > %s", ts, p, prev)
		prev = p
	}

	// equal time steps give equal price steps
	a := PriceAt(start, end, sp, ep, start+600)
	b := PriceAt(start, end, sp, ep, start+1200)
	c := PriceAt(start, end, sp, ep, start+1800)
	assert.Equal(t, new(big.Int).Sub(a, b), new(big.Int).Sub(b, c))
}

func TestPriceAtDegenerateWindow(t *testing.T) {
	sp, ep := big.NewInt(10), big.NewInt(5)
	assert.Equal(t, "10", PriceAt(100, 100, sp, ep, 99).String())
	assert.Equal(t, "5", PriceAt(100, 100, sp, ep, 100).String())
	assert.Equal(t, "5", PriceAt(100, 100, sp, ep, 101).String())
	assert.Equal(t, "10", PriceAt(100, 50, sp, ep, 75).String())
	assert.Equal(t, "5", PriceAt(100, 50, sp, ep, 100).String())
}

func TestPriceAtNilAndHugeValues(t *testing.T) {
	assert.Equal(t, "0", PriceAt(0, 10, nil, nil, 5).String())

	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	p := PriceAt(0, 2, huge, big.NewInt(0), 1)
	assert.Equal(t, new(big.Int).Rsh(huge, 1).String(), p.String())
}

func TestDisplayPricePrefersContract(t *testing.T) {
	now := time.Unix(1500, 0)
	a := &Auction{StartTime: 1000, EndTime: 2000, StartPrice: big.NewInt(1000), EndPrice: big.NewInt(900)}

	assert.Equal(t, "950", a.DisplayPrice(now).String())

	a.CurrentPrice = big.NewInt(942)
	assert.Equal(t, "942", a.DisplayPrice(now).String())
}
