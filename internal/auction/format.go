package auction

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrNegativeAmount = errors.New("amount is negative")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// FormatUnits renders a raw token amount with the given decimals, trimming
// trailing zeros ("1.5" for 1500000000000000000 at 18 decimals).
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// FormatPrice is FormatUnits followed by the token symbol, or "N/A" when
// there is no amount to show.
func FormatPrice(amount *big.Int, decimals uint8, symbol string) string {
	if amount == nil {
		return "N/A"
	}
	if symbol == "" {
		symbol = "???"
	}
	return fmt.Sprintf("%s %s", FormatUnits(amount, decimals), symbol)
}

// FormatFixed renders amount rounded to places decimals, padding with zeros
// ("12.30").
func FormatFixed(amount *big.Int, decimals uint8, places int32) string {
	if amount == nil {
		return decimal.Zero.StringFixed(places)
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).StringFixed(places)
}

// ParseUnits converts a human amount ("1.25") into raw token units. Digits
// beyond the token precision are rejected rather than rounded.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAmount, value, err)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w %q: more than %d decimals", ErrInvalidAmount, value, decimals)
	}
	return shifted.BigInt(), nil
}
