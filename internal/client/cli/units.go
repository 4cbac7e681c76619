package cli

import (
	"fmt"
	"math"
	"math/big"

	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/shopspring/decimal"
)

// Decimals is the number of decimal places of one pool unit as shown to
// users: 1 POOL = 10^9 base units.
const Decimals = 9

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal POOL amount such as "1.5" into base units.
func ParseAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", pool.ErrInvalidArgument, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount %q is negative", pool.ErrInvalidArgument, s)
	}

	units := d.Shift(Decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more than %d decimals", pool.ErrInvalidArgument, s, Decimals)
	}
	if units.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: amount %q", pool.ErrArithmeticOverflow, s)
	}
	return units.BigInt().Uint64(), nil
}

// FormatAmount renders base units as a POOL amount with all decimals.
func FormatAmount(units uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), 0).Shift(-Decimals).StringFixed(Decimals)
}

// FormatTag renders a selection tag as five digits.
func FormatTag(tag uint32) string {
	return fmt.Sprintf("%05d", tag)
}
