package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a count of the smallest native value unit (wei).
// Amounts are always integral and never negative.
type Amount = decimal.Decimal

const (
	etherDecimals int32 = 18 // 1 ether = 10^18 wei

	// maxAmountDigits is the digit count of 2^256. Exponents and coefficients
	// beyond it are rejected before any operation that rescales the value.
	maxAmountDigits = 78
)

var (
	// Zero is the zero amount.
	Zero = decimal.Zero

	// maxAmount is the first value that does not fit a uint256 balance.
	maxAmount = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 256), 0)
)

// Wei returns an Amount of n wei.
func Wei(n int64) Amount {
	return decimal.NewFromInt(n)
}

// ParseEther converts an ether-denominated string (e.g. "0.002") to wei.
func ParseEther(s string) (Amount, error) {
	value, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: parse %q: %v", ErrInvalidAmount, s, err)
	}
	wei := value.Shift(etherDecimals)
	if err := ValidateAmount(wei); err != nil {
		return Zero, err
	}
	return wei, nil
}

// MustParseEther is ParseEther for constants; it panics on bad input.
func MustParseEther(s string) Amount {
	wei, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}

// FormatEther renders a wei amount in ether without trailing zeros.
// Values outside the amount bounds render as a placeholder.
func FormatEther(wei Amount) string {
	if !withinAmountBounds(wei) {
		return "<out of range>"
	}
	return wei.Shift(-etherDecimals).String()
}

// ValidateAmount rejects negative, fractional and out-of-range amounts.
// Every amount fits in 256 bits.
func ValidateAmount(a Amount) error {
	if !withinAmountBounds(a) {
		return fmt.Errorf("%w: amount out of range (exponent %d, %d digits)", ErrInvalidAmount, a.Exponent(), a.NumDigits())
	}
	if a.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, a)
	}
	if !a.Equal(a.Truncate(0)) {
		return fmt.Errorf("%w: fractional amount %s", ErrInvalidAmount, a)
	}
	if !a.LessThan(maxAmount) {
		return fmt.Errorf("%w: amount %s exceeds 2^256 wei", ErrInvalidAmount, a)
	}
	return nil
}

// withinAmountBounds is a shape check that never rescales a.
func withinAmountBounds(a Amount) bool {
	exp := a.Exponent()
	if exp < -maxAmountDigits || exp > maxAmountDigits {
		return false
	}
	return a.NumDigits() <= 2*maxAmountDigits
}

// ExceedsThreshold returns true if the amount is strictly greater than the threshold.
func ExceedsThreshold(amount, threshold Amount) bool {
	return amount.GreaterThan(threshold)
}
