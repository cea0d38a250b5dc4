package format

import (
	"math/big"
	"strings"
)

// Units converts a base-unit amount into a decimal string, dividing by
// 10^decimals. Trailing fractional zeros are removed and no fractional
// part is emitted when the remainder is zero. Integer arithmetic only.
func Units(value *big.Int, decimals int) string {
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	wholePart := new(big.Int).Div(value, divisor)
	remainder := new(big.Int).Mod(value, divisor)

	if remainder.Sign() == 0 {
		return wholePart.String()
	}

	// Pad remainder with leading zeros to match decimal places
	remainderStr := remainder.String()
	for len(remainderStr) < decimals {
		remainderStr = "0" + remainderStr
	}

	remainderStr = strings.TrimRight(remainderStr, "0")
	if remainderStr == "" {
		return wholePart.String()
	}

	return wholePart.String() + "." + remainderStr
}
