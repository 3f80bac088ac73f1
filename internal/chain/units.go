package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal string such as "0.02" to base units.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("parse units %q: not a positive decimal", amount)
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("parse units %q: more than %d decimals", amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("parse units %q: not a decimal", amount)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string with trailing zeros
// dropped.
func FormatUnits(v *big.Int, decimals uint8) string {
	s := new(big.Int).Abs(v).String()
	if len(s) <= int(decimals) {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	cut := len(s) - int(decimals)
	whole, frac := s[:cut], strings.TrimRight(s[cut:], "0")
	if v.Sign() < 0 {
		whole = "-" + whole
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
