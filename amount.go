package x402

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseTokenAmount converts a human-readable decimal amount into atomic
// units, e.g. "1.5" with 6 decimals becomes 1500000. The conversion is
// pure integer arithmetic; amounts with more fractional digits than the
// token supports are rejected rather than rounded.
func ParseTokenAmount(amount string, decimals int) (*big.Int, error) {
	if amount == "" || decimals < 0 {
		return nil, ErrInvalidAmount
	}

	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" && frac == "" {
		return nil, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if len(frac) > decimals {
		// Trailing zeros beyond the token precision are harmless.
		if !isZeros(frac[decimals:]) {
			return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, amount, decimals)
		}
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	atomic, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return atomic, nil
}

// FormatTokenAmount renders atomic units as a human-readable decimal
// string, e.g. 1500000 with 6 decimals becomes "1.5".
func FormatTokenAmount(atomic *big.Int, decimals int) string {
	if atomic == nil {
		return "0"
	}
	if decimals <= 0 {
		return atomic.String()
	}

	neg := atomic.Sign() < 0
	digits := new(big.Int).Abs(atomic).String()
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isZeros(s string) bool {
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return true
}
