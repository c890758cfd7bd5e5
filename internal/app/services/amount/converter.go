// Package amount converts between human decimal input and fixed-point token
// amounts, and renders fiat equivalents. All arithmetic is big.Int; malformed
// input degrades to zero rather than raising a fault.
package amount

import (
	"context"
	"math/big"
	"strings"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

const groupSeparator = " "

// ApproxPrefix marks converted fiat values as approximations.
const ApproxPrefix = "≈ "

// FiatDisplayDigits caps the fraction digits shown for fiat equivalents.
const FiatDisplayDigits = 2

// ParseInput converts a human decimal string into a fixed-point amount at
// the target precision. Empty input, more than one fractional separator or
// non-digit garbage all yield zero. Fractional digits beyond the target are
// preserved in the integer value, never truncated; guarding against excess
// precision is the caller's job.
func ParseInput(text string, targetFractionalDigits int) wallet.Amount {
	text = strings.TrimSpace(text)
	if text == "" {
		return wallet.Zero(targetFractionalDigits)
	}

	// Accept both separators the keyboard may produce.
	text = strings.ReplaceAll(text, ",", ".")
	parts := strings.Split(text, ".")
	if len(parts) > 2 {
		return wallet.Zero(targetFractionalDigits)
	}

	fractionalDigits := 0
	if len(parts) == 2 {
		fractionalDigits = len(parts[1])
	}

	digits := strings.Join(parts, "")
	for _, r := range digits {
		if r < '0' || r > '9' {
			return wallet.Zero(targetFractionalDigits)
		}
	}
	if pad := targetFractionalDigits - fractionalDigits; pad > 0 {
		digits += strings.Repeat("0", pad)
	}
	if digits == "" {
		return wallet.Zero(targetFractionalDigits)
	}

	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return wallet.Zero(targetFractionalDigits)
	}
	return wallet.NewAmount(value, targetFractionalDigits)
}

// Format renders a fixed-point amount with at most maxDisplayDigits fraction
// digits, trailing zeros trimmed, integer digits grouped and an optional
// symbol suffix.
func Format(a wallet.Amount, maxDisplayDigits int, symbol string) string {
	value := a.Value
	if value == nil {
		value = new(big.Int)
	}
	digits := value.String()

	if pad := a.FractionalDigits + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	split := len(digits) - a.FractionalDigits
	intPart, fracPart := digits[:split], digits[split:]

	if maxDisplayDigits >= 0 && len(fracPart) > maxDisplayDigits {
		fracPart = fracPart[:maxDisplayDigits]
	}
	fracPart = strings.TrimRight(fracPart, "0")

	out := groupDigits(intPart)
	if fracPart != "" {
		out += "." + fracPart
	}
	if symbol != "" {
		out += " " + symbol
	}
	return out
}

func groupDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(groupSeparator)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// NativeRateTable looks up the cached native-token rate for a currency.
type NativeRateTable interface {
	Rate(currency string) (wallet.Rate, bool)
}

// Converter renders fiat equivalents for token amounts. Rate lookups that
// fail return an empty string; a missing rate is degradation, not an error.
type Converter struct {
	rates    NativeRateTable
	balances sources.BalanceSource
	log      *logger.Logger
}

// NewConverter constructs a converter.
func NewConverter(rates NativeRateTable, balances sources.BalanceSource, log *logger.Logger) *Converter {
	if log == nil {
		log = logger.NewDefault("amount")
	}
	return &Converter{rates: rates, balances: balances, log: log}
}

// ToDisplayCurrency converts a token amount into the display currency.
// A zero amount always renders as the empty string.
func (c *Converter) ToDisplayCurrency(ctx context.Context, w wallet.Wallet, a wallet.Amount, t wallet.Token, currency string) string {
	if a.IsZero() {
		return ""
	}

	var (
		r  wallet.Rate
		ok bool
	)
	if t.IsNative() {
		if c.rates != nil {
			r, ok = c.rates.Rate(currency)
		}
	} else if c.balances != nil {
		bal, err := c.balances.Balance(ctx, w)
		if err != nil {
			c.log.WithError(err).Debug("balance fetch failed during fiat conversion")
			return ""
		}
		r, ok = bal.TokenRate(t, currency)
	}
	if !ok {
		return ""
	}

	converted, ok := ConvertWithRate(a, r)
	if !ok {
		return ""
	}
	return ApproxPrefix + Format(converted, FiatDisplayDigits, strings.ToUpper(currency))
}

// ConvertWithRate multiplies a fixed-point amount by a decimal rate at the
// rate's own precision. The result precision is the sum of both.
func ConvertWithRate(a wallet.Amount, r wallet.Rate) (wallet.Amount, bool) {
	rateValue, rateDigits, ok := parseRate(r.Price)
	if !ok {
		return wallet.Amount{}, false
	}
	value := a.Value
	if value == nil {
		value = new(big.Int)
	}
	product := new(big.Int).Mul(value, rateValue)
	return wallet.NewAmount(product, a.FractionalDigits+rateDigits), true
}

func parseRate(price string) (*big.Int, int, bool) {
	price = strings.TrimSpace(price)
	if price == "" {
		return nil, 0, false
	}
	parts := strings.Split(price, ".")
	if len(parts) > 2 {
		return nil, 0, false
	}
	digits := strings.Join(parts, "")
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, 0, false
		}
	}
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, 0, false
	}
	rateDigits := 0
	if len(parts) == 2 {
		rateDigits = len(parts[1])
	}
	return value, rateDigits, true
}
