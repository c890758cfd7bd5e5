// Package wallet defines the wallet-side domain model: wallets, tokens and
// fixed-point token amounts. Monetary values are arbitrary-precision integers
// paired with a fractional digit count; floating point is never used.
package wallet

import "math/big"

// NativeFractionalDigits is the fixed-point precision of the native token.
const NativeFractionalDigits = 9

// NativeSymbol is the ticker of the native token.
const NativeSymbol = "TON"

// Wallet identifies a wallet the bridge acts for.
type Wallet struct {
	ID      string
	Address string // raw form "workchain:hex"
	Testnet bool
}

// TokenKind discriminates the Token variant.
type TokenKind string

const (
	TokenNative   TokenKind = "native"
	TokenFungible TokenKind = "fungible"
)

// Token is either the native token or a fungible token bound to a contract.
type Token struct {
	Kind             TokenKind
	ContractAddress  string // fungible only, raw form
	FractionalDigits int
	Symbol           string
}

// Native returns the native token descriptor.
func Native() Token {
	return Token{
		Kind:             TokenNative,
		FractionalDigits: NativeFractionalDigits,
		Symbol:           NativeSymbol,
	}
}

// Fungible returns a fungible token descriptor.
func Fungible(contractAddress string, fractionalDigits int, symbol string) Token {
	return Token{
		Kind:             TokenFungible,
		ContractAddress:  contractAddress,
		FractionalDigits: fractionalDigits,
		Symbol:           symbol,
	}
}

// IsNative reports whether the token is the native one.
func (t Token) IsNative() bool { return t.Kind == TokenNative }

// Key returns a stable map key for the token.
func (t Token) Key() string {
	if t.IsNative() {
		return string(TokenNative)
	}
	return t.ContractAddress
}

// Amount is a fixed-point token quantity: an unsigned arbitrary-precision
// integer scaled by 10^FractionalDigits.
type Amount struct {
	Value            *big.Int
	FractionalDigits int
}

// NewAmount builds an amount from an integer value. A nil value is zero.
func NewAmount(value *big.Int, fractionalDigits int) Amount {
	if value == nil {
		value = new(big.Int)
	}
	return Amount{Value: value, FractionalDigits: fractionalDigits}
}

// Zero returns a zero amount at the given precision.
func Zero(fractionalDigits int) Amount {
	return Amount{Value: new(big.Int), FractionalDigits: fractionalDigits}
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.Value == nil || a.Value.Sign() == 0
}

// Cmp compares two amounts of equal precision: -1 if a < b, 0 if equal,
// +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	av, bv := a.Value, b.Value
	if av == nil {
		av = new(big.Int)
	}
	if bv == nil {
		bv = new(big.Int)
	}
	return av.Cmp(bv)
}

// Sub returns a - b at a's precision. Callers must ensure a >= b.
func (a Amount) Sub(b Amount) Amount {
	av, bv := a.Value, b.Value
	if av == nil {
		av = new(big.Int)
	}
	if bv == nil {
		bv = new(big.Int)
	}
	return Amount{Value: new(big.Int).Sub(av, bv), FractionalDigits: a.FractionalDigits}
}

// String renders the raw integer value, mostly for logs.
func (a Amount) String() string {
	if a.Value == nil {
		return "0"
	}
	return a.Value.String()
}

// Rate is a price-per-unit quotation for one display currency. The price is
// kept as a decimal string so conversions can run at the rate's own
// precision without floating point.
type Rate struct {
	Currency string
	Price    string
}

// Balance is a point-in-time snapshot of a wallet's holdings.
type Balance struct {
	Native    Amount
	Fungibles []FungibleBalance
}

// FungibleBalance is the held quantity of one fungible token together with
// the rates quoted for it.
type FungibleBalance struct {
	Token    Token
	Quantity Amount
	Rates    map[string]Rate
}

// Quantity returns the held amount of the given token and whether the token
// is present in the snapshot at all. The native token is always present.
func (b Balance) Quantity(t Token) (Amount, bool) {
	if t.IsNative() {
		return b.Native, true
	}
	for _, fb := range b.Fungibles {
		if fb.Token.ContractAddress == t.ContractAddress {
			return fb.Quantity, true
		}
	}
	return Zero(t.FractionalDigits), false
}

// TokenRate returns the quoted rate for a fungible token in the given
// currency, if one is present in the snapshot.
func (b Balance) TokenRate(t Token, currency string) (Rate, bool) {
	for _, fb := range b.Fungibles {
		if fb.Token.ContractAddress == t.ContractAddress {
			r, ok := fb.Rates[currency]
			return r, ok
		}
	}
	return Rate{}, false
}
