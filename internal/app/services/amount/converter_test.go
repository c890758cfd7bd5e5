package amount

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
)

func TestParseInput(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		target int
		want   string
	}{
		{"empty", "", 9, "0"},
		{"integer", "5", 9, "5000000000"},
		{"fraction", "1.5", 9, "1500000000"},
		{"comma separator", "1,5", 9, "1500000000"},
		{"full precision", "0.123456789", 9, "123456789"},
		{"excess precision preserved", "0.1234567891", 9, "1234567891"},
		{"two separators", "1.2.3", 9, "0"},
		{"letters", "12a", 9, "0"},
		{"bare separator", ".", 9, "0"},
		{"whitespace only", "   ", 9, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseInput(tc.text, tc.target)
			if got.FractionalDigits != tc.target {
				t.Fatalf("fractional digits = %d, want %d", got.FractionalDigits, tc.target)
			}
			if got.Value.String() != tc.want {
				t.Fatalf("ParseInput(%q) = %s, want %s", tc.text, got.Value.String(), tc.want)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, text := range []string{"0.5", "12.5", "999", "0.123456789", "7.000000001"} {
		parsed := ParseInput(text, 9)
		formatted := Format(parsed, 9, "")
		reparsed := ParseInput(formatted, 9)
		if parsed.Cmp(reparsed) != 0 {
			t.Fatalf("round trip %q -> %q: %s != %s", text, formatted, parsed, reparsed)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		digits  int
		display int
		symbol  string
		want    string
	}{
		{"trims trailing zeros", "2000000000", 9, 9, "TON", "2 TON"},
		{"keeps significant fraction", "1500000000", 9, 9, "TON", "1.5 TON"},
		{"caps display digits", "1123456789", 9, 2, "", "1.12"},
		{"groups thousands", "1234567000000000", 9, 9, "TON", "1 234 567 TON"},
		{"zero", "0", 9, 9, "", "0"},
		{"no symbol", "42000000000", 9, 9, "", "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, _ := new(big.Int).SetString(tc.value, 10)
			got := Format(wallet.NewAmount(v, tc.digits), tc.display, tc.symbol)
			if got != tc.want {
				t.Fatalf("Format = %q, want %q", got, tc.want)
			}
		})
	}
}

type rateTable map[string]wallet.Rate

func (r rateTable) Rate(currency string) (wallet.Rate, bool) {
	rate, ok := r[currency]
	return rate, ok
}

type balanceStub struct {
	balance wallet.Balance
	err     error
}

func (b balanceStub) Balance(context.Context, wallet.Wallet) (wallet.Balance, error) {
	return b.balance, b.err
}

func TestToDisplayCurrencyZeroAmount(t *testing.T) {
	c := NewConverter(rateTable{"USD": {Currency: "USD", Price: "2.35"}}, balanceStub{}, nil)
	got := c.ToDisplayCurrency(context.Background(), wallet.Wallet{}, wallet.Zero(9), wallet.Native(), "USD")
	if got != "" {
		t.Fatalf("zero amount rendered %q, want empty", got)
	}
}

func TestToDisplayCurrencyMissingRate(t *testing.T) {
	c := NewConverter(rateTable{}, balanceStub{}, nil)
	a := ParseInput("1.5", 9)
	if got := c.ToDisplayCurrency(context.Background(), wallet.Wallet{}, a, wallet.Native(), "USD"); got != "" {
		t.Fatalf("missing rate rendered %q, want empty", got)
	}
}

func TestToDisplayCurrencyNative(t *testing.T) {
	c := NewConverter(rateTable{"USD": {Currency: "USD", Price: "2.35"}}, balanceStub{}, nil)
	a := ParseInput("1.5", 9)
	got := c.ToDisplayCurrency(context.Background(), wallet.Wallet{}, a, wallet.Native(), "USD")
	if got != "≈ 3.52 USD" {
		t.Fatalf("converted = %q, want %q", got, "≈ 3.52 USD")
	}
}

func TestToDisplayCurrencyFungible(t *testing.T) {
	token := wallet.Fungible("0:aa", 6, "JET")
	bal := wallet.Balance{
		Fungibles: []wallet.FungibleBalance{{
			Token:    token,
			Quantity: ParseInput("10", 6),
			Rates:    map[string]wallet.Rate{"USD": {Currency: "USD", Price: "0.5"}},
		}},
	}
	c := NewConverter(rateTable{}, balanceStub{balance: bal}, nil)
	got := c.ToDisplayCurrency(context.Background(), wallet.Wallet{}, ParseInput("4", 6), token, "USD")
	if got != "≈ 2 USD" {
		t.Fatalf("converted = %q, want %q", got, "≈ 2 USD")
	}
}

func TestToDisplayCurrencyFungibleFetchFailure(t *testing.T) {
	token := wallet.Fungible("0:aa", 6, "JET")
	c := NewConverter(rateTable{}, balanceStub{err: errors.New("indexer down")}, nil)
	if got := c.ToDisplayCurrency(context.Background(), wallet.Wallet{}, ParseInput("4", 6), token, "USD"); got != "" {
		t.Fatalf("fetch failure rendered %q, want empty", got)
	}
}

func TestConvertWithRatePrecision(t *testing.T) {
	a := ParseInput("1.5", 9)
	converted, ok := ConvertWithRate(a, wallet.Rate{Currency: "USD", Price: "2.35"})
	if !ok {
		t.Fatal("conversion failed")
	}
	if converted.FractionalDigits != 11 {
		t.Fatalf("result precision = %d, want 11", converted.FractionalDigits)
	}
	if converted.Value.String() != "352500000000" {
		t.Fatalf("result value = %s, want 352500000000", converted.Value)
	}
}

func TestConvertWithRateBadPrice(t *testing.T) {
	for _, price := range []string{"", "abc", "1.2.3", "-1"} {
		if _, ok := ConvertWithRate(ParseInput("1", 9), wallet.Rate{Price: price}); ok {
			t.Fatalf("price %q unexpectedly converted", price)
		}
	}
}
