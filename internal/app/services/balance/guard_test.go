package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/services/amount"
)

type balanceStub struct {
	balance wallet.Balance
	err     error
}

func (b balanceStub) Balance(context.Context, wallet.Wallet) (wallet.Balance, error) {
	return b.balance, b.err
}

func nativeBalance(text string) wallet.Balance {
	return wallet.Balance{Native: amount.ParseInput(text, wallet.NativeFractionalDigits)}
}

func TestRemainingSufficient(t *testing.T) {
	g := NewGuard(balanceStub{balance: nativeBalance("100")}, nil)
	avail := g.Remaining(context.Background(), wallet.Wallet{ID: "w1"}, wallet.Native(), amount.ParseInput("40", 9))
	if !avail.Sufficient {
		t.Fatal("spend of 40 against 100 reported insufficient")
	}
	if avail.Remaining != "60 TON" {
		t.Fatalf("remaining = %q, want %q", avail.Remaining, "60 TON")
	}
}

func TestRemainingInsufficient(t *testing.T) {
	g := NewGuard(balanceStub{balance: nativeBalance("40")}, nil)
	avail := g.Remaining(context.Background(), wallet.Wallet{ID: "w1"}, wallet.Native(), amount.ParseInput("100", 9))
	if avail.Sufficient {
		t.Fatal("spend of 100 against 40 reported sufficient")
	}
	if avail.Remaining != "" {
		t.Fatalf("insufficient outcome carried remaining %q", avail.Remaining)
	}
}

func TestRemainingExactBalance(t *testing.T) {
	g := NewGuard(balanceStub{balance: nativeBalance("40")}, nil)
	avail := g.Remaining(context.Background(), wallet.Wallet{}, wallet.Native(), amount.ParseInput("40", 9))
	if !avail.Sufficient {
		t.Fatal("exact-balance spend reported insufficient")
	}
	if avail.Remaining != "0 TON" {
		t.Fatalf("remaining = %q, want %q", avail.Remaining, "0 TON")
	}
}

func TestRemainingFetchFailure(t *testing.T) {
	g := NewGuard(balanceStub{err: errors.New("indexer down")}, nil)
	avail := g.Remaining(context.Background(), wallet.Wallet{}, wallet.Native(), amount.ParseInput("1", 9))
	if avail.Sufficient {
		t.Fatal("fetch failure must degrade to insufficient")
	}
}

func TestMaximumSpendable(t *testing.T) {
	g := NewGuard(balanceStub{balance: nativeBalance("12.5")}, nil)
	max := g.MaximumSpendable(context.Background(), wallet.Wallet{}, wallet.Native())
	if max.Cmp(amount.ParseInput("12.5", 9)) != 0 {
		t.Fatalf("maximum = %s, want 12.5 TON in base units", max)
	}
}

func TestMaximumSpendableFetchFailure(t *testing.T) {
	g := NewGuard(balanceStub{err: errors.New("indexer down")}, nil)
	max := g.MaximumSpendable(context.Background(), wallet.Wallet{}, wallet.Native())
	if !max.IsZero() {
		t.Fatalf("maximum after fetch failure = %s, want zero", max)
	}
	if max.FractionalDigits != wallet.NativeFractionalDigits {
		t.Fatalf("zero maximum precision = %d, want %d", max.FractionalDigits, wallet.NativeFractionalDigits)
	}
}

func TestIsSpendAvailable(t *testing.T) {
	g := NewGuard(balanceStub{balance: nativeBalance("10")}, nil)
	if !g.IsSpendAvailable(context.Background(), wallet.Wallet{}, wallet.Native(), amount.ParseInput("10", 9)) {
		t.Fatal("exact-balance spend reported unavailable")
	}
	if g.IsSpendAvailable(context.Background(), wallet.Wallet{}, wallet.Native(), amount.ParseInput("10.000000001", 9)) {
		t.Fatal("over-balance spend reported available")
	}
}
