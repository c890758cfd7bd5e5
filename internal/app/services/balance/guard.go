// Package balance guards prospective spends against the live balance. An
// unknown balance is never treated as sufficient: every fetch failure
// degrades to the insufficient outcome or a zero maximum.
package balance

import (
	"context"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/services/amount"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Availability is the outcome of a remaining-balance check.
type Availability struct {
	Sufficient bool
	Remaining  string // formatted remaining balance, set when Sufficient
}

// Insufficient is the fail-safe outcome.
var Insufficient = Availability{}

// Guard checks spends against live balances.
type Guard struct {
	balances sources.BalanceSource
	log      *logger.Logger
}

// NewGuard constructs a balance guard.
func NewGuard(balances sources.BalanceSource, log *logger.Logger) *Guard {
	if log == nil {
		log = logger.NewDefault("balance")
	}
	return &Guard{balances: balances, log: log}
}

// Remaining reports whether the wallet can cover the requested amount and,
// if so, the formatted balance that would remain.
func (g *Guard) Remaining(ctx context.Context, w wallet.Wallet, t wallet.Token, requested wallet.Amount) Availability {
	bal, err := g.balances.Balance(ctx, w)
	if err != nil {
		g.log.WithError(err).WithField("wallet_id", w.ID).Warn("balance fetch failed, treating spend as insufficient")
		return Insufficient
	}

	held, _ := bal.Quantity(t)
	if held.Cmp(requested) < 0 {
		return Insufficient
	}
	remaining := held.Sub(requested)
	return Availability{
		Sufficient: true,
		Remaining:  amount.Format(remaining, t.FractionalDigits, t.Symbol),
	}
}

// MaximumSpendable returns the current balance of the token, or zero when
// the balance cannot be fetched.
func (g *Guard) MaximumSpendable(ctx context.Context, w wallet.Wallet, t wallet.Token) wallet.Amount {
	bal, err := g.balances.Balance(ctx, w)
	if err != nil {
		return wallet.Zero(t.FractionalDigits)
	}
	held, _ := bal.Quantity(t)
	return held
}

// IsSpendAvailable reports whether the balance fetch succeeds and covers the
// amount.
func (g *Guard) IsSpendAvailable(ctx context.Context, w wallet.Wallet, t wallet.Token, a wallet.Amount) bool {
	bal, err := g.balances.Balance(ctx, w)
	if err != nil {
		return false
	}
	held, _ := bal.Quantity(t)
	return held.Cmp(a) >= 0
}
