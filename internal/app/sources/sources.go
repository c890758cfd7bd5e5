// Package sources declares the external collaborator interfaces the core
// consumes: chain data lookups, transaction submission and the
// user-confirmation surface. Implementations live at the edges (tonapi
// client, UI shell); services depend only on these interfaces.
package sources

import (
	"context"
	"errors"

	"github.com/xssnick/tonutils-go/address"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/send"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
)

// ErrDomainNotFound reports that a name-service domain is genuinely not
// registered, as opposed to a transport failure reaching the resolver.
var ErrDomainNotFound = errors.New("domain not registered")

// WalletDirectory resolves wallet identifiers to the wallets this bridge
// acts for.
type WalletDirectory interface {
	Wallet(ctx context.Context, walletID string) (wallet.Wallet, bool)
}

// BalanceSource fetches a live balance snapshot for a wallet.
type BalanceSource interface {
	Balance(ctx context.Context, w wallet.Wallet) (wallet.Balance, error)
}

// DNSResolver maps a human-readable domain to an on-chain address.
type DNSResolver interface {
	ResolveDomain(ctx context.Context, domain string, testnet bool) (*address.Address, error)
}

// KnownAccount is one entry of the curated known-accounts list.
type KnownAccount struct {
	Address     string // raw form
	Name        string
	RequireMemo bool
}

// KnownAccountsSource fetches the curated known-accounts list. It is a
// best-effort auxiliary feed; callers must tolerate failure.
type KnownAccountsSource interface {
	KnownAccounts(ctx context.Context) ([]KnownAccount, error)
}

// RateSource fetches price rates for the native token.
type RateSource interface {
	NativeRates(ctx context.Context, currencies []string) (map[string]wallet.Rate, error)
}

// Submitter broadcasts a prepared transaction and returns its hash.
type Submitter interface {
	Submit(ctx context.Context, w wallet.Wallet, payload string) (txHash string, err error)
}

// ManifestSource fetches an application manifest by URL.
type ManifestSource interface {
	FetchManifest(ctx context.Context, url string) (connect.Manifest, error)
}

// ConnectPrompt is what the confirmation surface shows for a connect
// request.
type ConnectPrompt struct {
	Wallet   wallet.Wallet
	Manifest connect.Manifest
}

// SendPrompt is what the confirmation surface shows for a send request.
type SendPrompt struct {
	Wallet        wallet.Wallet
	Origin        string
	AppName       string
	Recipient     send.Recipient
	Token         wallet.Token
	AmountText    string
	FiatText      string
	RemainingText string
	Payload       string
}

// ConfirmationSurface asks the user to approve or decline a request. The
// call parks until the user decides or ctx is cancelled; it holds no locks
// while parked.
type ConfirmationSurface interface {
	ConfirmConnect(ctx context.Context, prompt ConnectPrompt) (bool, error)
	ConfirmSend(ctx context.Context, prompt SendPrompt) (bool, error)
}
