// Package recipient turns user-typed strings into validated on-chain
// recipients. Resolution order is fixed and first-match-wins: raw address,
// friendly address, then name-service domain.
package recipient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/send"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Resolver resolves recipient input strings.
type Resolver struct {
	dns   sources.DNSResolver
	known sources.KnownAccountsSource
	log   *logger.Logger
}

// NewResolver constructs a resolver.
func NewResolver(dns sources.DNSResolver, known sources.KnownAccountsSource, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewDefault("recipient")
	}
	return &Resolver{dns: dns, known: known, log: log}
}

// Resolve maps input to a recipient. A nil recipient with a nil error means
// no variant matched; the caller surfaces that as an invalid recipient. A
// friendly address whose network flag contradicts the context is a network
// mismatch, not a fall-through. Transport failures during domain resolution
// are reported distinctly from unregistered domains.
func (r *Resolver) Resolve(ctx context.Context, input string, testnet bool) (*send.Recipient, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	if addr, err := address.ParseRawAddr(input); err == nil {
		return r.withMemoFlag(ctx, &send.Recipient{Kind: send.RecipientRaw, Address: addr}), nil
	}

	if addr, err := address.ParseAddr(input); err == nil {
		if addr.IsTestnetOnly() != testnet {
			return nil, fmt.Errorf("address network flag does not match wallet network: %w", connect.ErrUnknownNetwork)
		}
		return r.withMemoFlag(ctx, &send.Recipient{Kind: send.RecipientFriendly, Address: addr}), nil
	}

	if !looksLikeDomain(input) {
		return nil, nil
	}
	domain := strings.ToLower(input)
	addr, err := r.dns.ResolveDomain(ctx, domain, testnet)
	if errors.Is(err, sources.ErrDomainNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve domain %q: %w", domain, connect.ErrNetworkFailure)
	}
	return r.withMemoFlag(ctx, &send.Recipient{Kind: send.RecipientDomain, Address: addr, Domain: domain}), nil
}

// withMemoFlag marks recipients the known-accounts list flags as requiring a
// memo. The list is auxiliary: a failed lookup defaults to memo-not-required
// instead of blocking resolution.
func (r *Resolver) withMemoFlag(ctx context.Context, rec *send.Recipient) *send.Recipient {
	if r.known == nil {
		return rec
	}
	accounts, err := r.known.KnownAccounts(ctx)
	if err != nil {
		r.log.WithError(err).Debug("known accounts lookup failed, defaulting memo-required to false")
		return rec
	}
	raw := rec.AddressRaw()
	for _, acct := range accounts {
		if acct.Address == raw {
			rec.MemoRequired = acct.RequireMemo
			break
		}
	}
	return rec
}

func looksLikeDomain(input string) bool {
	if len(input) < 3 || strings.ContainsAny(input, " \t\n") {
		return false
	}
	dot := strings.Index(input, ".")
	return dot > 0 && dot < len(input)-1
}
