// Package tonapi implements the chain-side collaborator interfaces over the
// indexer HTTP API: balance snapshots, name-service resolution, price rates,
// the known-accounts list and transaction submission.
package tonapi

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xssnick/tonutils-go/address"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/httputil"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

const (
	maxResponseBytes      = 4 << 20
	knownAccountsCacheTTL = 15 * time.Minute
)

// Config configures the client.
type Config struct {
	BaseURL           string
	KnownAccountsURL  string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks to the indexer API.
type Client struct {
	http             *httputil.Client
	knownAccountsURL string
	log              *logger.Logger

	knownMu      sync.Mutex
	knownCached  []sources.KnownAccount
	knownFetched time.Time
}

var (
	_ sources.BalanceSource       = (*Client)(nil)
	_ sources.DNSResolver         = (*Client)(nil)
	_ sources.RateSource          = (*Client)(nil)
	_ sources.KnownAccountsSource = (*Client)(nil)
	_ sources.Submitter           = (*Client)(nil)
)

// New constructs a client.
func New(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("tonapi")
	}
	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
		knownAccountsURL: cfg.KnownAccountsURL,
		log:              log,
	}
}

// Balance fetches the full balance snapshot: native amount plus fungible
// holdings with their quoted rates.
func (c *Client) Balance(ctx context.Context, w wallet.Wallet) (wallet.Balance, error) {
	resp, err := c.http.Get(ctx, "/v2/accounts/"+url.PathEscape(w.Address))
	if err != nil {
		return wallet.Balance{}, fmt.Errorf("fetch account: %w", err)
	}
	body, err := httputil.ReadAll(resp, maxResponseBytes)
	if err != nil {
		return wallet.Balance{}, fmt.Errorf("fetch account: %w", err)
	}

	native, err := parseUnits(gjson.GetBytes(body, "balance").String(), wallet.NativeFractionalDigits)
	if err != nil {
		return wallet.Balance{}, fmt.Errorf("parse native balance: %w", err)
	}
	bal := wallet.Balance{Native: native}

	resp, err = c.http.Get(ctx, "/v2/accounts/"+url.PathEscape(w.Address)+"/jettons?currencies=usd")
	if err != nil {
		return wallet.Balance{}, fmt.Errorf("fetch jettons: %w", err)
	}
	body, err = httputil.ReadAll(resp, maxResponseBytes)
	if err != nil {
		return wallet.Balance{}, fmt.Errorf("fetch jettons: %w", err)
	}

	for _, entry := range gjson.GetBytes(body, "balances").Array() {
		token := wallet.Fungible(
			entry.Get("jetton.address").String(),
			int(entry.Get("jetton.decimals").Int()),
			entry.Get("jetton.symbol").String(),
		)
		quantity, err := parseUnits(entry.Get("balance").String(), token.FractionalDigits)
		if err != nil {
			c.log.WithError(err).WithField("token", token.Symbol).Warn("skipping unparsable jetton balance")
			continue
		}
		rates := make(map[string]wallet.Rate)
		entry.Get("price.prices").ForEach(func(currency, price gjson.Result) bool {
			code := strings.ToUpper(currency.String())
			// Raw preserves the quoted decimal text; prices never pass
			// through floating point.
			rates[code] = wallet.Rate{Currency: code, Price: price.Raw}
			return true
		})
		bal.Fungibles = append(bal.Fungibles, wallet.FungibleBalance{
			Token:    token,
			Quantity: quantity,
			Rates:    rates,
		})
	}
	return bal, nil
}

// ResolveDomain maps a name-service domain to its wallet address. A 404
// means the domain is not registered; anything else is a transport failure.
func (c *Client) ResolveDomain(ctx context.Context, domain string, testnet bool) (*address.Address, error) {
	resp, err := c.http.Get(ctx, "/v2/dns/"+url.PathEscape(domain)+"/resolve")
	if err != nil {
		return nil, fmt.Errorf("resolve domain: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, sources.ErrDomainNotFound
	}
	body, err := httputil.ReadAll(resp, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("resolve domain: %w", err)
	}

	raw := gjson.GetBytes(body, "wallet.address").String()
	if raw == "" {
		return nil, sources.ErrDomainNotFound
	}
	addr, err := address.ParseRawAddr(raw)
	if err != nil {
		return nil, fmt.Errorf("parse resolved address %q: %w", raw, err)
	}
	return addr, nil
}

// NativeRates fetches price rates for the native token.
func (c *Client) NativeRates(ctx context.Context, currencies []string) (map[string]wallet.Rate, error) {
	query := strings.ToLower(strings.Join(currencies, ","))
	resp, err := c.http.Get(ctx, "/v2/rates?tokens=ton&currencies="+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	body, err := httputil.ReadAll(resp, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}

	rates := make(map[string]wallet.Rate)
	gjson.GetBytes(body, "rates.TON.prices").ForEach(func(currency, price gjson.Result) bool {
		code := strings.ToUpper(currency.String())
		rates[code] = wallet.Rate{Currency: code, Price: price.Raw}
		return true
	})
	return rates, nil
}

// KnownAccounts fetches the curated known-accounts list, serving a cached
// copy between refreshes.
func (c *Client) KnownAccounts(ctx context.Context) ([]sources.KnownAccount, error) {
	c.knownMu.Lock()
	if c.knownCached != nil && time.Since(c.knownFetched) < knownAccountsCacheTTL {
		cached := c.knownCached
		c.knownMu.Unlock()
		return cached, nil
	}
	c.knownMu.Unlock()

	if c.knownAccountsURL == "" {
		return nil, nil
	}
	resp, err := c.http.Get(ctx, c.knownAccountsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch known accounts: %w", err)
	}
	body, err := httputil.ReadAll(resp, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch known accounts: %w", err)
	}

	var accounts []sources.KnownAccount
	for _, entry := range gjson.ParseBytes(body).Array() {
		accounts = append(accounts, sources.KnownAccount{
			Address:     entry.Get("address").String(),
			Name:        entry.Get("name").String(),
			RequireMemo: entry.Get("require_memo").Bool(),
		})
	}

	c.knownMu.Lock()
	c.knownCached = accounts
	c.knownFetched = time.Now()
	c.knownMu.Unlock()
	return accounts, nil
}

// Submit broadcasts a prepared transaction and returns its hash.
func (c *Client) Submit(ctx context.Context, w wallet.Wallet, payload string) (string, error) {
	resp, err := c.http.Post(ctx, "/v2/blockchain/message", map[string]string{"boc": payload})
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	body, err := httputil.ReadAll(resp, maxResponseBytes)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	hash := gjson.GetBytes(body, "hash").String()
	if hash == "" {
		return "", fmt.Errorf("submit transaction: broadcast response carried no hash")
	}
	return hash, nil
}

func parseUnits(s string, fractionalDigits int) (wallet.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return wallet.Zero(fractionalDigits), nil
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok || value.Sign() < 0 {
		return wallet.Amount{}, fmt.Errorf("invalid base-unit amount %q", s)
	}
	return wallet.NewAmount(value, fractionalDigits), nil
}
