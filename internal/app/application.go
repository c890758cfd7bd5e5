package app

import (
	"context"
	"fmt"
	"time"

	"github.com/keeperstack/wallet_bridge/internal/app/events"
	"github.com/keeperstack/wallet_bridge/internal/app/router"
	"github.com/keeperstack/wallet_bridge/internal/app/services/amount"
	"github.com/keeperstack/wallet_bridge/internal/app/services/balance"
	"github.com/keeperstack/wallet_bridge/internal/app/services/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/services/manifest"
	"github.com/keeperstack/wallet_bridge/internal/app/services/rates"
	"github.com/keeperstack/wallet_bridge/internal/app/services/recipient"
	sendsvc "github.com/keeperstack/wallet_bridge/internal/app/services/send"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/app/storage"
	"github.com/keeperstack/wallet_bridge/internal/app/storage/memory"
	"github.com/keeperstack/wallet_bridge/internal/app/system"
	"github.com/keeperstack/wallet_bridge/internal/httputil"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Connections storage.ConnectionStore
}

// Collaborators are the external dependencies the protocol services talk to:
// the chain indexer, the user-facing confirmation surface and the wallet
// directory.
type Collaborators struct {
	Wallets   sources.WalletDirectory
	Balances  sources.BalanceSource
	DNS       sources.DNSResolver
	Rates     sources.RateSource
	Known     sources.KnownAccountsSource
	Submitter sources.Submitter
	Surface   sources.ConfirmationSurface

	// ManifestCache is optional; nil disables manifest caching.
	ManifestCache manifest.Cache
}

// Options tune service behaviour. Zero values pick sensible defaults.
type Options struct {
	DisplayCurrency  string
	ManifestTimeout  time.Duration
	ManifestCacheTTL time.Duration
	RatesSchedule    string
	RateCurrencies   []string
	DispatcherBuffer int
}

// Application ties the protocol services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Negotiator *connect.Negotiator
	Sender     *sendsvc.Service
	Router     *router.Router
	Dispatcher *router.Dispatcher
	Rates      *rates.Store
	Events     *events.Bus

	Connections storage.ConnectionStore
	Wallets     sources.WalletDirectory
}

// New builds a fully initialised application.
func New(stores Stores, collab Collaborators, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if collab.Wallets == nil || collab.Balances == nil || collab.DNS == nil ||
		collab.Rates == nil || collab.Submitter == nil || collab.Surface == nil {
		return nil, fmt.Errorf("missing collaborator")
	}
	if stores.Connections == nil {
		stores.Connections = memory.New()
	}
	if opts.ManifestTimeout <= 0 {
		opts.ManifestTimeout = 10 * time.Second
	}
	if opts.ManifestCacheTTL <= 0 {
		opts.ManifestCacheTTL = 5 * time.Minute
	}
	if len(opts.RateCurrencies) == 0 {
		opts.RateCurrencies = []string{"USD"}
	}

	manager := system.NewManager(log)
	bus := events.NewBus()

	manifestClient := httputil.NewClient(httputil.ClientConfig{Timeout: opts.ManifestTimeout})
	manifests := manifest.NewLoader(manifestClient, collab.ManifestCache, opts.ManifestCacheTTL, log)

	rateStore := rates.NewStore()
	refresher := rates.NewRefresher(rateStore, collab.Rates, opts.RateCurrencies, opts.RatesSchedule, log)

	negotiator := connect.NewNegotiator(stores.Connections, manifests, collab.Surface, bus, log)
	resolver := recipient.NewResolver(collab.DNS, collab.Known, log)
	converter := amount.NewConverter(rateStore, collab.Balances, log)
	guard := balance.NewGuard(collab.Balances, log)

	sender := sendsvc.NewService(
		stores.Connections,
		collab.Wallets,
		resolver,
		converter,
		guard,
		collab.Surface,
		collab.Submitter,
		opts.DisplayCurrency,
		log,
	)

	dispatcher := router.NewDispatcher(opts.DispatcherBuffer, log)
	rtr := router.New(negotiator, sender, collab.Wallets, dispatcher, log)

	for _, svc := range []system.Service{dispatcher, refresher} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:     manager,
		log:         log,
		Negotiator:  negotiator,
		Sender:      sender,
		Router:      rtr,
		Dispatcher:  dispatcher,
		Rates:       rateStore,
		Events:      bus,
		Connections: stores.Connections,
		Wallets:     collab.Wallets,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
