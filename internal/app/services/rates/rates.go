// Package rates maintains the native-token price table consulted for fiat
// previews. The table is refreshed on a schedule; a failed refresh keeps the
// previous snapshot rather than serving nothing.
package rates

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/app/system"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Store is a concurrency-safe rate table keyed by currency code.
type Store struct {
	mu    sync.RWMutex
	rates map[string]wallet.Rate
}

// NewStore creates an empty table.
func NewStore() *Store {
	return &Store{rates: make(map[string]wallet.Rate)}
}

// Rate returns the cached rate for a currency, if present.
func (s *Store) Rate(currency string) (wallet.Rate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rates[strings.ToUpper(currency)]
	return r, ok
}

// Replace swaps in a full new table.
func (s *Store) Replace(rates map[string]wallet.Rate) {
	normalized := make(map[string]wallet.Rate, len(rates))
	for currency, r := range rates {
		normalized[strings.ToUpper(currency)] = r
	}

	s.mu.Lock()
	s.rates = normalized
	s.mu.Unlock()
}

// Refresher periodically pulls fresh native rates into a Store.
type Refresher struct {
	store      *Store
	source     sources.RateSource
	currencies []string
	schedule   string
	cron       *cron.Cron
	log        *logger.Logger
}

var _ system.Service = (*Refresher)(nil)

// NewRefresher constructs a refresher. schedule uses cron syntax and
// defaults to "@every 1m".
func NewRefresher(store *Store, source sources.RateSource, currencies []string, schedule string, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("rates")
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	if len(currencies) == 0 {
		currencies = []string{"USD"}
	}
	return &Refresher{
		store:      store,
		source:     source,
		currencies: currencies,
		schedule:   schedule,
		log:        log,
	}
}

func (r *Refresher) Name() string { return "rates-refresher" }

// Start performs one immediate refresh and schedules the rest.
func (r *Refresher) Start(ctx context.Context) error {
	r.refresh(ctx)

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.refresh(refreshCtx)
	}); err != nil {
		return err
	}
	c.Start()
	r.cron = c

	r.log.WithField("schedule", r.schedule).Info("rates refresher started")
	return nil
}

// Stop halts the schedule, waiting for an in-flight refresh to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	done := r.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	rates, err := r.source.NativeRates(ctx, r.currencies)
	if err != nil {
		r.log.WithError(err).Warn("rate refresh failed, keeping previous table")
		return
	}
	r.store.Replace(rates)
	r.log.WithField("currencies", len(rates)).Debug("rates refreshed")
}
