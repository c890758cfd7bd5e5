package rates

import (
	"context"
	"errors"
	"testing"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
)

type rateSourceStub struct {
	rates map[string]wallet.Rate
	err   error
	calls int
}

func (s *rateSourceStub) NativeRates(context.Context, []string) (map[string]wallet.Rate, error) {
	s.calls++
	return s.rates, s.err
}

func TestStoreRateNormalizesCurrency(t *testing.T) {
	s := NewStore()
	s.Replace(map[string]wallet.Rate{"usd": {Currency: "USD", Price: "2.35"}})

	for _, currency := range []string{"usd", "USD", "Usd"} {
		r, ok := s.Rate(currency)
		if !ok || r.Price != "2.35" {
			t.Fatalf("Rate(%q) = %+v, %v", currency, r, ok)
		}
	}
	if _, ok := s.Rate("EUR"); ok {
		t.Fatal("missing currency reported present")
	}
}

func TestRefresherPopulatesStoreOnStart(t *testing.T) {
	store := NewStore()
	source := &rateSourceStub{rates: map[string]wallet.Rate{"USD": {Currency: "USD", Price: "5"}}}
	r := NewRefresher(store, source, []string{"USD"}, "@every 1h", nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop(context.Background())

	if source.calls == 0 {
		t.Fatal("start did not refresh immediately")
	}
	if rate, ok := store.Rate("USD"); !ok || rate.Price != "5" {
		t.Fatalf("rate after start = %+v, %v", rate, ok)
	}
}

func TestRefreshFailureKeepsPreviousTable(t *testing.T) {
	store := NewStore()
	store.Replace(map[string]wallet.Rate{"USD": {Currency: "USD", Price: "5"}})

	source := &rateSourceStub{err: errors.New("indexer down")}
	r := NewRefresher(store, source, []string{"USD"}, "@every 1h", nil)
	r.refresh(context.Background())

	if rate, ok := store.Rate("USD"); !ok || rate.Price != "5" {
		t.Fatalf("previous table lost after failed refresh: %+v, %v", rate, ok)
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := NewRefresher(NewStore(), &rateSourceStub{}, nil, "", nil)
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
}
