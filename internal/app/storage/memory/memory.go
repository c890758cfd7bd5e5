package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu   sync.RWMutex
	apps map[string]connect.ConnectedApp
}

var _ storage.ConnectionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{apps: make(map[string]connect.ConnectedApp)}
}

func key(walletID, origin string) string { return walletID + "|" + origin }

func (s *Store) Get(_ context.Context, walletID, origin string) (connect.ConnectedApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[key(walletID, origin)]
	if !ok {
		return connect.ConnectedApp{}, storage.ErrNotFound
	}
	return cloneApp(app), nil
}

func (s *Store) Put(_ context.Context, app connect.ConnectedApp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	s.apps[app.Key()] = cloneApp(app)
	return nil
}

func (s *Store) Remove(_ context.Context, walletID, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.apps, key(walletID, origin))
	return nil
}

func (s *Store) ListAll(_ context.Context, walletID string) ([]connect.ConnectedApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []connect.ConnectedApp
	for _, app := range s.apps {
		if app.WalletID == walletID {
			out = append(out, cloneApp(app))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out, nil
}

func cloneApp(app connect.ConnectedApp) connect.ConnectedApp {
	app.PublicKey = append([]byte(nil), app.PublicKey...)
	app.PrivateKey = append([]byte(nil), app.PrivateKey...)
	return app
}
