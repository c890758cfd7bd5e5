// Package wallets provides the wallet directory backing protocol requests.
package wallets

import (
	"context"
	"sort"
	"sync"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
)

// StaticDirectory serves a fixed set of wallets loaded at startup.
type StaticDirectory struct {
	mu      sync.RWMutex
	wallets map[string]wallet.Wallet
}

var _ sources.WalletDirectory = (*StaticDirectory)(nil)

// NewStaticDirectory builds a directory from the given wallets.
func NewStaticDirectory(list []wallet.Wallet) *StaticDirectory {
	d := &StaticDirectory{wallets: make(map[string]wallet.Wallet, len(list))}
	for _, w := range list {
		d.wallets[w.ID] = w
	}
	return d
}

// Wallet looks up a wallet by ID.
func (d *StaticDirectory) Wallet(_ context.Context, id string) (wallet.Wallet, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.wallets[id]
	return w, ok
}

// Add registers or replaces a wallet.
func (d *StaticDirectory) Add(w wallet.Wallet) {
	d.mu.Lock()
	d.wallets[w.ID] = w
	d.mu.Unlock()
}

// List returns all wallets sorted by ID.
func (d *StaticDirectory) List() []wallet.Wallet {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]wallet.Wallet, 0, len(d.wallets))
	for _, w := range d.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
