package storage

import (
	"context"
	"errors"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("record not found")

// ConnectionStore persists granted app sessions, keyed by (wallet, origin).
// Implementations serialize writes so two concurrent commits for the same
// key never leave more than one record; Put is last-writer-wins.
type ConnectionStore interface {
	Get(ctx context.Context, walletID, origin string) (connect.ConnectedApp, error)
	Put(ctx context.Context, app connect.ConnectedApp) error
	Remove(ctx context.Context, walletID, origin string) error
	ListAll(ctx context.Context, walletID string) ([]connect.ConnectedApp, error)
}
