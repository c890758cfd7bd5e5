package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. The unique
// (wallet_id, origin) key plus upsert semantics give the serialized
// last-writer-wins behaviour the ConnectionStore contract requires.
type Store struct {
	db *sql.DB
}

var _ storage.ConnectionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, walletID, origin string) (connect.ConnectedApp, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_id, origin, manifest, session_id, public_key, private_key, created_at
		FROM connected_apps
		WHERE wallet_id = $1 AND origin = $2
	`, walletID, origin)
	return scanApp(row)
}

func (s *Store) Put(ctx context.Context, app connect.ConnectedApp) error {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	manifestJSON, err := json.Marshal(app.Manifest)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connected_apps (wallet_id, origin, manifest, session_id, public_key, private_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (wallet_id, origin) DO UPDATE
		SET manifest = EXCLUDED.manifest,
		    session_id = EXCLUDED.session_id,
		    public_key = EXCLUDED.public_key,
		    private_key = EXCLUDED.private_key,
		    created_at = EXCLUDED.created_at
	`, app.WalletID, app.Origin, manifestJSON, app.SessionID, app.PublicKey, app.PrivateKey, app.CreatedAt)
	return err
}

func (s *Store) Remove(ctx context.Context, walletID, origin string) error {
	// Removing an absent record is a no-op by contract.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM connected_apps
		WHERE wallet_id = $1 AND origin = $2
	`, walletID, origin)
	return err
}

func (s *Store) ListAll(ctx context.Context, walletID string) ([]connect.ConnectedApp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, origin, manifest, session_id, public_key, private_key, created_at
		FROM connected_apps
		WHERE wallet_id = $1
		ORDER BY origin
	`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []connect.ConnectedApp
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApp(row rowScanner) (connect.ConnectedApp, error) {
	var (
		app         connect.ConnectedApp
		manifestRaw []byte
	)
	err := row.Scan(&app.WalletID, &app.Origin, &manifestRaw, &app.SessionID, &app.PublicKey, &app.PrivateKey, &app.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return connect.ConnectedApp{}, storage.ErrNotFound
	}
	if err != nil {
		return connect.ConnectedApp{}, err
	}
	if err := json.Unmarshal(manifestRaw, &app.Manifest); err != nil {
		return connect.ConnectedApp{}, err
	}
	return app, nil
}
