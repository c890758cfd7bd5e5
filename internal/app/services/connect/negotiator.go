// Package connect orchestrates the connect/reconnect/disconnect handshake
// between an external application and a wallet.
package connect

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/events"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/app/storage"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// State names one phase of a connect negotiation.
type State string

const (
	StateIdle                 State = "idle"
	StateManifestLoading      State = "manifest_loading"
	StateAwaitingConfirmation State = "awaiting_user_confirmation"
	StateSessionCommitted     State = "session_committed"
	StateManifestFailed       State = "manifest_failed"
	StateCancelled            State = "cancelled"
)

// ConnectRequest is one inbound connect attempt.
type ConnectRequest struct {
	Wallet          wallet.Wallet
	ManifestURL     string
	ProtocolVersion int
	Payload         string
}

// Negotiator drives the connect state machine. Independent negotiations
// share no state beyond the connection store.
type Negotiator struct {
	store     storage.ConnectionStore
	manifests sources.ManifestSource
	surface   sources.ConfirmationSurface
	bus       *events.Bus
	log       *logger.Logger
}

// NewNegotiator constructs a negotiator. bus may be nil.
func NewNegotiator(store storage.ConnectionStore, manifests sources.ManifestSource, surface sources.ConfirmationSurface, bus *events.Bus, log *logger.Logger) *Negotiator {
	if log == nil {
		log = logger.NewDefault("connect")
	}
	return &Negotiator{store: store, manifests: manifests, surface: surface, bus: bus, log: log}
}

type negotiation struct {
	state State
	log   *logger.Logger
}

func (n *negotiation) to(next State) {
	n.log.WithField("from", string(n.state)).WithField("to", string(next)).Debug("negotiation transition")
	n.state = next
}

// Connect runs a full negotiation: manifest load, user confirmation, then a
// single committed store write. No store mutation happens on any failure
// path.
func (n *Negotiator) Connect(ctx context.Context, req ConnectRequest) (connect.SessionParameters, error) {
	run := &negotiation{state: StateIdle, log: n.log.WithField("wallet_id", req.Wallet.ID)}

	run.to(StateManifestLoading)
	m, err := n.manifests.FetchManifest(ctx, req.ManifestURL)
	if err != nil {
		run.to(StateManifestFailed)
		if errors.Is(err, connect.ErrManifestUnavailable) {
			return connect.SessionParameters{}, err
		}
		return connect.SessionParameters{}, fmt.Errorf("load manifest: %v: %w", err, connect.ErrManifestUnavailable)
	}

	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return connect.SessionParameters{}, fmt.Errorf("generate session keys: %w", err)
	}
	params := connect.SessionParameters{
		ProtocolVersion: req.ProtocolVersion,
		ClientID:        uuid.NewString(),
		Payload:         req.Payload,
		ManifestURL:     req.ManifestURL,
	}

	run.to(StateAwaitingConfirmation)
	approved, err := n.surface.ConfirmConnect(ctx, sources.ConnectPrompt{Wallet: req.Wallet, Manifest: m})
	if err != nil {
		run.to(StateCancelled)
		return connect.SessionParameters{}, fmt.Errorf("confirmation surface: %w", err)
	}
	if !approved {
		run.to(StateCancelled)
		return connect.SessionParameters{}, connect.ErrUserCancelled
	}

	app := connect.ConnectedApp{
		WalletID:   req.Wallet.ID,
		Origin:     m.Origin(),
		Manifest:   m,
		SessionID:  params.ClientID,
		PublicKey:  publicKey[:],
		PrivateKey: privateKey[:],
		CreatedAt:  time.Now().UTC(),
	}
	if err := n.store.Put(ctx, app); err != nil {
		return connect.SessionParameters{}, fmt.Errorf("commit session: %w", err)
	}

	run.to(StateSessionCommitted)
	n.publish(events.Event{Kind: events.SessionCommitted, WalletID: app.WalletID, Origin: app.Origin, App: app})
	n.log.WithField("wallet_id", app.WalletID).WithField("origin", app.Origin).Info("session committed")
	return params, nil
}

// Reconnect reuses an existing session. It bypasses manifest loading and
// never mutates the store.
func (n *Negotiator) Reconnect(ctx context.Context, walletID, origin string) (connect.SessionParameters, error) {
	app, err := n.store.Get(ctx, walletID, origin)
	if errors.Is(err, storage.ErrNotFound) {
		return connect.SessionParameters{}, connect.ErrUnknownApp
	}
	if err != nil {
		return connect.SessionParameters{}, fmt.Errorf("lookup session: %w", err)
	}
	return connect.SessionParameters{
		ProtocolVersion: connect.ProtocolVersion,
		ClientID:        app.SessionID,
		ManifestURL:     app.Manifest.URL,
	}, nil
}

// Disconnect removes the session. Removing an absent record is a successful
// no-op; the absence of a session is not an error for teardown.
func (n *Negotiator) Disconnect(ctx context.Context, walletID, origin string) error {
	if err := n.store.Remove(ctx, walletID, origin); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	n.publish(events.Event{Kind: events.SessionRemoved, WalletID: walletID, Origin: origin})
	return nil
}

// Connections lists the sessions granted by a wallet.
func (n *Negotiator) Connections(ctx context.Context, walletID string) ([]connect.ConnectedApp, error) {
	return n.store.ListAll(ctx, walletID)
}

func (n *Negotiator) publish(ev events.Event) {
	if n.bus != nil {
		n.bus.Publish(ev)
	}
}
