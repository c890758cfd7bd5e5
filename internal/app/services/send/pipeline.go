// Package send drives an inbound transfer request through session
// validation, recipient/amount/balance resolution, user confirmation and
// submission. Every request produces exactly one terminal callback; double
// invocation and silent drops are both defects.
package send

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/send"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/metrics"
	"github.com/keeperstack/wallet_bridge/internal/app/services/amount"
	"github.com/keeperstack/wallet_bridge/internal/app/services/balance"
	"github.com/keeperstack/wallet_bridge/internal/app/services/recipient"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/app/storage"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Service runs confirmation pipelines. Independent pipelines share only the
// connection store; each in-flight request is owned by the registry until
// its terminal transition.
type Service struct {
	store     storage.ConnectionStore
	wallets   sources.WalletDirectory
	resolver  *recipient.Resolver
	converter *amount.Converter
	guard     *balance.Guard
	surface   sources.ConfirmationSurface
	submitter sources.Submitter
	registry  *Registry
	currency  string
	log       *logger.Logger
}

// NewService constructs the pipeline service. currency is the display
// currency for fiat previews.
func NewService(
	store storage.ConnectionStore,
	wallets sources.WalletDirectory,
	resolver *recipient.Resolver,
	converter *amount.Converter,
	guard *balance.Guard,
	surface sources.ConfirmationSurface,
	submitter sources.Submitter,
	currency string,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("send")
	}
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		store:     store,
		wallets:   wallets,
		resolver:  resolver,
		converter: converter,
		guard:     guard,
		surface:   surface,
		submitter: submitter,
		registry:  NewRegistry(),
		currency:  currency,
		log:       log,
	}
}

// Registry exposes the active-request registry, mainly for cancellation and
// introspection.
func (s *Service) Registry() *Registry { return s.registry }

// Process validates the requesting session and, on a match, runs the
// pipeline asynchronously. complete fires exactly once on every path. The
// returned handle is nil when the request was rejected up front and no
// pipeline state was created; otherwise it permits cancellation only.
func (s *Service) Process(ctx context.Context, req send.SendRequest, complete func(send.ConfirmationResult)) *Handle {
	var once sync.Once
	done := func(res send.ConfirmationResult) {
		once.Do(func() { complete(res) })
	}

	_, err := s.store.Get(ctx, req.WalletID, req.Origin)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.WithField("origin", req.Origin).Info("send request from unknown app")
		done(send.Errored(connect.CodeUnknownApp))
		return nil
	}
	if err != nil {
		done(send.Errored(connect.CodeUnknownError))
		return nil
	}

	w, ok := s.wallets.Wallet(ctx, req.WalletID)
	if !ok {
		done(send.Errored(connect.CodeBadRequest))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{id: req.ID, cancel: cancel}
	if !s.registry.add(h) {
		cancel()
		done(send.Errored(connect.CodeBadRequest))
		return nil
	}

	metrics.PipelineStarted()
	started := time.Now()
	go func() {
		defer cancel()
		res := s.execute(runCtx, w, req)
		s.registry.remove(req.ID)
		metrics.PipelineFinished(started)
		done(res)
	}()
	return h
}

func (s *Service) execute(ctx context.Context, w wallet.Wallet, req send.SendRequest) send.ConfirmationResult {
	rec, err := s.resolver.Resolve(ctx, req.Recipient, w.Testnet)
	if err != nil {
		return send.Errored(connect.CodeForError(err))
	}
	if rec == nil {
		s.log.WithField("origin", req.Origin).Info("send recipient did not resolve")
		return send.Errored(connect.CodeBadRequest)
	}

	prompt := sources.SendPrompt{
		Wallet:     w,
		Origin:     req.Origin,
		Recipient:  *rec,
		Token:      req.Token,
		AmountText: amount.Format(req.Amount, req.Token.FractionalDigits, req.Token.Symbol),
		FiatText:   s.converter.ToDisplayCurrency(ctx, w, req.Amount, req.Token, s.currency),
		Payload:    req.Payload,
	}
	if app, err := s.store.Get(ctx, req.WalletID, req.Origin); err == nil {
		prompt.AppName = app.Manifest.Name
	}
	if avail := s.guard.Remaining(ctx, w, req.Token, req.Amount); avail.Sufficient {
		prompt.RemainingText = avail.Remaining
	}

	// Suspension point: parked on the user's decision, holding no locks.
	approved, err := s.surface.ConfirmSend(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			// The surface was dismissed or torn down; a terminal result is
			// synthesized rather than dropped.
			return send.Rejected()
		}
		return send.Errored(connect.CodeUnknownError)
	}
	if !approved {
		return send.Rejected()
	}

	txHash, err := s.submitter.Submit(ctx, w, req.Payload)
	if err != nil {
		s.log.WithError(err).WithField("origin", req.Origin).Error("transaction submission failed")
		return send.Errored(connect.CodeUnknownError)
	}
	s.log.WithField("origin", req.Origin).WithField("tx_hash", txHash).Info("transaction submitted")
	return send.Accepted(txHash)
}
