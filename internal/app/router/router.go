// Package router is the protocol entry point. It demultiplexes inbound
// messages to the connect negotiator or the confirmation pipeline and
// guarantees exactly one response per request, delivered on the dispatcher
// goroutine.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/send"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/metrics"
	connectsvc "github.com/keeperstack/wallet_bridge/internal/app/services/connect"
	sendsvc "github.com/keeperstack/wallet_bridge/internal/app/services/send"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Method names of the inbound protocol.
const (
	MethodConnect    = "connect"
	MethodReconnect  = "reconnect"
	MethodDisconnect = "disconnect"
	MethodSend       = "send"
)

// Request is one inbound protocol message.
type Request struct {
	ID       string          `json:"id"`
	Method   string          `json:"method"`
	WalletID string          `json:"walletId"`
	Params   json.RawMessage `json:"params"`
}

// ErrorBody carries the stable wire error code.
type ErrorBody struct {
	Code    connect.ErrorCode `json:"code"`
	Message string            `json:"message"`
}

// Response is the reply to one Request.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

type connectParams struct {
	ManifestURL     string `json:"manifestUrl"`
	ProtocolVersion int    `json:"protocolVersion"`
	Payload         string `json:"payload"`
}

type appParams struct {
	Origin string `json:"origin"`
}

type sendParams struct {
	Origin    string `json:"origin"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"` // base units, decimal integer
	Payload   string `json:"payload"`
	Token     struct {
		Kind             string `json:"kind"`
		ContractAddress  string `json:"contractAddress"`
		FractionalDigits int    `json:"fractionalDigits"`
		Symbol           string `json:"symbol"`
	} `json:"token"`
}

// Router demultiplexes protocol messages.
type Router struct {
	negotiator *connectsvc.Negotiator
	sender     *sendsvc.Service
	wallets    sources.WalletDirectory
	dispatcher *Dispatcher
	log        *logger.Logger
}

// New constructs a router.
func New(negotiator *connectsvc.Negotiator, sender *sendsvc.Service, wallets sources.WalletDirectory, dispatcher *Dispatcher, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefault("router")
	}
	return &Router{
		negotiator: negotiator,
		sender:     sender,
		wallets:    wallets,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Route handles one inbound message. respond is invoked exactly once, on
// the dispatcher goroutine, for every request including malformed ones.
func (r *Router) Route(ctx context.Context, req Request, respond func(Response)) {
	var once sync.Once
	deliver := func(resp Response) {
		once.Do(func() {
			outcome := "success"
			if resp.Error != nil {
				outcome = resp.Error.Code.String()
			}
			metrics.ObserveRequest(req.Method, outcome)
			r.dispatcher.Enqueue(func() { respond(resp) })
		})
	}

	switch req.Method {
	case MethodConnect:
		r.routeConnect(ctx, req, deliver)
	case MethodReconnect:
		r.routeReconnect(ctx, req, deliver)
	case MethodDisconnect:
		r.routeDisconnect(ctx, req, deliver)
	case MethodSend:
		r.routeSend(ctx, req, deliver)
	default:
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "unknown method "+req.Method))
	}
}

func (r *Router) routeConnect(ctx context.Context, req Request, deliver func(Response)) {
	var p connectParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.ManifestURL == "" {
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "malformed connect params"))
		return
	}
	w, ok := r.wallets.Wallet(ctx, req.WalletID)
	if !ok {
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "unknown wallet"))
		return
	}

	go func() {
		params, err := r.negotiator.Connect(ctx, connectsvc.ConnectRequest{
			Wallet:          w,
			ManifestURL:     p.ManifestURL,
			ProtocolVersion: p.ProtocolVersion,
			Payload:         p.Payload,
		})
		if err != nil {
			deliver(errorResponseFor(req.ID, err))
			return
		}
		deliver(Response{ID: req.ID, Result: params})
	}()
}

func (r *Router) routeReconnect(ctx context.Context, req Request, deliver func(Response)) {
	var p appParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Origin == "" {
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "malformed reconnect params"))
		return
	}
	params, err := r.negotiator.Reconnect(ctx, req.WalletID, p.Origin)
	if err != nil {
		deliver(errorResponseFor(req.ID, err))
		return
	}
	deliver(Response{ID: req.ID, Result: params})
}

func (r *Router) routeDisconnect(ctx context.Context, req Request, deliver func(Response)) {
	var p appParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Origin == "" {
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "malformed disconnect params"))
		return
	}
	if err := r.negotiator.Disconnect(ctx, req.WalletID, p.Origin); err != nil {
		deliver(errorResponseFor(req.ID, err))
		return
	}
	deliver(Response{ID: req.ID, Result: map[string]bool{"disconnected": true}})
}

func (r *Router) routeSend(ctx context.Context, req Request, deliver func(Response)) {
	var p sendParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Origin == "" || p.Recipient == "" {
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "malformed send params"))
		return
	}

	value, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok || value.Sign() < 0 {
		deliver(errorResponse(req.ID, connect.CodeBadRequest, "malformed amount"))
		return
	}

	token := wallet.Native()
	if p.Token.Kind == string(wallet.TokenFungible) {
		token = wallet.Fungible(p.Token.ContractAddress, p.Token.FractionalDigits, p.Token.Symbol)
	}

	r.sender.Process(ctx, send.SendRequest{
		ID:        req.ID,
		Origin:    p.Origin,
		WalletID:  req.WalletID,
		Recipient: p.Recipient,
		Token:     token,
		Amount:    wallet.NewAmount(value, token.FractionalDigits),
		Payload:   p.Payload,
	}, func(res send.ConfirmationResult) {
		deliver(responseForResult(req.ID, res))
	})
}

func responseForResult(id string, res send.ConfirmationResult) Response {
	switch res.Status {
	case send.ConfirmationAccepted:
		return Response{ID: id, Result: map[string]string{"txHash": res.TxHash}}
	case send.ConfirmationRejected:
		return errorResponse(id, connect.CodeUserRejects, "user rejected the request")
	default:
		return errorResponse(id, res.Code, "send failed")
	}
}

func errorResponse(id string, code connect.ErrorCode, message string) Response {
	return Response{ID: id, Error: &ErrorBody{Code: code, Message: message}}
}

func errorResponseFor(id string, err error) Response {
	code := connect.CodeForError(err)
	message := code.String()
	if errors.Is(err, connect.ErrUserCancelled) {
		message = "user rejected the request"
	}
	return Response{ID: id, Error: &ErrorBody{Code: code, Message: message}}
}
