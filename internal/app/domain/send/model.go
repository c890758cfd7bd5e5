// Package send defines the transaction-side domain model: resolved
// recipients, inbound send requests and confirmation outcomes.
package send

import (
	"fmt"

	"github.com/xssnick/tonutils-go/address"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
)

func rawString(a *address.Address) string {
	return fmt.Sprintf("%d:%x", a.Workchain(), a.Data())
}

// RecipientKind discriminates how the recipient input was resolved.
type RecipientKind string

const (
	RecipientRaw      RecipientKind = "raw"
	RecipientFriendly RecipientKind = "friendly"
	RecipientDomain   RecipientKind = "domain"
)

// Recipient is a validated on-chain payment target.
type Recipient struct {
	Kind    RecipientKind
	Address *address.Address
	Domain  string // set for RecipientDomain only

	// MemoRequired marks recipients (typically exchange deposit addresses)
	// that silently drop transfers without a memo.
	MemoRequired bool
}

// AddressRaw returns the canonical raw form of the recipient address.
func (r Recipient) AddressRaw() string {
	if r.Address == nil {
		return ""
	}
	return rawString(r.Address)
}

// SendRequest is one inbound transfer request from a connected app. The
// recipient arrives as text and is resolved by the pipeline.
type SendRequest struct {
	ID        string
	Origin    string
	WalletID  string
	Recipient string
	Token     wallet.Token
	Amount    wallet.Amount
	Payload   string
}

// ConfirmationStatus discriminates the ConfirmationResult variant.
type ConfirmationStatus string

const (
	ConfirmationAccepted ConfirmationStatus = "accepted"
	ConfirmationRejected ConfirmationStatus = "rejected"
	ConfirmationErrored  ConfirmationStatus = "errored"
)

// ConfirmationResult is the terminal outcome of one confirmation pipeline
// run.
type ConfirmationResult struct {
	Status ConfirmationStatus
	TxHash string
	Code   connect.ErrorCode
}

// Accepted builds a success outcome carrying the broadcast transaction hash.
func Accepted(txHash string) ConfirmationResult {
	return ConfirmationResult{Status: ConfirmationAccepted, TxHash: txHash}
}

// Rejected builds the user-declined outcome.
func Rejected() ConfirmationResult {
	return ConfirmationResult{Status: ConfirmationRejected, Code: connect.CodeUserRejects}
}

// Errored builds a failure outcome with its wire code.
func Errored(code connect.ErrorCode) ConfirmationResult {
	return ConfirmationResult{Status: ConfirmationErrored, Code: code}
}
