// Package connect defines the session domain model shared by the negotiator,
// the router and the stores: app manifests, granted sessions and the stable
// protocol error taxonomy.
package connect

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProtocolVersion is the bridge protocol version this core speaks.
const ProtocolVersion = 2

// Manifest is the descriptor an application presents when requesting a
// wallet session.
type Manifest struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// Validate checks the fields an app must provide to be presentable.
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.URL) == "" {
		return fmt.Errorf("manifest url is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest name is required")
	}
	return nil
}

// Origin returns the app origin the manifest declares.
func (m Manifest) Origin() string { return m.URL }

// ConnectedApp is a granted session between one wallet and one app origin.
// Records are immutable once stored; a re-connect replaces the record
// wholesale.
type ConnectedApp struct {
	WalletID   string
	Origin     string
	Manifest   Manifest
	SessionID  string
	PublicKey  []byte
	PrivateKey []byte
	CreatedAt  time.Time
}

// Key returns the unique (wallet, origin) identity of the session.
func (a ConnectedApp) Key() string { return a.WalletID + "|" + a.Origin }

// SessionParameters is what the wallet hands back to an app on a successful
// connect.
type SessionParameters struct {
	ProtocolVersion int    `json:"protocolVersion"`
	ClientID        string `json:"clientId"`
	Payload         string `json:"payload,omitempty"`
	ManifestURL     string `json:"manifestUrl"`
}

// ErrorCode is the stable wire-level error enumeration.
type ErrorCode int

const (
	CodeUnknownError        ErrorCode = 0
	CodeBadRequest          ErrorCode = 1
	CodeAppManifestNotFound ErrorCode = 2
	CodeUnknownApp          ErrorCode = 100
	CodeUserRejects         ErrorCode = 300
	CodeUnknownNetwork      ErrorCode = 400
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeBadRequest:
		return "badRequest"
	case CodeAppManifestNotFound:
		return "appManifestNotFound"
	case CodeUnknownApp:
		return "unknownApp"
	case CodeUserRejects:
		return "userRejects"
	case CodeUnknownNetwork:
		return "unknownNetwork"
	default:
		return "unknownError"
	}
}

// Sentinel errors for the recoverable outcome taxonomy. User cancellation is
// a normal outcome, not a fault; it still travels as an error value so every
// path produces exactly one terminal result.
var (
	ErrManifestUnavailable  = errors.New("app manifest unavailable")
	ErrUnknownApp           = errors.New("no session for requesting app")
	ErrUserCancelled        = errors.New("user cancelled")
	ErrInvalidRecipient     = errors.New("recipient did not resolve")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrUnknownNetwork       = errors.New("network flag mismatch")
	ErrNetworkFailure       = errors.New("transient network failure")
)

// CodeForError maps a terminal error to its wire code.
func CodeForError(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeUnknownError
	case errors.Is(err, ErrManifestUnavailable):
		return CodeAppManifestNotFound
	case errors.Is(err, ErrUnknownApp):
		return CodeUnknownApp
	case errors.Is(err, ErrUserCancelled):
		return CodeUserRejects
	case errors.Is(err, ErrUnknownNetwork):
		return CodeUnknownNetwork
	case errors.Is(err, ErrInvalidRecipient), errors.Is(err, ErrInsufficientBalance):
		return CodeBadRequest
	default:
		return CodeUnknownError
	}
}
