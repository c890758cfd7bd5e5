// Package httpapi exposes the operational REST surface: session inspection,
// disconnects, health and metrics. The dapp protocol itself rides the
// websocket bridge, not this API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/keeperstack/wallet_bridge/internal/app"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/metrics"
	"github.com/keeperstack/wallet_bridge/internal/app/services/approval"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	approvals *approval.Queue
}

// NewHandler returns a mux exposing the operational REST API. approvals may
// be nil when the embedding frontend supplies its own confirmation surface.
func NewHandler(application *app.Application, approvals *approval.Queue) http.Handler {
	h := &handler{app: application, approvals: approvals}
	mux := http.NewServeMux()
	mux.HandleFunc("/connections", h.connections)
	mux.HandleFunc("/wallets", h.wallets)
	mux.HandleFunc("/rates", h.rates)
	if approvals != nil {
		mux.HandleFunc("/approvals", h.listApprovals)
		mux.HandleFunc("/approvals/", h.decideApproval)
	}
	mux.HandleFunc("/healthz", h.health)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

type connectionView struct {
	WalletID  string `json:"wallet_id"`
	Origin    string `json:"origin"`
	AppName   string `json:"app_name"`
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
}

// connections serves GET (list) and DELETE (disconnect). Origins are full
// URLs, so they travel as query parameters rather than path segments.
func (h *handler) connections(w http.ResponseWriter, r *http.Request) {
	walletID := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if walletID == "" {
		writeError(w, http.StatusBadRequest, errors.New("wallet query parameter is required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.listConnections(w, r, walletID)
	case http.MethodDelete:
		origin := strings.TrimSpace(r.URL.Query().Get("origin"))
		if origin == "" {
			writeError(w, http.StatusBadRequest, errors.New("origin query parameter is required"))
			return
		}
		if err := h.app.Negotiator.Disconnect(r.Context(), walletID, origin); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) listConnections(w http.ResponseWriter, r *http.Request, walletID string) {
	apps, err := h.app.Negotiator.Connections(r.Context(), walletID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]connectionView, 0, len(apps))
	for _, a := range apps {
		views = append(views, connectionView{
			WalletID:  a.WalletID,
			Origin:    a.Origin,
			AppName:   a.Manifest.Name,
			SessionID: a.SessionID,
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) wallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// The directory interface only supports lookup; listing goes through the
	// concrete directory when it offers one.
	lister, ok := h.app.Wallets.(interface{ List() []wallet.Wallet })
	if !ok {
		writeJSON(w, http.StatusOK, []wallet.Wallet{})
		return
	}
	writeJSON(w, http.StatusOK, lister.List())
}

func (h *handler) rates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	currency := strings.TrimSpace(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = "USD"
	}
	rate, ok := h.app.Rates.Rate(currency)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no rate for "+strings.ToUpper(currency)))
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (h *handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.approvals.Pending())
}

func (h *handler) decideApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/approvals"), "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.approvals.Decide(id, payload.Approved) {
		writeError(w, http.StatusNotFound, errors.New("no pending approval "+id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"approved": payload.Approved})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
