package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xssnick/tonutils-go/address"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/metrics"
	"github.com/keeperstack/wallet_bridge/internal/app/router"
	"github.com/keeperstack/wallet_bridge/internal/app/services/amount"
	"github.com/keeperstack/wallet_bridge/internal/app/services/balance"
	connectsvc "github.com/keeperstack/wallet_bridge/internal/app/services/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/services/recipient"
	sendsvc "github.com/keeperstack/wallet_bridge/internal/app/services/send"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/app/storage/memory"
)

var rawZero = "0:" + strings.Repeat("0", 64)

type walletDir map[string]wallet.Wallet

func (d walletDir) Wallet(_ context.Context, id string) (wallet.Wallet, bool) {
	w, ok := d[id]
	return w, ok
}

type manifestStub struct{ manifest connect.Manifest }

func (m manifestStub) FetchManifest(context.Context, string) (connect.Manifest, error) {
	return m.manifest, nil
}

type balanceStub struct{ balance wallet.Balance }

func (b balanceStub) Balance(context.Context, wallet.Wallet) (wallet.Balance, error) {
	return b.balance, nil
}

type dnsStub struct{}

func (dnsStub) ResolveDomain(context.Context, string, bool) (*address.Address, error) {
	return nil, sources.ErrDomainNotFound
}

type submitterStub struct{}

func (submitterStub) Submit(context.Context, wallet.Wallet, string) (string, error) {
	return "cafebabe", nil
}

type rateTable map[string]wallet.Rate

func (r rateTable) Rate(currency string) (wallet.Rate, bool) {
	rate, ok := r[currency]
	return rate, ok
}

// parkSurface approves connects immediately but parks sends on the request
// context, reporting the error it unblocked with.
type parkSurface struct {
	prompts chan struct{}
	errs    chan error
}

func (p *parkSurface) ConfirmConnect(context.Context, sources.ConnectPrompt) (bool, error) {
	return true, nil
}

func (p *parkSurface) ConfirmSend(ctx context.Context, _ sources.SendPrompt) (bool, error) {
	p.prompts <- struct{}{}
	<-ctx.Done()
	p.errs <- ctx.Err()
	return false, ctx.Err()
}

type fixture struct {
	srv     *httptest.Server
	store   *memory.Store
	sender  *sendsvc.Service
	surface *parkSurface
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	wallets := walletDir{"w1": {ID: "w1", Address: rawZero}}
	surface := &parkSurface{prompts: make(chan struct{}, 1), errs: make(chan error, 1)}
	bal := balanceStub{balance: wallet.Balance{Native: amount.ParseInput("100", 9)}}

	negotiator := connectsvc.NewNegotiator(store,
		manifestStub{manifest: connect.Manifest{URL: "https://app.example", Name: "Example App"}},
		surface, nil, nil)
	sender := sendsvc.NewService(store, wallets,
		recipient.NewResolver(dnsStub{}, nil, nil),
		amount.NewConverter(rateTable{}, bal, nil),
		balance.NewGuard(bal, nil),
		surface, submitterStub{}, "USD", nil)

	dispatcher := router.NewDispatcher(16, nil)
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("start dispatcher: %v", err)
	}
	t.Cleanup(func() { _ = dispatcher.Stop(context.Background()) })

	rtr := router.New(negotiator, sender, wallets, dispatcher, nil)
	srv := httptest.NewServer(NewServer(rtr, nil))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, store: store, sender: sender, surface: surface}
}

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) router.Response {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp router.Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func TestConnectOverWebsocket(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	err := conn.WriteJSON(router.Request{
		ID: "1", Method: router.MethodConnect, WalletID: "w1",
		Params: json.RawMessage(`{"manifestUrl":"https://app.example","protocolVersion":2}`),
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	resp := readResponse(t, conn)
	if resp.Error != nil {
		t.Fatalf("connect failed: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["clientId"] == "" {
		t.Fatalf("result = %+v", resp.Result)
	}
	if _, err := f.store.Get(context.Background(), "w1", "https://app.example"); err != nil {
		t.Fatalf("session not committed: %v", err)
	}
}

func TestUndecodableFrame(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp := readResponse(t, conn)
	if resp.Error == nil || resp.Error.Code != connect.CodeBadRequest {
		t.Fatalf("response = %+v, want badRequest", resp)
	}
}

func TestTeardownCancelsInFlightSend(t *testing.T) {
	f := newFixture(t)
	err := f.store.Put(context.Background(), connect.ConnectedApp{
		WalletID:  "w1",
		Origin:    "https://app.example",
		Manifest:  connect.Manifest{URL: "https://app.example", Name: "Example App"},
		SessionID: "s1",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	before := confirmationSamples(t)
	conn := dial(t, f)

	err = conn.WriteJSON(router.Request{
		ID: "1", Method: router.MethodSend, WalletID: "w1",
		Params: json.RawMessage(`{
			"origin":"https://app.example",
			"recipient":"` + rawZero + `",
			"amount":"40000000000",
			"payload":"boc",
			"token":{"kind":"native"}
		}`),
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-f.surface.prompts:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never reached the confirmation surface")
	}
	if f.sender.Registry().Len() != 1 {
		t.Fatalf("in-flight requests = %d, want 1", f.sender.Registry().Len())
	}

	conn.Close()

	select {
	case err := <-f.surface.errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("surface unblocked with %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("teardown never cancelled the parked confirmation")
	}

	waitFor(t, func() bool { return f.sender.Registry().Len() == 0 },
		"pipeline state survived teardown")
	waitFor(t, func() bool { return confirmationSamples(t) == before+1 },
		"pipeline did not record exactly one terminal outcome")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// confirmationSamples reads the terminal-outcome counter from the pipeline
// duration histogram.
func confirmationSamples(t *testing.T) uint64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "wallet_bridge_send_confirmation_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}
