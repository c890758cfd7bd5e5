package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/storage"
)

func testApp(walletID, origin, session string) connect.ConnectedApp {
	return connect.ConnectedApp{
		WalletID:  walletID,
		Origin:    origin,
		Manifest:  connect.Manifest{URL: origin, Name: "App"},
		SessionID: session,
		PublicKey: []byte{1, 2, 3},
	}
}

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "w1", "https://app.example"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get on empty store: %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, testApp("w1", "https://app.example", "s1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "w1", "https://app.example")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != "s1" {
		t.Fatalf("session = %q, want s1", got.SessionID)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("put did not stamp CreatedAt")
	}

	if err := s.Remove(ctx, "w1", "https://app.example"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, "w1", "https://app.example"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after remove: %v, want ErrNotFound", err)
	}

	// Removing an absent record stays a no-op.
	if err := s.Remove(ctx, "w1", "https://app.example"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestPutLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Put(ctx, testApp("w1", "https://app.example", "s1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, testApp("w1", "https://app.example", "s2")); err != nil {
		t.Fatalf("put: %v", err)
	}

	apps, err := s.ListAll(ctx, "w1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("records = %d, want 1", len(apps))
	}
	if apps[0].SessionID != "s2" {
		t.Fatalf("session = %q, want the later write", apps[0].SessionID)
	}
}

func TestConcurrentPutsLeaveOneRecord(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(ctx, testApp("w1", "https://app.example", fmt.Sprintf("s%d", i)))
		}(i)
	}
	wg.Wait()

	apps, err := s.ListAll(ctx, "w1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("records after concurrent puts = %d, want 1", len(apps))
	}
}

func TestListAllFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Put(ctx, testApp("w1", "https://b.example", "s1"))
	_ = s.Put(ctx, testApp("w1", "https://a.example", "s2"))
	_ = s.Put(ctx, testApp("w2", "https://c.example", "s3"))

	apps, err := s.ListAll(ctx, "w1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("records = %d, want 2", len(apps))
	}
	if apps[0].Origin != "https://a.example" || apps[1].Origin != "https://b.example" {
		t.Fatalf("origins not sorted: %q, %q", apps[0].Origin, apps[1].Origin)
	}
}

func TestGetReturnsClone(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Put(ctx, testApp("w1", "https://app.example", "s1"))

	got, _ := s.Get(ctx, "w1", "https://app.example")
	got.PublicKey[0] = 99

	again, _ := s.Get(ctx, "w1", "https://app.example")
	if again.PublicKey[0] != 1 {
		t.Fatal("mutating a returned record leaked into the store")
	}
}
