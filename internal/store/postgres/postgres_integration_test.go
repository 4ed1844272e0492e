package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"supermart/internal/domain"
	"supermart/internal/store"
)

func TestSaveAllRoundTripsCollections(t *testing.T) {
	databaseURL := os.Getenv("SUPERMART_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SUPERMART_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	products := fmt.Sprintf("it-products-%d", stamp)
	receipts := fmt.Sprintf("it-receipts-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM app_collections WHERE name = ANY($1)`, []string{products, receipts})
	})

	var missing []domain.Product
	if err := s.Load(ctx, products, &missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	err = s.SaveAll(ctx,
		store.Document{Name: products, Value: store.DefaultProducts()},
		store.Document{Name: receipts, Value: []domain.Receipt{{ID: "REF-IT000001", Status: domain.StatusPaid}}},
	)
	if err != nil {
		t.Fatalf("save all: %v", err)
	}
	if err := s.SaveAll(ctx, store.Document{Name: products, Value: store.DefaultProducts()}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var loaded []domain.Product
	if err := s.Load(ctx, products, &loaded); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 || !loaded[1].Price.Equal(store.DefaultProducts()[1].Price) {
		t.Fatalf("unexpected products %+v", loaded)
	}

	revision, err := s.Revision(ctx, products)
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	if revision != 2 {
		t.Fatalf("expected revision 2, got %d", revision)
	}
}
