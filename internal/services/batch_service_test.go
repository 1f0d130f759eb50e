package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"trade-ledger/internal/models"
	"trade-ledger/internal/storage"
)

func newBatchService(store storage.Store) *BatchService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBatchService(store, NewTradeService(store), logger)
}

func TestBatchService_ValidateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("all rows valid", func(t *testing.T) {
		svc := newBatchService(storage.NewMemoryStore())
		rows := []BatchRow{
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: "10", Action: "buy"}},
			{Owner: "alice", Order: models.RawOrder{Symbol: "XYZ", Quantity: 5, Action: "buy"}},
		}

		valid, errs, err := svc.ValidateBatch(ctx, rows)
		if err != nil {
			t.Fatalf("ValidateBatch() error: %v", err)
		}
		if errs != nil {
			t.Fatalf("ValidateBatch() errors: %v", errs)
		}
		if len(valid) != 2 {
			t.Fatalf("len(valid) = %d, want 2", len(valid))
		}
		if valid[0].Quantity != 10 || valid[0].Action != models.ActionBuy {
			t.Errorf("valid[0] = %+v, not normalized", valid[0])
		}
	})

	t.Run("invalid rows keyed by index, no execution", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := newBatchService(store)
		rows := []BatchRow{
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: 1, Action: "buy"}},
			{Owner: "alice", Order: models.RawOrder{Symbol: "", Quantity: "abc", Action: "hold"}},
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: 0, Action: "buy"}},
		}

		valid, errs, err := svc.ValidateBatch(ctx, rows)
		if err != nil {
			t.Fatalf("ValidateBatch() error: %v", err)
		}
		if valid != nil {
			t.Errorf("valid = %v, want nil when any row fails", valid)
		}
		if len(errs) != 2 {
			t.Fatalf("errs = %v, want rows 1 and 2", errs)
		}
		if _, ok := errs[1]; !ok {
			t.Errorf("errs missing row 1: %v", errs)
		}
		if got := errs[2]["quantity"]; len(got) != 1 || got[0] != "quantity must be minimum 1 share" {
			t.Errorf("errs[2][\"quantity\"] = %v", got)
		}
		if store.TradeCount() != 0 {
			t.Errorf("TradeCount() = %d, want 0 after failed validation", store.TradeCount())
		}
	})

	t.Run("buy earlier in batch funds later sell", func(t *testing.T) {
		svc := newBatchService(storage.NewMemoryStore())
		rows := []BatchRow{
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: 10, Action: "buy"}},
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: 10, Action: "sell"}},
		}

		valid, errs, err := svc.ValidateBatch(ctx, rows)
		if err != nil {
			t.Fatalf("ValidateBatch() error: %v", err)
		}
		if errs != nil {
			t.Fatalf("ValidateBatch() errors: %v", errs)
		}
		if len(valid) != 2 {
			t.Errorf("len(valid) = %d, want 2", len(valid))
		}
	})

	t.Run("earlier sell reduces later sell headroom", func(t *testing.T) {
		store := storage.NewMemoryStore()
		seed := models.Trade{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 10}
		if err := store.InsertTrade(ctx, &seed); err != nil {
			t.Fatalf("seeding trade: %v", err)
		}

		svc := newBatchService(store)
		rows := []BatchRow{
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: 6, Action: "sell"}},
			{Owner: "alice", Order: models.RawOrder{Symbol: "ACME", Quantity: 6, Action: "sell"}},
		}

		_, errs, err := svc.ValidateBatch(ctx, rows)
		if err != nil {
			t.Fatalf("ValidateBatch() error: %v", err)
		}
		want := "Trying to sell 6 shares of ACME, but user only owns 4 shares"
		if got := errs[1]["sell"]; len(got) != 1 || got[0] != want {
			t.Errorf("errs[1][\"sell\"] = %v, want [%q]", got, want)
		}
	})
}

func TestBatchService_ExecuteBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmations keyed by input order", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := newBatchService(store)
		orders := []models.ValidatedOrder{
			{Owner: "alice", Symbol: "ACME", Quantity: 10, Action: models.ActionBuy},
			{Owner: "alice", Symbol: "XYZ", Quantity: 5, Action: models.ActionBuy},
			{Owner: "alice", Symbol: "ACME", Quantity: 3, Action: models.ActionSell},
		}

		executed, err := svc.ExecuteBatch(ctx, orders)
		if err != nil {
			t.Fatalf("ExecuteBatch() error: %v", err)
		}
		want := map[int]string{
			0: "10 share(s) of ACME bought for alice",
			1: "5 share(s) of XYZ bought for alice",
			2: "3 share(s) of ACME sold for alice",
		}
		if len(executed) != len(want) {
			t.Fatalf("executed = %v, want %v", executed, want)
		}
		for i, msg := range want {
			if executed[i] != msg {
				t.Errorf("executed[%d] = %q, want %q", i, executed[i], msg)
			}
		}
		if store.TradeCount() != 3 {
			t.Errorf("TradeCount() = %d, want 3", store.TradeCount())
		}
	})

	t.Run("mid-batch failure leaves nothing committed", func(t *testing.T) {
		store := &failingStore{MemoryStore: storage.NewMemoryStore(), failAfter: 1}
		svc := newBatchService(store)
		orders := []models.ValidatedOrder{
			{Owner: "alice", Symbol: "ACME", Quantity: 1, Action: models.ActionBuy},
			{Owner: "alice", Symbol: "XYZ", Quantity: 2, Action: models.ActionBuy},
			{Owner: "alice", Symbol: "QQQ", Quantity: 3, Action: models.ActionBuy},
		}

		executed, err := svc.ExecuteBatch(ctx, orders)
		if err == nil {
			t.Fatal("ExecuteBatch() error = nil, want storage failure")
		}
		if executed != nil {
			t.Errorf("executed = %v, want nil on abort", executed)
		}
		if store.TradeCount() != 0 {
			t.Errorf("TradeCount() = %d, want 0 after abort", store.TradeCount())
		}
		if store.inserts != 2 {
			t.Errorf("inserts attempted = %d, want 2 (fail on second, third never tried)", store.inserts)
		}
	})
}

// failingStore lets the first failAfter inserts through and rejects the
// rest with a connectivity-style error.
type failingStore struct {
	*storage.MemoryStore
	failAfter int
	inserts   int
}

func (s *failingStore) InsertTrade(ctx context.Context, trade *models.Trade) error {
	s.inserts++
	if s.inserts > s.failAfter {
		return errors.New("connection reset by peer")
	}
	return s.MemoryStore.InsertTrade(ctx, trade)
}
