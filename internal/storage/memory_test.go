package storage

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"trade-ledger/internal/models"
)

func decimalFromString(t *testing.T, s string) primitive.Decimal128 {
	t.Helper()
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		t.Fatalf("ParseDecimal128(%q): %v", s, err)
	}
	return d
}

func seedTrades(t *testing.T, store *MemoryStore, trades ...models.Trade) {
	t.Helper()
	for i := range trades {
		if err := store.InsertTrade(context.Background(), &trades[i]); err != nil {
			t.Fatalf("seeding trade: %v", err)
		}
	}
}

func TestMemoryStore_OwnedShares(t *testing.T) {
	tests := []struct {
		name   string
		trades []models.Trade
		actor  string
		symbol string
		want   int
	}{
		{
			name:   "no history",
			actor:  "alice",
			symbol: "ACME",
			want:   0,
		},
		{
			name: "buys minus sells",
			trades: []models.Trade{
				{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 10},
				{Actor: "alice", Symbol: "ACME", Action: models.ActionSell, Quantity: 4},
				{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 1},
			},
			actor:  "alice",
			symbol: "ACME",
			want:   7,
		},
		{
			name: "order of trades does not matter",
			trades: []models.Trade{
				{Actor: "alice", Symbol: "ACME", Action: models.ActionSell, Quantity: 4},
				{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 10},
			},
			actor:  "alice",
			symbol: "ACME",
			want:   6,
		},
		{
			name: "other actors and symbols excluded",
			trades: []models.Trade{
				{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 10},
				{Actor: "alice", Symbol: "XYZ", Action: models.ActionBuy, Quantity: 3},
				{Actor: "bob", Symbol: "ACME", Action: models.ActionBuy, Quantity: 5},
			},
			actor:  "alice",
			symbol: "ACME",
			want:   10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			seedTrades(t, store, tt.trades...)

			got, err := store.OwnedShares(context.Background(), tt.actor, tt.symbol)
			if err != nil {
				t.Fatalf("OwnedShares() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("OwnedShares() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_ListPositions(t *testing.T) {
	store := NewMemoryStore()
	seedTrades(t, store,
		models.Trade{Actor: "alice", Symbol: "XYZ", Action: models.ActionBuy, Quantity: 3},
		models.Trade{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 5},
		models.Trade{Actor: "alice", Symbol: "GONE", Action: models.ActionBuy, Quantity: 2},
		models.Trade{Actor: "alice", Symbol: "GONE", Action: models.ActionSell, Quantity: 2},
	)

	positions, err := store.ListPositions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListPositions() error: %v", err)
	}

	want := []models.Position{{Symbol: "ACME", Shares: 5}, {Symbol: "XYZ", Shares: 3}}
	if len(positions) != len(want) {
		t.Fatalf("ListPositions() = %v, want %v", positions, want)
	}
	for i := range want {
		if positions[i] != want[i] {
			t.Errorf("ListPositions()[%d] = %+v, want %+v", i, positions[i], want[i])
		}
	}
}

func TestMemoryStore_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commit keeps writes", func(t *testing.T) {
		store := NewMemoryStore()
		err := store.WithTransaction(ctx, func(txCtx context.Context) error {
			trade := models.Trade{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 1}
			return store.InsertTrade(txCtx, &trade)
		})
		if err != nil {
			t.Fatalf("WithTransaction() error: %v", err)
		}
		if store.TradeCount() != 1 {
			t.Errorf("TradeCount() = %d, want 1", store.TradeCount())
		}
	})

	t.Run("failure rolls back trades and stocks", func(t *testing.T) {
		store := NewMemoryStore()
		boom := errors.New("boom")

		err := store.WithTransaction(ctx, func(txCtx context.Context) error {
			if _, err := store.GetOrCreateStock(txCtx, "ACME", "Acme Corporation", decimalFromString(t, "10.00")); err != nil {
				return err
			}
			trade := models.Trade{Actor: "alice", Symbol: "ACME", Action: models.ActionBuy, Quantity: 1}
			if err := store.InsertTrade(txCtx, &trade); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTransaction() error = %v, want boom", err)
		}
		if store.TradeCount() != 0 {
			t.Errorf("TradeCount() = %d, want 0 after rollback", store.TradeCount())
		}
		owned, err := store.OwnedShares(ctx, "alice", "ACME")
		if err != nil {
			t.Fatalf("OwnedShares() error: %v", err)
		}
		if owned != 0 {
			t.Errorf("OwnedShares() = %d, want 0 after rollback", owned)
		}
	})
}
