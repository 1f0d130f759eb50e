package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"trade-ledger/internal/models"
)

// MemoryStore is an in-memory Store used by tests. WithTransaction snapshots
// state on entry and restores it when fn fails, giving the same
// all-or-nothing visibility as the Mongo adapter.
type MemoryStore struct {
	mu     sync.Mutex
	stocks map[string]models.Stock
	trades []models.Trade
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks: make(map[string]models.Stock),
	}
}

func (s *MemoryStore) OwnedShares(ctx context.Context, actor, symbol string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shares := 0
	for _, t := range s.trades {
		if t.Actor != actor || t.Symbol != symbol {
			continue
		}
		if t.Action == models.ActionBuy {
			shares += t.Quantity
		} else {
			shares -= t.Quantity
		}
	}
	return shares, nil
}

func (s *MemoryStore) GetOrCreateStock(ctx context.Context, symbol, name string, price primitive.Decimal128) (*models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stock, ok := s.stocks[symbol]; ok {
		return &stock, nil
	}
	stock := models.Stock{
		ID:           primitive.NewObjectID(),
		TickerSymbol: symbol,
		Name:         name,
		Price:        price,
		CreatedAt:    time.Now(),
	}
	s.stocks[symbol] = stock
	return &stock, nil
}

func (s *MemoryStore) InsertTrade(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trade.ID.IsZero() {
		trade.ID = primitive.NewObjectID()
	}
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *MemoryStore) ListPositions(ctx context.Context, actor string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySymbol := make(map[string]int)
	for _, t := range s.trades {
		if t.Actor != actor {
			continue
		}
		if t.Action == models.ActionBuy {
			bySymbol[t.Symbol] += t.Quantity
		} else {
			bySymbol[t.Symbol] -= t.Quantity
		}
	}

	var positions []models.Position
	for symbol, shares := range bySymbol {
		if shares != 0 {
			positions = append(positions, models.Position{Symbol: symbol, Shares: shares})
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

func (s *MemoryStore) ListTrades(ctx context.Context, actor string) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trades []models.Trade
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].Actor == actor {
			trades = append(trades, s.trades[i])
		}
	}
	return trades, nil
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	stocksBefore := make(map[string]models.Stock, len(s.stocks))
	for k, v := range s.stocks {
		stocksBefore[k] = v
	}
	tradesBefore := len(s.trades)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.stocks = stocksBefore
		s.trades = s.trades[:tradesBefore]
		s.mu.Unlock()
		return err
	}
	return nil
}

// TradeCount reports the number of ledger rows; test helper.
func (s *MemoryStore) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}
