package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"trade-ledger/internal/models"
	"trade-ledger/internal/storage"
)

// TradeService commits one validated order as durable state. It assumes its
// input already passed validation and does not re-validate; storage
// failures propagate to the caller untouched.
type TradeService struct {
	store storage.Store
}

func NewTradeService(store storage.Store) *TradeService {
	return &TradeService{store: store}
}

// ExecuteTrade creates the stock on first sight of its symbol, appends the
// trade row, and returns a human-readable confirmation.
func (s *TradeService) ExecuteTrade(ctx context.Context, order models.ValidatedOrder) (string, error) {
	stock, err := s.store.GetOrCreateStock(ctx, order.Symbol, stockName(order.Symbol), placeholderPrice())
	if err != nil {
		return "", err
	}

	trade := &models.Trade{
		Actor:     order.Owner,
		StockID:   stock.ID,
		Symbol:    order.Symbol,
		Action:    order.Action,
		Quantity:  order.Quantity,
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertTrade(ctx, trade); err != nil {
		return "", err
	}

	verb := "sold"
	if order.Action == models.ActionBuy {
		verb = "bought"
	}
	msg := fmt.Sprintf("%d share(s) of %s %s for %s",
		order.Quantity, order.Symbol, verb, order.Owner)
	return msg, nil
}

// GetPortfolio returns every non-zero position the actor holds.
func (s *TradeService) GetPortfolio(ctx context.Context, actor string) ([]models.Position, error) {
	return s.store.ListPositions(ctx, actor)
}

// GetTradeHistory returns the actor's trades, newest first.
func (s *TradeService) GetTradeHistory(ctx context.Context, actor string) ([]models.Trade, error) {
	return s.store.ListTrades(ctx, actor)
}

// placeholderPrice draws a synthetic price in [1, 1000). The system does
// not model price discovery; stocks just need some positive value.
func placeholderPrice() primitive.Decimal128 {
	price := decimal.NewFromFloat(1 + rand.Float64()*999).Round(2)
	d, err := primitive.ParseDecimal128(price.String())
	if err != nil {
		// Round(2) output always parses; keep a sane fallback anyway.
		d, _ = primitive.ParseDecimal128("1.00")
	}
	return d
}

func stockName(symbol string) string {
	names := map[string]string{
		"AAPL":  "Apple Inc.",
		"GOOGL": "Alphabet Inc.",
		"MSFT":  "Microsoft Corporation",
		"TSLA":  "Tesla Inc.",
		"AMZN":  "Amazon.com Inc.",
	}
	if name, exists := names[strings.ToUpper(symbol)]; exists {
		return name
	}
	return fmt.Sprintf("%s Corporation", symbol)
}
