package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"trade-ledger/internal/models"
)

// Store is the ledger's persistence boundary. The Mongo adapter backs the
// running service; the in-memory adapter backs tests.
type Store interface {
	// OwnedShares returns the net position for (actor, symbol): buy
	// quantities minus sell quantities over all committed trades. It
	// returns 0 when no trades exist.
	OwnedShares(ctx context.Context, actor, symbol string) (int, error)

	// GetOrCreateStock returns the stock for symbol, creating it with the
	// given name and placeholder price if it does not exist yet.
	GetOrCreateStock(ctx context.Context, symbol, name string, price primitive.Decimal128) (*models.Stock, error)

	// InsertTrade appends one row to the trade ledger.
	InsertTrade(ctx context.Context, trade *models.Trade) error

	// ListPositions returns every non-zero position held by actor.
	ListPositions(ctx context.Context, actor string) ([]models.Position, error)

	// ListTrades returns actor's trades, newest first.
	ListTrades(ctx context.Context, actor string) ([]models.Trade, error)

	// WithTransaction runs fn inside one atomic unit: writes issued through
	// the ctx passed to fn are either all committed or all discarded.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
