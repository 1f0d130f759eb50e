package services

import (
	"context"
	"log/slog"
	"sync"

	"trade-ledger/internal/models"
	"trade-ledger/internal/storage"
)

// BatchRow is one entry of a batch source: a raw order plus the principal
// it belongs to. Uploaded batches carry the authenticated user on every
// row; polled files resolve a per-row username upstream.
type BatchRow struct {
	Owner string
	Order models.RawOrder
}

// BatchErrors maps a row index to that row's field-keyed validation
// messages.
type BatchErrors map[int]map[string][]string

// BatchService applies a sequence of orders as one atomic unit. Validation
// admits the batch only when every row passes; execution commits all rows
// in one storage transaction or none of them.
//
// Note: the window between a row's solvency read and the batch commit is
// not serialized against concurrent writers for the same (actor, symbol);
// the transaction covers the writes only.
type BatchService struct {
	store  storage.Store
	trades *TradeService
	logger *slog.Logger
}

func NewBatchService(store storage.Store, trades *TradeService, logger *slog.Logger) *BatchService {
	return &BatchService{
		store:  store,
		trades: trades,
		logger: logger,
	}
}

// ValidateBatch runs every row through the trade validator. Available
// shares for a sell are derived from committed history plus the net effect
// of rows validated earlier in the same batch, so a buy earlier in the
// file funds a later sell even though nothing has committed yet.
//
// All rows are checked even after the first failure so the caller gets the
// complete error picture in one pass.
func (s *BatchService) ValidateBatch(ctx context.Context, rows []BatchRow) ([]models.ValidatedOrder, BatchErrors, error) {
	overlay := newOverlayPositions(s.store)

	var valid []models.ValidatedOrder
	errs := make(BatchErrors)

	for i, row := range rows {
		validator := NewTradeValidator(overlay, row.Owner, row.Order)
		ok, err := validator.IsValid(ctx)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			errs[i] = validator.Errors()
			continue
		}

		order := validator.CleanedOrder()
		valid = append(valid, order)
		overlay.apply(order)
	}

	if len(errs) > 0 {
		return nil, errs, nil
	}
	return valid, nil, nil
}

// ExecuteBatch commits the orders in input order inside one transaction.
// The first storage failure aborts the whole unit: no row is visible
// afterwards and no later order is attempted. On success the returned map
// holds one confirmation per input index.
func (s *BatchService) ExecuteBatch(ctx context.Context, orders []models.ValidatedOrder) (map[int]string, error) {
	executed := make(map[int]string, len(orders))

	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		for i, order := range orders {
			msg, err := s.trades.ExecuteTrade(txCtx, order)
			if err != nil {
				return err
			}
			executed[i] = msg
		}
		return nil
	})
	if err != nil {
		s.logger.Error("batch aborted", "orders", len(orders), "error", err)
		return nil, err
	}

	s.logger.Info("batch committed", "orders", len(orders))
	return executed, nil
}

// overlayPositions layers the net quantity of already-validated but not yet
// committed rows on top of the committed positions in the store.
type overlayPositions struct {
	base PositionSource

	mu      sync.Mutex
	pending map[positionKey]int
}

type positionKey struct {
	actor  string
	symbol string
}

func newOverlayPositions(base PositionSource) *overlayPositions {
	return &overlayPositions{
		base:    base,
		pending: make(map[positionKey]int),
	}
}

func (o *overlayPositions) OwnedShares(ctx context.Context, actor, symbol string) (int, error) {
	committed, err := o.base.OwnedShares(ctx, actor, symbol)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return committed + o.pending[positionKey{actor, symbol}], nil
}

func (o *overlayPositions) apply(order models.ValidatedOrder) {
	delta := order.Quantity
	if order.Action == models.ActionSell {
		delta = -delta
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[positionKey{order.Owner, order.Symbol}] += delta
}
