package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"trade-ledger/internal/services"
)

// Poller periodically reads a local bulk-order CSV and pushes it through
// the same validate-then-execute pipeline as an uploaded batch. A failed
// run is logged and the next tick tries again; the poller itself never
// stops on bad input.
type Poller struct {
	path     string
	interval time.Duration
	batch    *services.BatchService
	auth     *services.AuthService
	logger   *slog.Logger
}

func NewPoller(path string, interval time.Duration, batch *services.BatchService, auth *services.AuthService, logger *slog.Logger) *Poller {
	return &Poller{
		path:     path,
		interval: interval,
		batch:    batch,
		auth:     auth,
		logger:   logger,
	}
}

// Run blocks, processing the file once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("bulk order polling started", "file", p.path, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("bulk order polling stopped")
			return
		case <-ticker.C:
			p.ProcessFile(ctx)
		}
	}
}

// ProcessFile runs one ingestion pass over the configured file. A missing
// file is not an error; there is simply nothing to ingest yet.
func (p *Poller) ProcessFile(ctx context.Context) {
	logger := p.logger.With("run_id", uuid.NewString(), "file", p.path)

	if err := CheckFilename(p.path); err != nil {
		logger.Error("bulk order file rejected", "error", err)
		return
	}

	f, err := os.Open(p.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logger.Error("opening bulk order file", "error", err)
		return
	}
	defer f.Close()

	rows, err := ParseOrders(f)
	if err != nil {
		logger.Error("parsing bulk order file", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	batchRows, userErrs, err := p.resolveUsers(ctx, rows)
	if err != nil {
		logger.Error("resolving usernames", "error", err)
		return
	}

	valid, rowErrs, err := p.batch.ValidateBatch(ctx, batchRows)
	if err != nil {
		logger.Error("validating bulk orders", "error", err)
		return
	}
	for i, errs := range userErrs {
		if rowErrs == nil {
			rowErrs = make(services.BatchErrors)
		}
		rowErrs[i] = merge(rowErrs[i], errs)
	}
	if len(rowErrs) > 0 {
		logger.Error("bulk order validation failed", "rows", len(rows), "invalid_rows", len(rowErrs), "errors", fmt.Sprint(rowErrs))
		return
	}

	executed, err := p.batch.ExecuteBatch(ctx, valid)
	if err != nil {
		logger.Error("bulk trade failed", "error", err)
		return
	}
	logger.Info("bulk trade successful", "trades", len(executed))
}

// resolveUsers maps each row's username column to a principal, collecting
// per-row errors for blank or unregistered names. Any validation of the
// order fields themselves is left to the batch validator; a bad username
// just means the row has no principal to trade for.
func (p *Poller) resolveUsers(ctx context.Context, rows []Row) ([]services.BatchRow, services.BatchErrors, error) {
	batchRows := make([]services.BatchRow, len(rows))
	errs := make(services.BatchErrors)

	for i, row := range rows {
		batchRows[i] = services.BatchRow{Owner: row.Username, Order: row.Order}

		if row.Username == "" {
			errs[i] = map[string][]string{"username": {"no username provided"}}
			continue
		}
		exists, err := p.auth.UserExists(ctx, row.Username)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			errs[i] = map[string][]string{
				"username": {fmt.Sprintf("no registered user named %q", row.Username)},
			}
		}
	}

	return batchRows, errs, nil
}

func merge(dst, src map[string][]string) map[string][]string {
	if dst == nil {
		return src
	}
	for k, v := range src {
		dst[k] = append(dst[k], v...)
	}
	return dst
}
