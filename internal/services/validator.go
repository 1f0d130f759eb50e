package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"trade-ledger/internal/models"
)

// PositionSource supplies the net committed position for (actor, symbol).
// The storage layer satisfies it; batch validation wraps it with an overlay
// of rows validated earlier in the same batch.
type PositionSource interface {
	OwnedShares(ctx context.Context, actor, symbol string) (int, error)
}

// TradeValidator normalizes and validates one raw order before it may be
// executed. Validation runs in two phases: raw fields first, collected
// exhaustively, then the solvency check for sells which runs only when the
// raw fields are clean, so a malformed order never produces a misleading
// ownership error.
//
// No validation is done against BUY orders beyond the raw fields: by design
// a user buys out of thin air, with an unlimited purse.
type TradeValidator struct {
	positions PositionSource

	owner       string
	symbol      string
	rawQuantity any
	quantity    int
	action      string

	errors map[string][]string
}

func NewTradeValidator(positions PositionSource, owner string, order models.RawOrder) *TradeValidator {
	return &TradeValidator{
		positions:   positions,
		owner:       owner,
		symbol:      order.Symbol,
		rawQuantity: order.Quantity,
		action:      order.Action,
		errors:      make(map[string][]string),
	}
}

// IsValid determines the validity of the trade. The returned error is a
// storage failure from the solvency read, never a validation outcome;
// validation problems land in Errors.
func (v *TradeValidator) IsValid(ctx context.Context) (bool, error) {
	v.validateSymbol()
	v.validateQuantity()
	v.validateAction()
	if len(v.errors) > 0 {
		// We want to know immediately if the raw inputs are bad
		return false, nil
	}

	if v.action == models.ActionSell {
		owned, err := v.positions.OwnedShares(ctx, v.owner, v.symbol)
		if err != nil {
			return false, err
		}
		if v.quantity > owned {
			msg := fmt.Sprintf(
				"Trying to sell %d shares of %s, but user only owns %d shares",
				v.quantity, v.symbol, owned,
			)
			v.addError("sell", msg)
			return false, nil
		}
	}

	return true, nil
}

// Errors returns all accumulated validation messages keyed by field name,
// with sell-solvency failures under the dedicated "sell" key.
func (v *TradeValidator) Errors() map[string][]string {
	return v.errors
}

// CleanedOrder returns the normalized order, ready for execution. Only
// meaningful after IsValid reported true.
func (v *TradeValidator) CleanedOrder() models.ValidatedOrder {
	return models.ValidatedOrder{
		Owner:    v.owner,
		Symbol:   v.symbol,
		Quantity: v.quantity,
		Action:   v.action,
	}
}

func (v *TradeValidator) addError(key, msg string) {
	v.errors[key] = append(v.errors[key], msg)
}

func (v *TradeValidator) validateSymbol() {
	v.symbol = strings.TrimSpace(v.symbol)

	if v.symbol == "" {
		v.addError("symbol", "no symbol provided")
	}
	if len(v.symbol) > models.MaxSymbolLength {
		v.addError("symbol", "symbol should be max 5 characters")
	}
}

func (v *TradeValidator) validateQuantity() {
	quantity, ok := coerceQuantity(v.rawQuantity)
	if !ok {
		v.addError("quantity", "quantity must be a number")
		return
	}
	v.quantity = quantity

	if v.quantity < 1 {
		v.addError("quantity", "quantity must be minimum 1 share")
	}
}

func (v *TradeValidator) validateAction() {
	v.action = strings.TrimSpace(v.action)

	if v.action != "buy" && v.action != "sell" {
		v.addError("action", "action should be only one of ['buy','sell']")
	}

	// Normalize to the stored single-character form.
	if len(v.action) > 1 {
		v.action = v.action[:1]
	}
}

// coerceQuantity converts the loosely-typed quantity field to an integer.
// JSON bodies deliver numbers as float64, CSV rows deliver strings, and an
// absent field arrives as nil, which falls through to the minimum-share
// rule rather than the numeric one.
func coerceQuantity(raw any) (int, bool) {
	switch q := raw.(type) {
	case nil:
		return 0, true
	case int:
		return q, true
	case int64:
		return int(q), true
	case float64:
		return int(q), true
	case json.Number:
		n, err := strconv.Atoi(strings.TrimSpace(q.String()))
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		trimmed := strings.TrimSpace(q)
		if trimmed == "" {
			// A blank cell is absence, not garbage.
			return 0, true
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
