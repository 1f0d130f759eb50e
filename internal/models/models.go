package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trade actions are stored as single characters, the ledger's compact wire
// form. Inputs arrive as the full words "buy"/"sell" and are normalized by
// the validator.
const (
	ActionBuy  = "b"
	ActionSell = "s"
)

// MaxSymbolLength bounds ticker symbols, as on the Nasdaq.
const MaxSymbolLength = 5

// Stock is created lazily on the first trade of a new symbol and never
// updated afterwards; the price is a synthetic placeholder, not a quote.
type Stock struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TickerSymbol string               `bson:"ticker_symbol" json:"tickerSymbol"`
	Name         string               `bson:"name" json:"name"`
	Price        primitive.Decimal128 `bson:"price" json:"price"`
	CreatedAt    time.Time            `bson:"created_at" json:"createdAt"`
}

// Trade answers: who did what to which stock, in what quantity, and when.
// The trades collection is append-only and is the sole source of truth for
// holdings; rows are never edited or deleted.
type Trade struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Actor     string             `bson:"actor" json:"actor"`
	StockID   primitive.ObjectID `bson:"stock_id" json:"stockId"`
	Symbol    string             `bson:"symbol" json:"symbol"`
	Action    string             `bson:"action" json:"action"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// Position is derived by replaying trade history; it is never stored.
type Position struct {
	Symbol string `bson:"_id" json:"symbol"`
	Shares int    `bson:"shares" json:"shares"`
}

// RawOrder is one order as it arrives from a JSON body or a spreadsheet
// row: fields may be missing, wrong-typed, or carry excess whitespace.
// Quantity stays untyped until the validator coerces it.
type RawOrder struct {
	Symbol   string `json:"symbol"`
	Quantity any    `json:"quantity"`
	Action   string `json:"action"`
}

// ValidatedOrder is the validator's output: well-formed and, for sells,
// solvent at validation time. It lives only within one request or batch
// run and is never persisted.
type ValidatedOrder struct {
	Owner    string
	Symbol   string
	Quantity int
	Action   string
}
