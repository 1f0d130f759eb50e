package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"trade-ledger/config"
	"trade-ledger/internal/models"
)

// MongoStore implements Store on the stocks and trades collections.
type MongoStore struct {
	client          *mongo.Client
	stockCollection *mongo.Collection
	tradeCollection *mongo.Collection
}

func NewMongoStore() *MongoStore {
	return &MongoStore{
		client:          config.DB,
		stockCollection: config.GetCollection("stocks"),
		tradeCollection: config.GetCollection("trades"),
	}
}

// OwnedShares replays the (actor, symbol) trade history as a single signed
// aggregation over committed rows: buys count positive, sells negative.
func (s *MongoStore) OwnedShares(ctx context.Context, actor, symbol string) (int, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"actor": actor, "symbol": symbol}},
		{"$group": bson.M{
			"_id":    nil,
			"shares": bson.M{"$sum": signedQuantity()},
		}},
	}

	cursor, err := s.tradeCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	// The group _id is null here, so decode shares alone.
	var results []struct {
		Shares int `bson:"shares"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Shares, nil
}

func (s *MongoStore) GetOrCreateStock(ctx context.Context, symbol, name string, price primitive.Decimal128) (*models.Stock, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stock models.Stock
	err := s.stockCollection.FindOneAndUpdate(
		ctx,
		bson.M{"ticker_symbol": symbol},
		bson.M{"$setOnInsert": bson.M{
			"ticker_symbol": symbol,
			"name":          name,
			"price":         price,
			"created_at":    time.Now(),
		}},
		opts,
	).Decode(&stock)
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (s *MongoStore) InsertTrade(ctx context.Context, trade *models.Trade) error {
	if trade.ID.IsZero() {
		trade.ID = primitive.NewObjectID()
	}
	_, err := s.tradeCollection.InsertOne(ctx, trade)
	return err
}

func (s *MongoStore) ListPositions(ctx context.Context, actor string) ([]models.Position, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"actor": actor}},
		{"$group": bson.M{
			"_id":    "$symbol",
			"shares": bson.M{"$sum": signedQuantity()},
		}},
		{"$match": bson.M{"shares": bson.M{"$ne": 0}}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := s.tradeCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var positions []models.Position
	if err := cursor.All(ctx, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (s *MongoStore) ListTrades(ctx context.Context, actor string) ([]models.Trade, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.tradeCollection.Find(ctx, bson.M{"actor": actor}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var trades []models.Trade
	if err := cursor.All(ctx, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// WithTransaction runs fn inside one Mongo session transaction. The session
// travels in the context, so collection operations made through the ctx
// handed to fn join the transaction.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// signedQuantity maps a trade row to +quantity for buys and -quantity for
// sells inside an aggregation.
func signedQuantity() bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{"$action", models.ActionBuy}},
		"$quantity",
		bson.M{"$multiply": bson.A{"$quantity", -1}},
	}}
}
