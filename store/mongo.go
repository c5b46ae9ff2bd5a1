package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	appconfig "tickflow/config"
	"tickflow/logger"
	"tickflow/models"
)

// MongoStore holds the shared client and exposes the trade and bar
// collections behind the store interfaces.
type MongoStore struct {
	client *mongo.Client
	trades *mongo.Collection
	bars   *mongo.Collection
	log    *logger.Log
}

// NewMongoStore connects to MongoDB, verifies the connection and ensures
// the unique indexes both collections rely on.
func NewMongoStore(ctx context.Context, cfg appconfig.MongoConfig) (*MongoStore, error) {
	log := logger.GetLogger()

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client: client,
		trades: db.Collection(cfg.TradesCollection),
		bars:   db.Collection(cfg.BarsCollection),
		log:    log,
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}

	log.WithComponent("mongo_store").WithFields(logger.Fields{
		"database":          cfg.Database,
		"trades_collection": cfg.TradesCollection,
		"bars_collection":   cfg.BarsCollection,
	}).Info("mongodb store initialized")

	return s, nil
}

// ensureIndexes creates the unique compound indexes that back the
// deduplicating upserts.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.trades.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "product_code", Value: 1}, {Key: "datetime", Value: -1}},
		Options: options.Index().SetUnique(true).SetName("_trade_id"),
	})
	if err != nil {
		return fmt.Errorf("create trade index: %w", err)
	}
	_, err = s.bars.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "product_code", Value: 1}, {Key: "datetime", Value: -1}},
		Options: options.Index().SetUnique(true).SetName("_ohlc_id"),
	})
	if err != nil {
		return fmt.Errorf("create bar index: %w", err)
	}
	return nil
}

// Trades returns the deduplicating trade record store.
func (s *MongoStore) Trades() TradeStore {
	return &mongoTradeStore{collection: s.trades, log: s.log}
}

// Bars returns the minute bar store.
func (s *MongoStore) Bars() BarStore {
	return &mongoBarStore{collection: s.bars}
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoTradeStore struct {
	collection *mongo.Collection
	log        *logger.Log
}

func (ts *mongoTradeStore) Insert(ctx context.Context, record *models.TradeRecord) (InsertResult, error) {
	start := time.Now()
	_, err := ts.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Duplicate, nil
		}
		return Stored, fmt.Errorf("insert trade (%s, %s): %w", record.ProductCode, record.Timestamp, err)
	}

	ts.log.WithComponent("mongo_store").WithFields(logger.Fields{
		"product_code": record.ProductCode,
		"datetime":     record.Timestamp.Format(time.RFC3339Nano),
		"duration_ms":  float64(time.Since(start).Nanoseconds()) / 1e6,
	}).Debug("trade record inserted")

	return Stored, nil
}

type mongoBarStore struct {
	collection *mongo.Collection
}

func (bs *mongoBarStore) Get(ctx context.Context, productCode string, bucket time.Time) (*models.OHLCBar, error) {
	filter := bson.M{"product_code": productCode, "datetime": bucket}

	var bar models.OHLCBar
	err := bs.collection.FindOne(ctx, filter).Decode(&bar)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bar (%s, %s): %w", productCode, bucket, err)
	}
	return &bar, nil
}

func (bs *mongoBarStore) Upsert(ctx context.Context, bar *models.OHLCBar) error {
	filter := bson.M{"product_code": bar.ProductCode, "datetime": bar.Bucket}
	_, err := bs.collection.ReplaceOne(ctx, filter, bar, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert bar (%s, %s): %w", bar.ProductCode, bar.Bucket, err)
	}
	return nil
}
