package store

import (
	"context"
	"sync"
	"time"

	"tickflow/models"
)

// MemoryStore is a map-backed implementation of both store interfaces with
// the same uniqueness semantics as the MongoDB gateway. It backs
// development runs without a database and the package tests.
type MemoryStore struct {
	mu     sync.Mutex
	trades map[tradeKey]models.TradeRecord
	bars   map[tradeKey]models.OHLCBar
}

type tradeKey struct {
	productCode string
	at          int64 // unix milliseconds, storage resolution
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades: make(map[tradeKey]models.TradeRecord),
		bars:   make(map[tradeKey]models.OHLCBar),
	}
}

// Trades returns the in-memory trade store.
func (s *MemoryStore) Trades() TradeStore { return (*memoryTradeStore)(s) }

// Bars returns the in-memory bar store.
func (s *MemoryStore) Bars() BarStore { return (*memoryBarStore)(s) }

// TradeCount reports the number of stored trade records.
func (s *MemoryStore) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// BarCount reports the number of stored bars.
func (s *MemoryStore) BarCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars)
}

type memoryTradeStore MemoryStore

func (ts *memoryTradeStore) Insert(_ context.Context, record *models.TradeRecord) (InsertResult, error) {
	key := tradeKey{productCode: record.ProductCode, at: record.Timestamp.UnixMilli()}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.trades[key]; exists {
		return Duplicate, nil
	}
	ts.trades[key] = *record
	return Stored, nil
}

type memoryBarStore MemoryStore

func (bs *memoryBarStore) Get(_ context.Context, productCode string, bucket time.Time) (*models.OHLCBar, error) {
	key := tradeKey{productCode: productCode, at: bucket.UnixMilli()}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	bar, ok := bs.bars[key]
	if !ok {
		return nil, nil
	}
	return &bar, nil
}

func (bs *memoryBarStore) Upsert(_ context.Context, bar *models.OHLCBar) error {
	key := tradeKey{productCode: bar.ProductCode, at: bar.Bucket.UnixMilli()}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.bars[key] = *bar
	return nil
}
