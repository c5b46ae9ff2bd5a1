// Package store persists trade records and minute bars. The feed pipeline
// only depends on the interfaces here; the MongoDB gateway is the
// production implementation and the in-memory one backs development runs
// and tests.
package store

import (
	"context"
	"time"

	"tickflow/models"
)

// InsertResult reports the outcome of a trade record insert.
type InsertResult int

const (
	// Stored means the record was freshly written.
	Stored InsertResult = iota
	// Duplicate means a record with the same (product code, timestamp)
	// already exists. Routine under feed re-delivery, not an error.
	Duplicate
)

func (r InsertResult) String() string {
	if r == Duplicate {
		return "duplicate"
	}
	return "stored"
}

// TradeStore inserts trade records keyed on (product code, timestamp).
// A unique-key violation is reported as Duplicate with a nil error.
type TradeStore interface {
	Insert(ctx context.Context, record *models.TradeRecord) (InsertResult, error)
}

// BarStore reads and upserts minute bars keyed on (product code, bucket
// start). Get returns (nil, nil) when the bucket does not exist yet.
type BarStore interface {
	Get(ctx context.Context, productCode string, bucket time.Time) (*models.OHLCBar, error)
	Upsert(ctx context.Context, bar *models.OHLCBar) error
}
