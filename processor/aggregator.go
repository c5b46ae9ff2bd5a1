package processor

import (
	"context"
	"time"

	"tickflow/logger"
	"tickflow/models"
	"tickflow/store"
)

// BarAggregator folds freshly stored trade records into minute OHLC bars.
// It runs on the same serial path as dispatch, so the read-modify-upsert
// needs no cross-process locking.
type BarAggregator struct {
	bars store.BarStore
	log  *logger.Log
}

// NewBarAggregator creates an aggregator on top of a bar store.
func NewBarAggregator(bars store.BarStore) *BarAggregator {
	return &BarAggregator{bars: bars, log: logger.GetLogger()}
}

// Apply updates the minute bucket the record falls into. Call it only for
// records the trade store reported as freshly stored; duplicates would
// double-count volume.
func (a *BarAggregator) Apply(ctx context.Context, record *models.TradeRecord) error {
	bucket := record.Timestamp.Truncate(time.Minute)

	bar, err := a.bars.Get(ctx, record.ProductCode, bucket)
	if err != nil {
		return err
	}
	if bar == nil {
		bar = models.NewOHLCBar(bucket, record)
	} else {
		bar.Apply(record)
	}

	if err := a.bars.Upsert(ctx, bar); err != nil {
		return err
	}

	logger.IncrementBarUpserted()
	a.log.WithComponent("bar_aggregator").WithFields(logger.Fields{
		"product_code": bar.ProductCode,
		"bucket":       bar.Bucket.Format(time.RFC3339),
		"close":        bar.Close,
		"volume":       bar.Volume,
	}).Debug("bar upserted")

	return nil
}
