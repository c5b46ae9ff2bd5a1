package models

import "time"

// RawTick is the parsed form of a single pipe-delimited tick payload.
// Prices and volume are the feed's unscaled integers; the time of day
// carries no date. Not persisted.
type RawTick struct {
	ProductID  string
	Hour       int
	Minute     int
	Second     int
	Ask        int64
	Bid        int64
	Settlement int64
	Volume     int64
}

// TradeRecord is the durable representation of one trade. The pair
// (ProductCode, Timestamp) is unique in storage; a duplicate insert means
// the tick was already processed.
type TradeRecord struct {
	ID          string    `bson:"uuid" json:"uuid"`
	ProductID   string    `bson:"product_id" json:"product_id"`
	ProductCode string    `bson:"product_code" json:"product_code"`
	ProductName string    `bson:"product_name" json:"product_name"`
	Timestamp   time.Time `bson:"datetime" json:"datetime"`
	Ask         float64   `bson:"ask_price" json:"ask_price"`
	Bid         float64   `bson:"bid_price" json:"bid_price"`
	Settlement  float64   `bson:"settlement_price" json:"settlement_price"`
	Volume      int64     `bson:"volume" json:"volume"`
	Amount      int64     `bson:"amount" json:"amount"`
}

// Price returns the traded price attributed to this record, the scaled
// settlement price.
func (r *TradeRecord) Price() float64 {
	return r.Settlement
}

// OHLCBar is one minute of aggregated trading, mutable until its minute
// closes. Open is set by the first trade in the bucket and never changes;
// Close follows the most recently applied trade.
type OHLCBar struct {
	ProductCode string    `bson:"product_code" json:"product_code"`
	Bucket      time.Time `bson:"datetime" json:"datetime"`
	Open        float64   `bson:"open" json:"open"`
	High        float64   `bson:"high" json:"high"`
	Low         float64   `bson:"low" json:"low"`
	Close       float64   `bson:"close" json:"close"`
	Volume      int64     `bson:"volume" json:"volume"`
}

// Apply folds a trade into the bar.
func (b *OHLCBar) Apply(r *TradeRecord) {
	price := r.Price()
	b.Close = price
	if price > b.High {
		b.High = price
	}
	if price < b.Low {
		b.Low = price
	}
	b.Volume += r.Amount
}

// NewOHLCBar creates the bar for a bucket from its first trade.
func NewOHLCBar(bucket time.Time, r *TradeRecord) *OHLCBar {
	price := r.Price()
	return &OHLCBar{
		ProductCode: r.ProductCode,
		Bucket:      bucket,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      r.Amount,
	}
}
