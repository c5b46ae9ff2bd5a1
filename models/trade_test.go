package models

import (
	"testing"
	"time"
)

func TestOHLCBarApply(t *testing.T) {
	bucket := time.Date(2026, 1, 6, 11, 31, 0, 0, time.UTC)
	bar := NewOHLCBar(bucket, &TradeRecord{ProductCode: "O1GC", Settlement: 100, Amount: 10})

	if bar.Open != 100 || bar.High != 100 || bar.Low != 100 || bar.Close != 100 || bar.Volume != 10 {
		t.Fatalf("new bar = %+v", bar)
	}

	bar.Apply(&TradeRecord{Settlement: 105, Amount: 20})
	bar.Apply(&TradeRecord{Settlement: 98, Amount: 5})

	if bar.Open != 100 {
		t.Errorf("open moved to %v", bar.Open)
	}
	if bar.High != 105 || bar.Low != 98 || bar.Close != 98 {
		t.Errorf("H/L/C = %v/%v/%v, want 105/98/98", bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 35 {
		t.Errorf("volume = %d, want 35", bar.Volume)
	}
}

func TestTradeRecordPrice(t *testing.T) {
	r := &TradeRecord{Ask: 101, Bid: 99, Settlement: 100}
	if r.Price() != 100 {
		t.Errorf("price = %v, want settlement 100", r.Price())
	}
}
