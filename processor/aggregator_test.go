package processor

import (
	"context"
	"testing"
	"time"

	"tickflow/models"
	"tickflow/store"
)

func record(at time.Time, price float64, amount int64) *models.TradeRecord {
	return &models.TradeRecord{
		ProductCode: "O1GC",
		Timestamp:   at,
		Settlement:  price,
		Amount:      amount,
	}
}

func TestAggregatorBuildsMinuteBar(t *testing.T) {
	mem := store.NewMemoryStore()
	agg := NewBarAggregator(mem.Bars())
	ctx := context.Background()

	base := time.Date(2026, 1, 6, 11, 31, 0, 0, time.UTC)

	for _, step := range []struct {
		offset time.Duration
		price  float64
		amount int64
	}{
		{5 * time.Second, 100, 10},
		{20 * time.Second, 105, 20},
		{44 * time.Second, 98, 5},
	} {
		if err := agg.Apply(ctx, record(base.Add(step.offset), step.price, step.amount)); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}

	bar, err := mem.Bars().Get(ctx, "O1GC", base)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bar == nil {
		t.Fatal("bar not found")
	}
	if bar.Open != 100 || bar.High != 105 || bar.Low != 98 || bar.Close != 98 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 100/105/98/98", bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 35 {
		t.Errorf("bar volume = %d, want 35", bar.Volume)
	}
}

func TestAggregatorSplitsBuckets(t *testing.T) {
	mem := store.NewMemoryStore()
	agg := NewBarAggregator(mem.Bars())
	ctx := context.Background()

	first := time.Date(2026, 1, 6, 11, 31, 59, 0, time.UTC)
	second := time.Date(2026, 1, 6, 11, 32, 0, 0, time.UTC)

	if err := agg.Apply(ctx, record(first, 100, 10)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := agg.Apply(ctx, record(second, 101, 3)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := mem.BarCount(); got != 2 {
		t.Fatalf("bar count = %d, want 2", got)
	}
	bar, _ := mem.Bars().Get(ctx, "O1GC", second.Truncate(time.Minute))
	if bar == nil || bar.Open != 101 || bar.Volume != 3 {
		t.Errorf("second bucket bar = %+v, want open 101 volume 3", bar)
	}
}
