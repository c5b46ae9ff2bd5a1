package channel

import (
	"context"
	"testing"

	"tickflow/models"
)

func TestSendFansOutToEnabledSinks(t *testing.T) {
	c := NewChannels(4, true, true)
	defer c.Close()

	if !c.Send(context.Background(), models.TradeRecord{ID: "a"}) {
		t.Fatal("send reported a drop")
	}
	if got := len(c.Archive); got != 1 {
		t.Errorf("archive depth = %d, want 1", got)
	}
	if got := len(c.Publish); got != 1 {
		t.Errorf("publish depth = %d, want 1", got)
	}
	if stats := c.GetStats(); stats.Sent != 2 || stats.Dropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSendSkipsDisabledSinks(t *testing.T) {
	c := NewChannels(4, true, false)
	defer c.Close()

	if c.Publish != nil {
		t.Fatal("publish channel allocated while disabled")
	}
	if !c.Send(context.Background(), models.TradeRecord{ID: "a"}) {
		t.Fatal("send reported a drop")
	}
	if stats := c.GetStats(); stats.Sent != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSendDropsWhenFull(t *testing.T) {
	c := NewChannels(1, true, false)
	defer c.Close()

	ctx := context.Background()
	if !c.Send(ctx, models.TradeRecord{ID: "a"}) {
		t.Fatal("first send reported a drop")
	}
	if c.Send(ctx, models.TradeRecord{ID: "b"}) {
		t.Fatal("second send did not report a drop")
	}
	if stats := c.GetStats(); stats.Sent != 1 || stats.Dropped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
