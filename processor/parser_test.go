package processor

import (
	"errors"
	"testing"
)

func TestParseTick(t *testing.T) {
	tick, err := ParseTick("O1GCJ|11:31:44|13046|13044|13046|220834|")
	if err != nil {
		t.Fatalf("ParseTick failed: %v", err)
	}
	if tick.ProductID != "O1GCJ" {
		t.Errorf("unexpected product id: %s", tick.ProductID)
	}
	if tick.Hour != 11 || tick.Minute != 31 || tick.Second != 44 {
		t.Errorf("unexpected time: %02d:%02d:%02d", tick.Hour, tick.Minute, tick.Second)
	}
	if tick.Ask != 13046 || tick.Bid != 13044 || tick.Settlement != 13046 {
		t.Errorf("unexpected prices: %d %d %d", tick.Ask, tick.Bid, tick.Settlement)
	}
	if tick.Volume != 220834 {
		t.Errorf("unexpected volume: %d", tick.Volume)
	}
}

func TestParseTickMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"too few fields", "O1GCJ|11:31:44|13046|13044|220834|"},
		{"too many fields", "O1GCJ|11:31:44|13046|13044|13046|220834|extra|"},
		{"no trailing separator", "O1GCJ|11:31:44|13046|13044|13046|220834"},
		{"bad time", "O1GCJ|113144|13046|13044|13046|220834|"},
		{"non numeric hour", "O1GCJ|xx:31:44|13046|13044|13046|220834|"},
		{"non numeric price", "O1GCJ|11:31:44|abc|13044|13046|220834|"},
		{"non numeric volume", "O1GCJ|11:31:44|13046|13044|13046|x|"},
		{"empty", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := ParseTick(c.payload); !errors.Is(err, ErrMalformedTick) {
				t.Errorf("ParseTick(%q) = %v, want ErrMalformedTick", c.payload, err)
			}
		})
	}
}
