package processor

import (
	"testing"
	"time"

	"tickflow/models"
)

func newTestSequencer(t *testing.T, at time.Time) *Sequencer {
	t.Helper()
	inst, err := models.LookupInstrument("O1GC")
	if err != nil {
		t.Fatalf("LookupInstrument failed: %v", err)
	}
	s := NewSequencer(inst)
	s.now = func() time.Time { return at }
	return s
}

func tick(h, m, sec int, volume int64) models.RawTick {
	return models.RawTick{
		ProductID:  "O1GCJ",
		Hour:       h,
		Minute:     m,
		Second:     sec,
		Ask:        13046,
		Bid:        13044,
		Settlement: 13046,
		Volume:     volume,
	}
}

func TestProcessVolumeDelta(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 31, 50, 0, loc))

	first := s.Process(tick(11, 31, 40, 220000))
	if first.Amount != 220000 {
		t.Errorf("first record amount = %d, want 220000", first.Amount)
	}

	second := s.Process(tick(11, 31, 44, 220834))
	if second.Amount != 834 {
		t.Errorf("second record amount = %d, want 834", second.Amount)
	}
	if s.LastVolume() != 220834 {
		t.Errorf("last volume = %d, want 220834", s.LastVolume())
	}
}

func TestProcessVolumeReportRace(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 31, 50, 0, loc))

	s.Process(tick(11, 31, 40, 220000))
	s.Process(tick(11, 31, 44, 220834))

	// A daily volume report already advanced the ratchet to the volume of
	// the tick that follows it.
	raced := s.Process(tick(11, 31, 45, 220834))
	if raced.Amount != 0 {
		t.Errorf("raced record amount = %d, want 0", raced.Amount)
	}

	// The next distinct tick still attributes against the real baseline.
	next := s.Process(tick(11, 31, 46, 221000))
	if next.Amount != 166 {
		t.Errorf("post-race record amount = %d, want 166", next.Amount)
	}
}

func TestProcessFeedHistoryReset(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 0, 10, 0, loc))

	s.Process(tick(11, 0, 0, 500000))
	reset := s.Process(tick(11, 0, 5, 120))
	if reset.Amount != 120 {
		t.Errorf("post-reset amount = %d, want 120", reset.Amount)
	}
	if s.LastVolume() != 120 {
		t.Errorf("last volume after reset = %d, want 120", s.LastVolume())
	}
}

func TestProcessSameSecondDisambiguation(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 31, 44, 0, loc))

	a := s.Process(tick(11, 31, 44, 100))
	b := s.Process(tick(11, 31, 44, 101))
	c := s.Process(tick(11, 31, 44, 102))

	if !b.Timestamp.After(a.Timestamp) || !c.Timestamp.After(b.Timestamp) {
		t.Errorf("timestamps not strictly increasing: %v %v %v",
			a.Timestamp, b.Timestamp, c.Timestamp)
	}
	if !a.Timestamp.Truncate(time.Second).Equal(b.Timestamp.Truncate(time.Second)) {
		t.Errorf("same-second ticks landed in different seconds: %v vs %v",
			a.Timestamp, b.Timestamp)
	}
	if got := b.Timestamp.Sub(a.Timestamp); got != time.Millisecond {
		t.Errorf("disambiguation step = %v, want 1ms", got)
	}
}

func TestTradeTimeMidnightCrossover(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 7, 0, 0, 2, 0, loc))

	record := s.Process(tick(23, 59, 59, 10))
	want := time.Date(2026, 1, 6, 23, 59, 59, int(time.Millisecond), loc)
	if !record.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", record.Timestamp, want)
	}
}

func TestProcessPriceScaling(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 31, 50, 0, loc))
	s.SetScale(1)

	record := s.Process(tick(11, 31, 44, 100))
	if record.Ask != 1304.6 || record.Bid != 1304.4 || record.Settlement != 1304.6 {
		t.Errorf("scaled prices = %v %v %v, want 1304.6 1304.4 1304.6",
			record.Ask, record.Bid, record.Settlement)
	}
}

func TestCorrectVolumeRatchet(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 31, 50, 0, loc))

	if !s.CorrectVolume(1000) {
		t.Error("advance to 1000 rejected")
	}
	if s.CorrectVolume(900) {
		t.Error("ratchet retreated to 900")
	}
	if s.CorrectVolume(1000) {
		t.Error("ratchet accepted an equal volume")
	}
	if s.LastVolume() != 1000 {
		t.Errorf("last volume = %d, want 1000", s.LastVolume())
	}
}

func TestHistoryEviction(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	s := newTestSequencer(t, time.Date(2026, 1, 6, 11, 31, 50, 0, loc))

	for i := 0; i < historyCapacity+3; i++ {
		s.Process(tick(11, 30, i, int64(100+i)))
	}
	if len(s.history) != historyCapacity {
		t.Fatalf("history length = %d, want %d", len(s.history), historyCapacity)
	}
	if got := s.history[len(s.history)-1].Volume; got != 107 {
		t.Errorf("newest history volume = %d, want 107", got)
	}
	if got := s.history[0].Volume; got != 103 {
		t.Errorf("oldest history volume = %d, want 103", got)
	}
}
