package processor

import (
	"math"
	"time"

	"github.com/google/uuid"

	"tickflow/models"
)

// historyCapacity bounds the rolling history of derived records. Eviction
// of the oldest entry is an invariant of the disambiguation algorithm,
// not an optimization.
const historyCapacity = 5

// Sequencer owns the per-session rolling state and turns parsed ticks
// into fully formed, time-disambiguated trade records. It is mutated only
// on the session's serial dispatch path and survives reconnects; it is
// reset only by a process restart.
type Sequencer struct {
	instrument models.Instrument
	scale      float64
	lastVolume int64
	history    []*models.TradeRecord

	now func() time.Time
}

// NewSequencer creates a sequencer for one instrument session. The price
// scale defaults to 0 until the first price-scale frame arrives.
func NewSequencer(instrument models.Instrument) *Sequencer {
	return &Sequencer{
		instrument: instrument,
		history:    make([]*models.TradeRecord, 0, historyCapacity),
		now:        time.Now,
	}
}

// SetScale updates the decimal scaling exponent from a price-scale frame.
func (s *Sequencer) SetScale(scale float64) {
	s.scale = scale
}

// Scale returns the current decimal scaling exponent.
func (s *Sequencer) Scale() float64 {
	return s.scale
}

// CorrectVolume applies an out-of-band cumulative volume report. The
// ratchet only advances, never retreats, and no trade record is produced.
func (s *Sequencer) CorrectVolume(volume int64) bool {
	if volume > s.lastVolume {
		s.lastVolume = volume
		return true
	}
	return false
}

// LastVolume returns the last observed cumulative volume.
func (s *Sequencer) LastVolume() int64 {
	return s.lastVolume
}

// Process derives the trade record for a parsed tick: it resolves the
// timestamp, disambiguates same-second collisions, attributes a per-trade
// volume delta, advances the ratchet and appends the record to the
// rolling history. The append happens exactly once per received tick,
// before the caller attempts the store write, so a failed write leaves
// the state already advanced past this tick.
func (s *Sequencer) Process(tick models.RawTick) *models.TradeRecord {
	factor := math.Pow(10, s.scale)

	record := &models.TradeRecord{
		ID:          uuid.New().String(),
		ProductID:   tick.ProductID,
		ProductCode: s.instrument.Code,
		ProductName: s.instrument.Name,
		Timestamp:   s.tradeTime(tick),
		Ask:         float64(tick.Ask) / factor,
		Bid:         float64(tick.Bid) / factor,
		Settlement:  float64(tick.Settlement) / factor,
		Volume:      tick.Volume,
	}

	baseline := s.lastVolume
	if last := s.lastRecord(); last != nil {
		if tick.Volume == s.lastVolume {
			// Race with an out-of-band volume report: the ratchet already
			// holds this tick's cumulative volume, so the true baseline is
			// the last derived record's.
			baseline = last.Volume
		} else if record.Timestamp.After(last.Timestamp) && tick.Volume < s.lastVolume {
			// Time moved forward but the counter went backwards: the feed
			// restarted its trade history.
			baseline = 0
		}
	}
	record.Amount = tick.Volume - baseline
	s.lastVolume = tick.Volume

	s.push(record)
	return record
}

// tradeTime combines the current session date with the tick's time of
// day and guarantees strict monotonic uniqueness for same-second ticks.
func (s *Sequencer) tradeTime(tick models.RawTick) time.Time {
	now := s.now().In(s.instrument.Location())

	candidate := time.Date(now.Year(), now.Month(), now.Day(),
		tick.Hour, tick.Minute, tick.Second, int(time.Millisecond),
		s.instrument.Location())

	// A 23-o'clock tick seen just past local midnight belongs to the
	// previous calendar day.
	if now.Hour() == 0 && tick.Hour == 23 {
		candidate = candidate.AddDate(0, 0, -1)
	}

	if last := s.lastRecord(); last != nil {
		if candidate.Truncate(time.Second).Equal(last.Timestamp.Truncate(time.Second)) {
			candidate = last.Timestamp.Add(time.Millisecond)
		}
	}

	return candidate
}

func (s *Sequencer) lastRecord() *models.TradeRecord {
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}

func (s *Sequencer) push(record *models.TradeRecord) {
	if len(s.history) == historyCapacity {
		copy(s.history, s.history[1:])
		s.history = s.history[:historyCapacity-1]
	}
	s.history = append(s.history, record)
}
