// Package reader owns the feed connection: the websocket session state
// machine, frame dispatch into the processing pipeline, the keepalive
// scheduler and the reconnect loop.
package reader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	appconfig "tickflow/config"
	"tickflow/internal/channel"
	"tickflow/logger"
	"tickflow/models"
	"tickflow/processor"
	"tickflow/store"
)

// FeedSession keeps one instrument's subscription alive against the feed
// endpoint and drives every inbound frame through the tick pipeline.
// Sequencer state is shared across reconnects; only a process restart
// resets it. Frames are dispatched one at a time, in delivery order - the
// derived timestamp ordering depends on this serial processing.
type FeedSession struct {
	config     *appconfig.Config
	instrument models.Instrument
	sequencer  *processor.Sequencer
	trades     store.TradeStore
	aggregator *processor.BarAggregator
	archive    *channel.Channels

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	writeMu      sync.Mutex
	lastActivity atomic.Int64 // unix nanoseconds of the last frame or keepalive
}

// NewFeedSession wires the session to its pipeline. The archive channels
// may be nil when no archival sink is configured.
func NewFeedSession(
	cfg *appconfig.Config,
	instrument models.Instrument,
	sequencer *processor.Sequencer,
	trades store.TradeStore,
	aggregator *processor.BarAggregator,
	archive *channel.Channels,
) *FeedSession {
	return &FeedSession{
		config:     cfg,
		instrument: instrument,
		sequencer:  sequencer,
		trades:     trades,
		aggregator: aggregator,
		archive:    archive,
		wg:         &sync.WaitGroup{},
		log:        logger.GetLogger(),
	}
}

// Start launches the connect/dispatch loop. It reconnects indefinitely
// until the context is cancelled.
func (s *FeedSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("feed session already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	log := s.log.WithComponent("feed_session").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{
		"url":      s.config.Feed.URL,
		"product":  s.instrument.Code,
		"timezone": s.instrument.Timezone,
	}).Info("starting feed session")

	s.wg.Add(1)
	go s.run()

	log.Info("feed session started successfully")
	return nil
}

// Stop waits for the session goroutines to finish.
func (s *FeedSession) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.WithComponent("feed_session").Info("stopping feed session")
	s.wg.Wait()
	s.log.WithComponent("feed_session").Info("feed session stopped")
}

// run is the reconnect loop. Repeated rapid failures are paced by the
// limiter so an unreachable endpoint is not hot-looped.
func (s *FeedSession) run() {
	defer s.wg.Done()

	log := s.log.WithComponent("feed_session").WithFields(logger.Fields{
		"product": s.instrument.Code,
		"worker":  "feed_stream",
	})

	limiter := rate.NewLimiter(rate.Every(s.config.Feed.ReconnectDelay), 1)

	for {
		if s.ctx.Err() != nil {
			return
		}
		if err := limiter.Wait(s.ctx); err != nil {
			return
		}

		dialer := websocket.Dialer{HandshakeTimeout: s.config.Feed.DialTimeout}
		conn, _, err := dialer.Dial(s.config.Feed.URL, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect to feed, retrying")
			logger.IncrementReconnect()
			continue
		}

		log.Info("feed connected")
		s.session(conn)
		log.Warn("feed disconnected, reconnecting")
		logger.IncrementReconnect()
	}
}

// session drives a single connection from subscribe to failure. The read
// loop is the sole frame dispatcher; the keepalive goroutine only writes
// control frames and closes the transport on cancellation.
func (s *FeedSession) session(conn *websocket.Conn) {
	log := s.log.WithComponent("feed_session").WithFields(logger.Fields{"product": s.instrument.Code})

	if err := s.sendSubscriptions(conn); err != nil {
		log.WithError(err).Warn("failed to subscribe")
		conn.Close()
		return
	}
	s.markActivity()

	done := make(chan struct{})
	s.wg.Add(1)
	go s.keepalive(conn, done)

	defer func() {
		close(done)
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				log.WithError(err).Warn("feed read error")
			}
			return
		}
		s.markActivity()
		s.dispatch(msg)
	}
}

// sendSubscriptions issues the two control frames that open (or refresh)
// the instrument subscription.
func (s *FeedSession) sendSubscriptions(conn *websocket.Conn) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, models.SubscribeFrame(s.instrument.Code)); err != nil {
		return fmt.Errorf("send subscribe frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, models.RecentFrame()); err != nil {
		return fmt.Errorf("send recent frame: %w", err)
	}
	return nil
}

func (s *FeedSession) markActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *FeedSession) idleTime() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.lastActivity.Load())
}

// dispatch routes one decoded frame. Malformed frames are logged and
// dropped without touching sequencer state.
func (s *FeedSession) dispatch(msg []byte) {
	log := s.log.WithComponent("feed_session").WithFields(logger.Fields{"product": s.instrument.Code})

	frame, err := models.DecodeFrame(msg)
	if err != nil {
		log.WithError(err).Warn("dropping malformed frame")
		return
	}

	switch frame.Kind {
	case models.FrameTick:
		logger.IncrementTickRead(len(msg))
		s.handleTick(frame.Tick)

	case models.FramePriceScale:
		s.sequencer.SetScale(frame.Scale)
		log.WithFields(logger.Fields{"scale": frame.Scale}).Debug("price scale updated")

	case models.FrameDailyVolume:
		if s.sequencer.CorrectVolume(frame.DailyVolume) {
			log.WithFields(logger.Fields{"volume": frame.DailyVolume}).Debug("volume ratchet advanced")
		}

	case models.FrameSnapshot:
		s.sequencer.SetScale(frame.Scale)
		log.WithFields(logger.Fields{"ticks": len(frame.Ticks), "scale": frame.Scale}).Info("replaying recent history snapshot")
		for _, payload := range frame.Ticks {
			logger.IncrementSnapshotTick()
			s.handleTick(payload)
		}

	default:
		log.WithFields(logger.Fields{"type": frame.Type}).Debug("ignoring unknown frame type")
	}
}

// handleTick runs one tick payload through parse, sequencing, the
// deduplicating store and bar aggregation. By the time the store is
// reached the sequencer has already advanced past this tick, so a store
// failure is logged and the tick is not retried.
func (s *FeedSession) handleTick(payload string) {
	log := s.log.WithComponent("feed_session").WithFields(logger.Fields{"product": s.instrument.Code})

	tick, err := processor.ParseTick(payload)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"payload": payload}).Warn("dropping malformed tick")
		return
	}

	record := s.sequencer.Process(tick)

	// Let the in-flight record finish its store/aggregate cycle even when
	// the session is being cancelled.
	ctx := context.WithoutCancel(s.ctx)

	result, err := s.trades.Insert(ctx, record)
	if err != nil {
		log.WithError(err).Error("failed to store trade record")
		return
	}
	if result == store.Duplicate {
		logger.IncrementDuplicateTrade()
		log.WithFields(logger.Fields{
			"datetime": record.Timestamp.Format(time.RFC3339Nano),
		}).Debug("trade already stored")
		return
	}
	logger.IncrementTradeStored()

	if err := s.aggregator.Apply(ctx, record); err != nil {
		log.WithError(err).Error("failed to update minute bar")
	}

	if s.archive != nil {
		if !s.archive.Send(s.ctx, *record) && s.ctx.Err() == nil {
			log.Warn("archive channel is full, dropping record")
		}
	}
}
