package reader

import (
	"time"

	"github.com/gorilla/websocket"

	"tickflow/logger"
)

// keepalive re-issues the subscription frames when the session has been
// silent longer than the adaptive threshold. It runs for the lifetime of
// one subscribed connection, shares only the last-activity timestamp with
// the dispatch path and never touches sequencer state. On cancellation it
// closes the transport, which unblocks the read loop.
func (s *FeedSession) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	defer s.wg.Done()

	log := s.log.WithComponent("feed_keepalive").WithFields(logger.Fields{"product": s.instrument.Code})
	log.Info("keepalive scheduler started")

	ticker := time.NewTicker(s.config.Feed.Keepalive.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Info("keepalive scheduler stopped")
			return
		case <-s.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			log.Info("keepalive scheduler stopped due to context cancellation")
			return
		case <-ticker.C:
			threshold := s.keepaliveThreshold(time.Now())
			if idle := s.idleTime(); idle >= threshold {
				if err := s.sendSubscriptions(conn); err != nil {
					log.WithError(err).Warn("keepalive resubscribe failed")
					continue
				}
				s.markActivity()
				logger.IncrementKeepalive()
				log.WithFields(logger.Fields{
					"idle":      idle.String(),
					"threshold": threshold.String(),
				}).Debug("resubscribed after idle period")
			}
		}
	}
}

// keepaliveThreshold picks the silence threshold for the given moment: a
// short interval on trading days, an hour-scale one when the instrument's
// local calendar day is a weekend and the market is closed anyway.
func (s *FeedSession) keepaliveThreshold(now time.Time) time.Duration {
	local := now.In(s.instrument.Location())
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return s.config.Feed.Keepalive.WeekendInterval
	default:
		return s.config.Feed.Keepalive.WeekdayInterval
	}
}
