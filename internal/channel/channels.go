package channel

import (
	"context"
	"sync"
	"time"

	"tickflow/logger"
	"tickflow/models"
)

// ChannelStats tracks delivery counters for the sink channels.
type ChannelStats struct {
	Sent    int64
	Dropped int64
}

// Channels fans freshly stored trade records out to the optional archival
// sinks. A channel is only allocated when its sink is enabled; sends
// never block the feed dispatch path - when a buffer is full the record
// is dropped for that sink and counted.
type Channels struct {
	Archive chan models.TradeRecord // parquet/S3 archiver
	Publish chan models.TradeRecord // kafka publisher

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(bufferSize int, archiveEnabled, publishEnabled bool) *Channels {
	log := logger.GetLogger()
	c := &Channels{log: log}
	if archiveEnabled {
		c.Archive = make(chan models.TradeRecord, bufferSize)
	}
	if publishEnabled {
		c.Publish = make(chan models.TradeRecord, bufferSize)
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"buffer_size": bufferSize,
		"archive":     archiveEnabled,
		"publish":     publishEnabled,
	}).Info("sink channels initialized")

	return c
}

func (c *Channels) Close() {
	if c.Archive != nil {
		close(c.Archive)
	}
	if c.Publish != nil {
		close(c.Publish)
	}
	c.log.WithComponent("channels").Info("sink channels closed")
}

// Send forwards a stored record to every enabled sink without blocking.
// It reports false when any sink had to drop the record.
func (c *Channels) Send(ctx context.Context, record models.TradeRecord) bool {
	delivered := true
	for _, ch := range []chan models.TradeRecord{c.Archive, c.Publish} {
		if ch == nil {
			continue
		}
		select {
		case ch <- record:
			c.statsMutex.Lock()
			c.stats.Sent++
			c.statsMutex.Unlock()
			logger.RecordChannelMessage("sink", 1)
		case <-ctx.Done():
			return false
		default:
			c.statsMutex.Lock()
			c.stats.Dropped++
			c.statsMutex.Unlock()
			delivered = false
		}
	}
	return delivered
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting periodically logs channel depth and counters.
func (c *Channels) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := c.GetStats()
				fields := logger.Fields{
					"sink_sent":    stats.Sent,
					"sink_dropped": stats.Dropped,
				}
				if c.Archive != nil {
					fields["archive_depth"] = len(c.Archive)
				}
				if c.Publish != nil {
					fields["publish_depth"] = len(c.Publish)
				}
				c.log.WithComponent("channels").WithFields(fields).Debug("channel metrics")
			}
		}
	}()
}
