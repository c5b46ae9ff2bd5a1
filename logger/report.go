package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	feedErrors      int64
	storeErrors     int64
	feedWarns       int64
	storeWarns      int64
	ticksRead       int64
	snapshotTicks   int64
	tradesStored    int64
	duplicateTrades int64
	barsUpserted    int64
	reconnects      int64
	keepalives      int64
	channels        sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&feedWarns, 1)
	} else if strings.Contains(component, "store") || strings.Contains(component, "writer") {
		atomic.AddInt64(&storeWarns, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&feedErrors, 1)
	} else if strings.Contains(component, "store") || strings.Contains(component, "writer") {
		atomic.AddInt64(&storeErrors, 1)
	}
}

// IncrementTickRead counts one inbound tick frame of the given size.
func IncrementTickRead(size int) {
	atomic.AddInt64(&ticksRead, 1)
	recordChannel("feed_ws", size)
}

// IncrementSnapshotTick counts one tick replayed from a recent-history
// snapshot frame.
func IncrementSnapshotTick() {
	atomic.AddInt64(&snapshotTicks, 1)
}

// IncrementTradeStored counts one freshly stored trade record.
func IncrementTradeStored() {
	atomic.AddInt64(&tradesStored, 1)
}

// IncrementDuplicateTrade counts one re-delivered tick absorbed by the
// storage uniqueness constraint.
func IncrementDuplicateTrade() {
	atomic.AddInt64(&duplicateTrades, 1)
}

// IncrementBarUpserted counts one minute-bar write.
func IncrementBarUpserted() {
	atomic.AddInt64(&barsUpserted, 1)
}

// IncrementReconnect counts one feed reconnect attempt.
func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

// IncrementKeepalive counts one keepalive re-subscription.
func IncrementKeepalive() {
	atomic.AddInt64(&keepalives, 1)
}

// RecordChannelMessage tracks message and byte counts for a named channel.
func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of system and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"feed_errors":      atomic.LoadInt64(&feedErrors),
		"store_errors":     atomic.LoadInt64(&storeErrors),
		"feed_warns":       atomic.LoadInt64(&feedWarns),
		"store_warns":      atomic.LoadInt64(&storeWarns),
		"ticks_read":       atomic.LoadInt64(&ticksRead),
		"snapshot_ticks":   atomic.LoadInt64(&snapshotTicks),
		"trades_stored":    atomic.LoadInt64(&tradesStored),
		"duplicate_trades": atomic.LoadInt64(&duplicateTrades),
		"bars_upserted":    atomic.LoadInt64(&barsUpserted),
		"reconnects":       atomic.LoadInt64(&reconnects),
		"keepalives":       atomic.LoadInt64(&keepalives),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPct,
		"memory_mb":        int64(memStats.Used) / 1024 / 1024,
		"disk_mb":          int64(diskStats.Used) / 1024 / 1024,
		"channels":         channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("TicksRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ticksRead)))},
		{MetricName: aws.String("SnapshotTicks"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&snapshotTicks)))},
		{MetricName: aws.String("TradesStored"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&tradesStored)))},
		{MetricName: aws.String("DuplicateTrades"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&duplicateTrades)))},
		{MetricName: aws.String("BarsUpserted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&barsUpserted)))},
		{MetricName: aws.String("Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&reconnects)))},
		{MetricName: aws.String("Keepalives"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&keepalives)))},
		{MetricName: aws.String("FeedErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&feedErrors)))},
		{MetricName: aws.String("StoreErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&storeErrors)))},
	}

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
