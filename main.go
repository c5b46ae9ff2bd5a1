package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appconfig "tickflow/config"
	"tickflow/internal/channel"
	"tickflow/logger"
	"tickflow/models"
	"tickflow/processor"
	"tickflow/reader"
	"tickflow/store"
	"tickflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	product := flag.String("product", "", "Instrument code to ingest (overrides feed.product)")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *product != "" {
		cfg.Feed.Product = *product
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	instrument, err := models.LookupInstrument(cfg.Feed.Product)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"known_codes": models.InstrumentCodes(),
		}).Error("unknown instrument")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Tickflow.Name,
		"version":     cfg.Tickflow.Version,
		"environment": appconfig.AppEnvironment(),
		"product":     instrument.Code,
		"timezone":    instrument.Timezone,
	}).Info("starting tickflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Logging.DashboardName)
		logger.StartReport(ctx, log, 30*time.Second)
	}

	var (
		trades     store.TradeStore
		bars       store.BarStore
		mongoStore *store.MongoStore
	)
	if cfg.Storage.Mongo.URI != "" {
		mongoStore, err = store.NewMongoStore(ctx, cfg.Storage.Mongo)
		if err != nil {
			log.WithError(err).Error("failed to initialize mongodb store")
			os.Exit(1)
		}
		trades = mongoStore.Trades()
		bars = mongoStore.Bars()
	} else {
		log.WithComponent("main").Warn("no mongo uri configured; using in-memory store")
		memStore := store.NewMemoryStore()
		trades = memStore.Trades()
		bars = memStore.Bars()
	}

	var channels *channel.Channels
	var archiver *writer.TradeArchiver
	var publisher *writer.KafkaPublisher

	if cfg.Storage.S3.Enabled || cfg.Storage.Kafka.Enabled {
		channels = channel.NewChannels(cfg.Channels.ArchiveBuffer, cfg.Storage.S3.Enabled, cfg.Storage.Kafka.Enabled)
		defer channels.Close()
		channels.StartMetricsReporting(ctx, 30*time.Second)

		if cfg.Storage.S3.Enabled {
			archiver, err = writer.NewTradeArchiver(cfg, channels.Archive)
			if err != nil {
				log.WithError(err).Error("failed to create trade archiver")
				os.Exit(1)
			}
		}
		if cfg.Storage.Kafka.Enabled {
			publisher, err = writer.NewKafkaPublisher(cfg, channels.Publish)
			if err != nil {
				log.WithError(err).Error("failed to create kafka publisher")
				os.Exit(1)
			}
		}
	} else {
		log.WithComponent("main").Info("archival sinks disabled")
	}

	sequencer := processor.NewSequencer(instrument)
	aggregator := processor.NewBarAggregator(bars)
	session := reader.NewFeedSession(cfg, instrument, sequencer, trades, aggregator, channels)

	if archiver != nil {
		if err := archiver.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start trade archiver")
			os.Exit(1)
		}
	}
	if publisher != nil {
		if err := publisher.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start kafka publisher")
			os.Exit(1)
		}
	}
	if err := session.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start feed session")
		os.Exit(1)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		session.Stop()
		if archiver != nil {
			archiver.Stop()
		}
		if publisher != nil {
			publisher.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	if mongoStore != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mongoStore.Close(closeCtx); err != nil {
			log.WithError(err).Warn("failed to close mongodb client")
		}
		closeCancel()
	}

	log.Info("tickflow stopped")
}
