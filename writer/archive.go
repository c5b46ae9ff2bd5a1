// Package writer holds the optional archival sinks for stored trade
// records: a parquet-to-S3 archiver and a kafka publisher. Both consume
// the archive channel and never sit on the feed dispatch path.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "tickflow/config"
	"tickflow/logger"
	"tickflow/models"
)

// ParquetTrade is the parquet schema for archived trade records.
type ParquetTrade struct {
	ID          string  `parquet:"name=uuid, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProductID   string  `parquet:"name=product_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProductCode string  `parquet:"name=product_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProductName string  `parquet:"name=product_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp   int64   `parquet:"name=datetime, type=INT64"`
	Ask         float64 `parquet:"name=ask_price, type=DOUBLE"`
	Bid         float64 `parquet:"name=bid_price, type=DOUBLE"`
	Settlement  float64 `parquet:"name=settlement_price, type=DOUBLE"`
	Volume      int64   `parquet:"name=volume, type=INT64"`
	Amount      int64   `parquet:"name=amount, type=INT64"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory
// writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }
func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}
func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// TradeArchiver buffers stored trade records and periodically flushes
// them as parquet files to S3. A lost archive file only loses the
// secondary copy; MongoDB remains the system of record.
type TradeArchiver struct {
	config      *appconfig.Config
	records     <-chan models.TradeRecord
	s3Client    *s3.Client
	ctx         context.Context
	wg          *sync.WaitGroup
	mu          sync.RWMutex
	running     bool
	log         *logger.Log
	buffer      []models.TradeRecord
	flushTicker *time.Ticker
}

// NewTradeArchiver creates the archiver and validates AWS credentials.
func NewTradeArchiver(cfg *appconfig.Config, records <-chan models.TradeRecord) (*TradeArchiver, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("trade_archiver").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("trade archiver initialized")

	return &TradeArchiver{
		config:   cfg,
		records:  records,
		s3Client: s3Client,
		wg:       &sync.WaitGroup{},
		log:      log,
	}, nil
}

func (a *TradeArchiver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("trade archiver already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	log := a.log.WithComponent("trade_archiver").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting trade archiver")

	a.flushTicker = time.NewTicker(a.config.Writer.FlushInterval)

	a.wg.Add(1)
	go a.run()

	log.Info("trade archiver started successfully")
	return nil
}

func (a *TradeArchiver) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	a.log.WithComponent("trade_archiver").Info("stopping trade archiver")
	a.wg.Wait()
	a.log.WithComponent("trade_archiver").Info("trade archiver stopped")
}

func (a *TradeArchiver) run() {
	defer a.wg.Done()

	log := a.log.WithComponent("trade_archiver").WithFields(logger.Fields{"worker": "archive"})

	for {
		select {
		case <-a.ctx.Done():
			a.flush("shutdown")
			log.Info("worker stopped due to context cancellation")
			return
		case <-a.flushTicker.C:
			a.flush("interval")
		case record, ok := <-a.records:
			if !ok {
				a.flush("channel closed")
				log.Info("archive channel closed, worker stopping")
				return
			}
			a.mu.Lock()
			a.buffer = append(a.buffer, record)
			a.mu.Unlock()
		}
	}
}

func (a *TradeArchiver) flush(reason string) {
	a.mu.Lock()
	records := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	if len(records) == 0 {
		return
	}

	log := a.log.WithComponent("trade_archiver").WithFields(logger.Fields{
		"records": len(records),
		"reason":  reason,
	})
	log.Info("flushing trade records")

	data, err := a.createParquetFile(records)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		return
	}

	key := a.generateS3Key(records[0].ProductCode, records[len(records)-1].Timestamp)
	if err := a.uploadToS3(key, data); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"bucket": a.config.Storage.S3.Bucket,
			"s3_key": key,
		}).Error("failed to upload to S3")
		return
	}

	logger.RecordChannelMessage("s3_archive", len(data))
	log.WithFields(logger.Fields{
		"s3_key":    key,
		"file_size": len(data),
	}).Info("trade records archived")
}

func (a *TradeArchiver) generateS3Key(productCode string, at time.Time) string {
	timePath := a.config.Writer.TimeFormat
	timePath = strings.ReplaceAll(timePath, "{year}", fmt.Sprintf("%04d", at.Year()))
	timePath = strings.ReplaceAll(timePath, "{month}", fmt.Sprintf("%02d", at.Month()))
	timePath = strings.ReplaceAll(timePath, "{day}", fmt.Sprintf("%02d", at.Day()))

	filename := fmt.Sprintf("tickflow_%s_%s.parquet", productCode, at.UTC().Format("20060102150405"))
	key := filepath.Join(fmt.Sprintf("product=%s", productCode), timePath, filename)
	return filepath.ToSlash(key)
}

func (a *TradeArchiver) createParquetFile(records []models.TradeRecord) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(ParquetTrade), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch a.config.Writer.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, record := range records {
		row := ParquetTrade{
			ID:          record.ID,
			ProductID:   record.ProductID,
			ProductCode: record.ProductCode,
			ProductName: record.ProductName,
			Timestamp:   record.Timestamp.UnixMilli(),
			Ask:         record.Ask,
			Bid:         record.Bid,
			Settlement:  record.Settlement,
			Volume:      record.Volume,
			Amount:      record.Amount,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}

func (a *TradeArchiver) uploadToS3(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":     "parquet",
			"compression":      a.config.Writer.Compression,
			"tickflow-version": a.config.Tickflow.Version,
		},
	}

	// Let an in-flight upload finish during shutdown.
	ctx := context.WithoutCancel(a.ctx)
	if _, err := a.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", a.config.Storage.S3.Bucket, err)
	}
	return nil
}
