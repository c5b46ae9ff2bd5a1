package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	kafka "github.com/segmentio/kafka-go"

	appconfig "tickflow/config"
	"tickflow/logger"
	"tickflow/models"
)

// KafkaPublisher forwards stored trade records to a kafka topic for
// downstream analytics consumers.
type KafkaPublisher struct {
	config  *appconfig.Config
	records <-chan models.TradeRecord
	writer  *kafka.Writer
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewKafkaPublisher(cfg *appconfig.Config, records <-chan models.TradeRecord) (*KafkaPublisher, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	kp := &KafkaPublisher{
		config:  cfg,
		records: records,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		wg:  &sync.WaitGroup{},
		log: logger.GetLogger(),
	}
	kp.log.WithComponent("kafka_publisher").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Info("kafka publisher initialized")
	return kp, nil
}

func (kp *KafkaPublisher) Start(ctx context.Context) error {
	kp.mu.Lock()
	if kp.running {
		kp.mu.Unlock()
		return fmt.Errorf("kafka publisher already running")
	}
	kp.running = true
	kp.ctx = ctx
	kp.mu.Unlock()

	kp.log.WithComponent("kafka_publisher").Info("starting kafka publisher")

	kp.wg.Add(1)
	go kp.run()

	return nil
}

func (kp *KafkaPublisher) run() {
	defer kp.wg.Done()

	for {
		select {
		case <-kp.ctx.Done():
			return
		case record, ok := <-kp.records:
			if !ok {
				return
			}
			data, err := json.Marshal(record)
			if err != nil {
				kp.log.WithComponent("kafka_publisher").WithError(err).Warn("failed to marshal trade record")
				continue
			}
			msg := kafka.Message{
				Key:   []byte(record.ProductCode),
				Value: data,
			}
			if err := kp.writer.WriteMessages(kp.ctx, msg); err != nil {
				kp.log.WithComponent("kafka_publisher").WithError(err).Warn("failed to publish trade record")
			} else {
				kp.log.WithComponent("kafka_publisher").WithFields(logger.Fields{
					"product_code": record.ProductCode,
					"datetime":     record.Timestamp,
				}).Debug("trade record published")
			}
		}
	}
}

func (kp *KafkaPublisher) Stop() {
	kp.mu.Lock()
	kp.running = false
	kp.mu.Unlock()

	kp.log.WithComponent("kafka_publisher").Info("stopping kafka publisher")
	kp.writer.Close()
	kp.wg.Wait()
	kp.log.WithComponent("kafka_publisher").Info("kafka publisher stopped")
}
