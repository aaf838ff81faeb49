// Package messagebus предоставляет адаптеры для различных message brokers.
package messagebus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/transport"
)

// KafkaConfig конфигурация для Kafka адаптера
type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	Compression    string // none, gzip, snappy, lz4, zstd
	BatchSize      int
	FlushInterval  time.Duration
	ConsumerConfig KafkaConsumerConfig
	ProducerConfig KafkaProducerConfig
}

// Validate проверяет корректность конфигурации
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return core.NewError(core.ErrInvalidConfig, "kafka brokers cannot be empty")
	}
	for i, broker := range c.Brokers {
		// Простая проверка формата host:port
		if broker == "" || !strings.Contains(broker, ":") {
			return core.Errorf(core.ErrInvalidConfig, "broker[%d] must be in format host:port", i)
		}
	}
	if c.GroupID == "" {
		return core.NewError(core.ErrInvalidConfig, "kafka group id cannot be empty")
	}
	return nil
}

// KafkaConsumerConfig конфигурация для Kafka consumer
type KafkaConsumerConfig struct {
	MinBytes    int
	MaxBytes    int
	MaxWait     time.Duration
	StartOffset int64 // -2 (earliest), -1 (latest)
	// MaxAttempts попыток обработки сообщения до отправки в DLQ
	MaxAttempts int
	RetryDelay  time.Duration
}

// KafkaProducerConfig конфигурация для Kafka producer
type KafkaProducerConfig struct {
	RequiredAcks int // 0, 1, -1 (all)
	MaxAttempts  int
}

// DefaultKafkaConfig возвращает конфигурацию Kafka по умолчанию
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		GroupID:       "catalog-projector",
		Compression:   "snappy",
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
		ConsumerConfig: KafkaConsumerConfig{
			MinBytes:    10e3, // 10KB
			MaxBytes:    10e6, // 10MB
			MaxWait:     1 * time.Second,
			StartOffset: kafka.FirstOffset,
			MaxAttempts: 5,
			RetryDelay:  500 * time.Millisecond,
		},
		ProducerConfig: KafkaProducerConfig{
			RequiredAcks: -1, // all
			MaxAttempts:  3,
		},
	}
}

// KafkaAdapter реализация MessageBus через Kafka.
// Offset фиксируется только после успешной обработки; ключ сообщения берется
// из заголовка partition_key, поэтому события одного курса попадают в одну партицию.
type KafkaAdapter struct {
	config  KafkaConfig
	writer  *kafka.Writer
	subs    map[string]*kafkaSubscription
	mu      sync.RWMutex
	running bool
	metrics *metrics.Metrics
	log     *logger.Logger
	wg      sync.WaitGroup
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
}

// NewKafkaAdapter создает новый Kafka адаптер
func NewKafkaAdapter(config KafkaConfig, m *metrics.Metrics, log *logger.Logger) (*KafkaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	adapter := &KafkaAdapter{
		config:  config,
		subs:    make(map[string]*kafkaSubscription),
		metrics: m,
		log:     log.With("adapter", "kafka"),
	}

	adapter.writer = &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(config.ProducerConfig.RequiredAcks),
		MaxAttempts:  config.ProducerConfig.MaxAttempts,
		BatchSize:    config.BatchSize,
		BatchTimeout: config.FlushInterval,
		Compression:  getCompression(config.Compression),
	}

	return adapter, nil
}

// getCompression преобразует строку в kafka.Compression
func getCompression(compression string) kafka.Compression {
	switch compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.running = true
	return nil
}

// Stop останавливает чтение и закрывает writer (реализация core.Lifecycle)
func (k *KafkaAdapter) Stop(ctx context.Context) error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	for topic, sub := range k.subs {
		sub.cancel()
		delete(k.subs, topic)
	}
	k.running = false
	k.mu.Unlock()

	k.wg.Wait()
	return k.writer.Close()
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) IsRunning() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.running
}

// Name возвращает имя компонента (реализация core.Component)
func (k *KafkaAdapter) Name() string {
	return "kafka-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (k *KafkaAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck проверяет доступность хотя бы одного брокера
func (k *KafkaAdapter) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, broker := range k.config.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	return fmt.Errorf("kafka brokers unreachable: %w", lastErr)
}

// Delivery возвращает гарантии доставки
func (k *KafkaAdapter) Delivery() transport.Delivery {
	return transport.AtLeastOnce
}

// Publish публикует сообщение в топик
func (k *KafkaAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	start := time.Now()

	msg := kafka.Message{
		Topic: subject,
		Value: data,
	}
	if key := headers[transport.HeaderPartitionKey]; key != "" {
		msg.Key = []byte(key)
	}
	msg.Headers = make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.metrics.RecordTransport(ctx, "kafka", time.Since(start), false)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	k.metrics.RecordTransport(ctx, "kafka", time.Since(start), true)
	return nil
}

// Subscribe подписывается на топик в составе consumer group
func (k *KafkaAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.config.Brokers,
		Topic:       subject,
		GroupID:     k.config.GroupID,
		MinBytes:    k.config.ConsumerConfig.MinBytes,
		MaxBytes:    k.config.ConsumerConfig.MaxBytes,
		MaxWait:     k.config.ConsumerConfig.MaxWait,
		StartOffset: k.config.ConsumerConfig.StartOffset,
	})

	subCtx, cancel := context.WithCancel(ctx)

	k.mu.Lock()
	if old, ok := k.subs[subject]; ok {
		old.cancel()
	}
	k.subs[subject] = &kafkaSubscription{reader: reader, cancel: cancel}
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		defer func() { _ = reader.Close() }()
		k.consume(subCtx, reader, handler)
	}()
	return nil
}

func (k *KafkaAdapter) consume(ctx context.Context, reader *kafka.Reader, handler transport.MessageHandler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			k.log.Warn("kafka fetch failed", "topic", reader.Config().Topic, "error", err)
			continue
		}

		mbMsg := &transport.Message{
			Subject: msg.Topic,
			Data:    msg.Value,
			Headers: make(map[string]string, len(msg.Headers)),
		}
		for _, h := range msg.Headers {
			mbMsg.Headers[h.Key] = string(h.Value)
		}

		if err := k.handle(ctx, handler, mbMsg); err != nil {
			if ctx.Err() != nil {
				// Offset не фиксируется: сообщение будет прочитано повторно
				return
			}
			k.log.Error("kafka message exhausted retries", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			if dlqErr := k.DeadLetterQueue(ctx, msg.Topic, mbMsg, err.Error()); dlqErr != nil {
				k.log.Error("kafka dlq publish failed", "topic", msg.Topic, "error", dlqErr)
				return
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.log.Warn("kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// handle повторяет обработку сообщения, не сдвигая offset партиции
func (k *KafkaAdapter) handle(ctx context.Context, handler transport.MessageHandler, msg *transport.Message) error {
	attempts := k.config.ConsumerConfig.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err = handler(ctx, msg)
		k.metrics.RecordTransport(ctx, "kafka", time.Since(start), err == nil)
		if err == nil {
			return nil
		}
		k.log.Warn("kafka handler failed", "topic", msg.Subject, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(k.config.ConsumerConfig.RetryDelay * time.Duration(attempt)):
		}
	}
	return err
}

// Unsubscribe отписывается от топика
func (k *KafkaAdapter) Unsubscribe(subject string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	sub, exists := k.subs[subject]
	if !exists {
		return nil
	}
	sub.cancel()
	delete(k.subs, subject)
	return nil
}

// DeadLetterQueue отправляет failed messages в DLQ топик
func (k *KafkaAdapter) DeadLetterQueue(ctx context.Context, topic string, msg *transport.Message, reason string) error {
	headers := make(map[string]string, len(msg.Headers)+3)
	for key, v := range msg.Headers {
		headers[key] = v
	}
	headers["original_topic"] = topic
	headers["reason"] = reason
	headers["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return k.Publish(ctx, topic+".dlq", msg.Data, headers)
}
