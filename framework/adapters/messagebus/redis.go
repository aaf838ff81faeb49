// Package messagebus предоставляет адаптеры для различных message brokers.
package messagebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/transport"
)

// RedisConfig конфигурация для Redis адаптера
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	MaxRetries    int
	StreamMaxLen  int64 // Максимальная длина stream (0 = без ограничений)
	ConsumerGroup string
	BlockTimeout  time.Duration
	// ClaimIdle время, после которого неподтвержденное сообщение забирается повторно
	ClaimIdle  time.Duration
	StreamName string // Префикс имени stream
}

// Validate проверяет корректность конфигурации
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return core.NewError(core.ErrInvalidConfig, "redis addr cannot be empty")
	}
	if c.ConsumerGroup == "" {
		return core.NewError(core.ErrInvalidConfig, "redis consumer group cannot be empty")
	}
	return nil
}

// DefaultRedisConfig возвращает конфигурацию Redis по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		MaxRetries:    3,
		StreamMaxLen:  100000,
		ConsumerGroup: "catalog-projector",
		BlockTimeout:  5 * time.Second,
		ClaimIdle:     30 * time.Second,
		StreamName:    "catalog",
	}
}

// RedisAdapter реализация MessageBus через Redis Streams.
// Сообщение подтверждается XACK только после успешной обработки,
// иначе остается в pending и забирается повторно через XAUTOCLAIM.
type RedisAdapter struct {
	config   RedisConfig
	client   *redis.Client
	consumer string
	subs     map[string]context.CancelFunc
	mu       sync.RWMutex
	running  bool
	metrics  *metrics.Metrics
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewRedisAdapter создает новый Redis адаптер
func NewRedisAdapter(config RedisConfig, m *metrics.Metrics, log *logger.Logger) (*RedisAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: config.MaxRetries,
	})

	host, _ := os.Hostname()
	return &RedisAdapter{
		config:   config,
		client:   client,
		consumer: fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		subs:     make(map[string]context.CancelFunc),
		metrics:  m,
		log:      log.With("adapter", "redis"),
	}, nil
}

// Start проверяет подключение (реализация core.Lifecycle)
func (r *RedisAdapter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return core.Wrap(err, core.ErrInitializationFailed, "failed to connect to Redis")
	}
	r.running = true
	return nil
}

// Stop останавливает чтение streams (реализация core.Lifecycle)
func (r *RedisAdapter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	for stream, cancel := range r.subs {
		cancel()
		delete(r.subs, stream)
	}
	r.running = false
	r.mu.Unlock()

	r.wg.Wait()
	return r.client.Close()
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Name возвращает имя компонента (реализация core.Component)
func (r *RedisAdapter) Name() string {
	return "redis-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (r *RedisAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck выполняет PING
func (r *RedisAdapter) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Delivery возвращает гарантии доставки
func (r *RedisAdapter) Delivery() transport.Delivery {
	return transport.AtLeastOnce
}

// Publish публикует сообщение в stream (XADD)
func (r *RedisAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	start := time.Now()

	values := map[string]interface{}{"data": string(data)}
	if len(headers) > 0 {
		headersJSON, err := json.Marshal(headers)
		if err != nil {
			return fmt.Errorf("failed to encode headers: %w", err)
		}
		values["headers"] = string(headersJSON)
	}

	args := redis.XAddArgs{
		Stream: r.streamName(subject),
		Values: values,
	}
	if r.config.StreamMaxLen > 0 {
		args.MaxLen = r.config.StreamMaxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, &args).Err(); err != nil {
		r.metrics.RecordTransport(ctx, "redis", time.Since(start), false)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	r.metrics.RecordTransport(ctx, "redis", time.Since(start), true)
	return nil
}

// Subscribe подписывается на stream через consumer group (XREADGROUP)
func (r *RedisAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	stream := r.streamName(subject)

	err := r.client.XGroupCreateMkStream(ctx, stream, r.config.ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if old, ok := r.subs[stream]; ok {
		old()
	}
	r.subs[stream] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consume(subCtx, subject, stream, handler)
	}()
	return nil
}

func (r *RedisAdapter) consume(ctx context.Context, subject, stream string, handler transport.MessageHandler) {
	lastClaim := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}

		if r.config.ClaimIdle > 0 && time.Since(lastClaim) >= r.config.ClaimIdle {
			r.claimPending(ctx, subject, stream, handler)
			lastClaim = time.Now()
		}

		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.config.ConsumerGroup,
			Consumer: r.consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    r.config.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.log.Warn("redis read failed", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				r.handle(ctx, subject, stream, msg, handler)
			}
		}
	}
}

// claimPending забирает зависшие сообщения этой consumer group
func (r *RedisAdapter) claimPending(ctx context.Context, subject, stream string, handler transport.MessageHandler) {
	start := "0-0"
	for {
		msgs, next, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    r.config.ConsumerGroup,
			Consumer: r.consumer,
			MinIdle:  r.config.ClaimIdle,
			Start:    start,
			Count:    10,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn("redis autoclaim failed", "stream", stream, "error", err)
			}
			return
		}
		for _, msg := range msgs {
			r.handle(ctx, subject, stream, msg, handler)
		}
		if next == "0-0" || len(msgs) == 0 {
			return
		}
		start = next
	}
}

func (r *RedisAdapter) handle(ctx context.Context, subject, stream string, msg redis.XMessage, handler transport.MessageHandler) {
	mbMsg := &transport.Message{
		Subject: subject,
		Headers: make(map[string]string),
	}
	if data, ok := msg.Values["data"].(string); ok {
		mbMsg.Data = []byte(data)
	}
	if headersStr, ok := msg.Values["headers"].(string); ok {
		_ = json.Unmarshal([]byte(headersStr), &mbMsg.Headers)
	}

	start := time.Now()
	err := handler(ctx, mbMsg)
	r.metrics.RecordTransport(ctx, "redis", time.Since(start), err == nil)
	if err != nil {
		r.log.Warn("redis handler failed, message stays pending", "stream", stream, "id", msg.ID, "error", err)
		return
	}
	if err := r.client.XAck(ctx, stream, r.config.ConsumerGroup, msg.ID).Err(); err != nil && ctx.Err() == nil {
		r.log.Warn("redis ack failed", "stream", stream, "id", msg.ID, "error", err)
	}
}

// Unsubscribe отписывается от stream
func (r *RedisAdapter) Unsubscribe(subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream := r.streamName(subject)
	if cancel, ok := r.subs[stream]; ok {
		cancel()
		delete(r.subs, stream)
	}
	return nil
}

// streamName преобразует subject в имя stream
func (r *RedisAdapter) streamName(subject string) string {
	if r.config.StreamName != "" {
		return r.config.StreamName + ":" + subject
	}
	return "stream:" + subject
}
