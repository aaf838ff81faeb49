// Package messagebus предоставляет адаптеры для различных message brokers.
package messagebus

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/transport"
)

// NATSConfig конфигурация для NATS адаптера
type NATSConfig struct {
	URL               string
	QueueGroup        string
	MaxReconnects     int
	ReconnectWait     time.Duration
	DrainTimeout      time.Duration
	ConnectionTimeout time.Duration
	TLS               *tls.Config
	Token             string
	Username          string
	Password          string
}

// Validate проверяет корректность конфигурации
func (c NATSConfig) Validate() error {
	if c.URL == "" {
		return core.NewError(core.ErrInvalidConfig, "nats URL cannot be empty")
	}
	if !strings.HasPrefix(c.URL, "nats://") && !strings.HasPrefix(c.URL, "tls://") {
		return core.NewError(core.ErrInvalidConfig, "nats URL must start with nats:// or tls://")
	}
	return nil
}

// DefaultNATSConfig возвращает конфигурацию NATS по умолчанию
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:               "nats://localhost:4222",
		QueueGroup:        "catalog-projector",
		MaxReconnects:     10,
		ReconnectWait:     2 * time.Second,
		DrainTimeout:      30 * time.Second,
		ConnectionTimeout: 5 * time.Second,
	}
}

// NATSAdapter реализация MessageBus через NATS.
// Подписки объединяются в queue group, поэтому несколько экземпляров проектора делят поток.
type NATSAdapter struct {
	config  NATSConfig
	conn    *nats.Conn
	subs    map[string]*nats.Subscription
	mu      sync.RWMutex
	running bool
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewNATSAdapter создает новый NATS адаптер
func NewNATSAdapter(config NATSConfig, m *metrics.Metrics, log *logger.Logger) (*NATSAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &NATSAdapter{
		config:  config,
		subs:    make(map[string]*nats.Subscription),
		metrics: m,
		log:     log.With("adapter", "nats"),
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (n *NATSAdapter) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return nil
	}

	opts := []nats.Option{
		nats.Name("catalog-projector"),
		nats.MaxReconnects(n.config.MaxReconnects),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.Timeout(n.config.ConnectionTimeout),
		nats.DrainTimeout(n.config.DrainTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				n.log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	if n.config.TLS != nil {
		opts = append(opts, nats.Secure(n.config.TLS))
	}
	if n.config.Token != "" {
		opts = append(opts, nats.Token(n.config.Token))
	}
	if n.config.Username != "" && n.config.Password != "" {
		opts = append(opts, nats.UserInfo(n.config.Username, n.config.Password))
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return core.Wrap(err, core.ErrInitializationFailed, "failed to connect to NATS")
	}
	n.conn = conn
	n.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (n *NATSAdapter) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	n.subs = make(map[string]*nats.Subscription)
	n.running = false

	// Drain дожидается обработки уже полученных сообщений
	if n.conn != nil && !n.conn.IsClosed() {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
			return fmt.Errorf("nats drain: %w", err)
		}
	}
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (n *NATSAdapter) IsRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.running
}

// Name возвращает имя компонента (реализация core.Component)
func (n *NATSAdapter) Name() string {
	return "nats-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (n *NATSAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck проверяет подключение к NATS
func (n *NATSAdapter) HealthCheck(ctx context.Context) error {
	conn := n.connection()
	if conn == nil || !conn.IsConnected() {
		return core.NewError(core.ErrInitializationFailed, "nats is not connected")
	}
	return nil
}

// Delivery возвращает гарантии доставки. Core NATS не хранит сообщения.
func (n *NATSAdapter) Delivery() transport.Delivery {
	return transport.AtMostOnce
}

func (n *NATSAdapter) connection() *nats.Conn {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.conn
}

// Publish публикует сообщение в subject
func (n *NATSAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	start := time.Now()
	conn := n.connection()
	if conn == nil {
		return core.NewError(core.ErrInitializationFailed, "nats adapter is not connected")
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := conn.PublishMsg(msg); err != nil {
		n.metrics.RecordTransport(ctx, "nats", time.Since(start), false)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	n.metrics.RecordTransport(ctx, "nats", time.Since(start), true)
	return nil
}

// Subscribe подписывается на subject в составе queue group
func (n *NATSAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	conn := n.connection()
	if conn == nil {
		return core.NewError(core.ErrInitializationFailed, "nats adapter is not connected")
	}

	cb := func(msg *nats.Msg) {
		start := time.Now()
		err := handler(ctx, fromNATS(msg))
		n.metrics.RecordTransport(ctx, "nats", time.Since(start), err == nil)
		if err != nil {
			// Core NATS не умеет повторную доставку: сообщение теряется
			n.log.Error("nats handler failed", "subject", msg.Subject, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if n.config.QueueGroup != "" {
		sub, err = conn.QueueSubscribe(subject, n.config.QueueGroup, cb)
	} else {
		sub, err = conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.mu.Lock()
	n.subs[subject] = sub
	n.mu.Unlock()
	return nil
}

// Unsubscribe отписывается от subject
func (n *NATSAdapter) Unsubscribe(subject string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub, exists := n.subs[subject]
	if !exists {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	delete(n.subs, subject)
	return nil
}

func fromNATS(msg *nats.Msg) *transport.Message {
	out := &transport.Message{
		Subject: msg.Subject,
		Data:    msg.Data,
		Headers: make(map[string]string, len(msg.Header)),
	}
	for k, vals := range msg.Header {
		if len(vals) > 0 {
			out.Headers[k] = vals[0]
		}
	}
	return out
}
