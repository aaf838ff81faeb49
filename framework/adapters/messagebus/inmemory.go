// Package messagebus предоставляет адаптеры для различных message brokers.
package messagebus

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/transport"
)

// InMemoryConfig конфигурация для InMemory адаптера
type InMemoryConfig struct {
	// EnableOrdering синхронная FIFO доставка; ошибки обработчиков возвращаются из Publish
	EnableOrdering bool
	// MaxRedeliveries количество повторных доставок сообщения, обработчик которого вернул ошибку
	MaxRedeliveries int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		EnableOrdering:  false,
		MaxRedeliveries: 3,
	}
}

// InMemoryAdapter реализация MessageBus в памяти
type InMemoryAdapter struct {
	config      InMemoryConfig
	subscribers map[string][]transport.MessageHandler
	mu          sync.RWMutex
	running     bool
	inflight    sync.WaitGroup
}

// NewInMemoryAdapter создает новый InMemory адаптер
func NewInMemoryAdapter(config InMemoryConfig) *InMemoryAdapter {
	return &InMemoryAdapter{
		config:      config,
		subscribers: make(map[string][]transport.MessageHandler),
		running:     false,
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = true
	return nil
}

// Stop останавливает адаптер и ждет асинхронные доставки (реализация core.Lifecycle)
func (i *InMemoryAdapter) Stop(ctx context.Context) error {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return nil
	}
	i.running = false
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) IsRunning() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.running
}

// Name возвращает имя компонента (реализация core.Component)
func (i *InMemoryAdapter) Name() string {
	return "inmemory-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (i *InMemoryAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck для in-memory адаптера проверяет только состояние
func (i *InMemoryAdapter) HealthCheck(ctx context.Context) error {
	if !i.IsRunning() {
		return core.NewError(core.ErrInitializationFailed, "inmemory adapter is not running")
	}
	return nil
}

// Delivery возвращает гарантии доставки
func (i *InMemoryAdapter) Delivery() transport.Delivery {
	if i.config.MaxRedeliveries > 0 {
		return transport.AtLeastOnce
	}
	return transport.AtMostOnce
}

// Publish публикует сообщение в subject
func (i *InMemoryAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	i.mu.RLock()
	var handlers []transport.MessageHandler
	for pattern, h := range i.subscribers {
		if matchSubject(subject, pattern) {
			handlers = append(handlers, h...)
		}
	}
	i.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	msg := &transport.Message{
		Subject: subject,
		Data:    data,
		Headers: headers,
	}

	// Fan-out для всех подписчиков
	if i.config.EnableOrdering {
		// Синхронная обработка для FIFO
		var errs []error
		for _, handler := range handlers {
			if err := i.deliver(ctx, handler, msg); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, handler := range handlers {
		i.inflight.Add(1)
		go func(h transport.MessageHandler) {
			defer i.inflight.Done()
			_ = i.deliver(context.WithoutCancel(ctx), h, msg)
		}(handler)
	}
	return nil
}

// deliver вызывает обработчик, повторяя доставку при ошибке
func (i *InMemoryAdapter) deliver(ctx context.Context, handler transport.MessageHandler, msg *transport.Message) error {
	var err error
	for attempt := 0; attempt <= i.config.MaxRedeliveries; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// Subscribe подписывается на subject
func (i *InMemoryAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.subscribers[subject] = append(i.subscribers[subject], handler)
	return nil
}

// Unsubscribe отписывается от subject
func (i *InMemoryAdapter) Unsubscribe(subject string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.subscribers, subject)
	return nil
}

// Wait ждет завершения асинхронных доставок (для тестирования)
func (i *InMemoryAdapter) Wait() {
	i.inflight.Wait()
}

// GetSubscriberCount возвращает количество подписчиков для subject (для тестирования)
func (i *InMemoryAdapter) GetSubscriberCount(subject string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.subscribers[subject])
}

// matchSubject проверяет соответствие subject с wildcard паттерном
// Поддерживает NATS-style wildcards: * (один токен) и > (все токены)
func matchSubject(subject, pattern string) bool {
	if subject == pattern {
		return true
	}
	subjectParts := strings.Split(subject, ".")
	patternParts := strings.Split(pattern, ".")

	if len(patternParts) > len(subjectParts) {
		return false
	}

	for i, part := range patternParts {
		if part == ">" {
			return true // > matches all remaining tokens
		}
		if part == "*" {
			continue // * matches one token
		}
		if part != subjectParts[i] {
			return false
		}
	}

	return len(patternParts) == len(subjectParts)
}
