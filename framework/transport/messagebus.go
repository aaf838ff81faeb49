// Package transport предоставляет абстракции для работы с message bus.
package transport

import (
	"context"
)

// Стандартные заголовки сообщений
const (
	// HeaderEventType тип события в сообщении
	HeaderEventType = "event_type"
	// HeaderPartitionKey ключ партиционирования (id агрегата)
	HeaderPartitionKey = "partition_key"
	// HeaderEventID идентификатор события
	HeaderEventID = "event_id"
)

// Message представляет сообщение в очереди
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// Header возвращает значение заголовка или пустую строку
func (m *Message) Header(key string) string {
	if m == nil || m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// MessageHandler обработчик сообщений.
// Ошибка означает, что сообщение не подтверждается и может быть доставлено повторно.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscriber подписчик на сообщения
type Subscriber interface {
	// Subscribe подписывается на subject и вызывает handler при получении сообщения
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error
	// Unsubscribe отписывается от subject
	Unsubscribe(subject string) error
}

// Publisher публикатор сообщений
type Publisher interface {
	// Publish публикует сообщение в subject
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// MessageBus объединяет возможности публикации и подписки
type MessageBus interface {
	Publisher
	Subscriber
}

// Delivery гарантии доставки сообщений
type Delivery int

const (
	// AtMostOnce доставка максимум один раз (может потеряться)
	AtMostOnce Delivery = iota
	// AtLeastOnce доставка минимум один раз (может дублироваться)
	AtLeastOnce
)

func (d Delivery) String() string {
	if d == AtLeastOnce {
		return "at-least-once"
	}
	return "at-most-once"
}

// DeliveryReporter адаптер, сообщающий свои гарантии доставки
type DeliveryReporter interface {
	Delivery() Delivery
}
