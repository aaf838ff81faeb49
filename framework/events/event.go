// Package events предоставляет базовые интерфейсы для работы с интеграционными событиями.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event представляет интеграционное событие
type Event interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает тип события
	EventType() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
	// AggregateID возвращает идентификатор агрегата
	AggregateID() string
	// Metadata возвращает метаданные события
	Metadata() EventMetadata
}

// Partitioned событие, которое задает ключ упорядочивания.
// События с одинаковым ключом обрабатываются последовательно.
type Partitioned interface {
	PartitionKey() string
}

// Creation событие, которое создает сущность с указанным идентификатором.
type Creation interface {
	CreatedID() string
}

// PartitionKeyOf возвращает ключ упорядочивания события
func PartitionKeyOf(event Event) string {
	if p, ok := event.(Partitioned); ok {
		if key := p.PartitionKey(); key != "" {
			return key
		}
	}
	return event.AggregateID()
}

// EventMetadata метаданные события
type EventMetadata map[string]interface{}

// Get получает значение метаданных по ключу
func (m EventMetadata) Get(key string) (interface{}, bool) {
	val, ok := m[key]
	return val, ok
}

// CorrelationID возвращает correlation ID
func (m EventMetadata) CorrelationID() string {
	val, ok := m.Get("correlation_id")
	if !ok {
		return ""
	}
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// Base общие поля события. Встраивается в конкретные события,
// которые сами реализуют EventType и AggregateID.
type Base struct {
	ID   string        `json:"-"`
	At   time.Time     `json:"-"`
	Meta EventMetadata `json:"-"`
}

// NewBase создает Base с новым идентификатором
func NewBase() Base {
	return Base{
		ID:   uuid.NewString(),
		At:   time.Now().UTC(),
		Meta: make(EventMetadata),
	}
}

// WithCorrelationID устанавливает correlation ID
func (b Base) WithCorrelationID(id string) Base {
	meta := make(EventMetadata, len(b.Meta)+1)
	for k, v := range b.Meta {
		meta[k] = v
	}
	meta["correlation_id"] = id
	b.Meta = meta
	return b
}

func (b Base) EventID() string {
	return b.ID
}

func (b Base) OccurredAt() time.Time {
	return b.At
}

func (b Base) Metadata() EventMetadata {
	return b.Meta
}

// setBase используется кодеком при декодировании конверта
func (b *Base) setBase(nb Base) {
	*b = nb
}

type baseSetter interface {
	setBase(Base)
}
