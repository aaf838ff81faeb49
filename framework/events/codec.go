package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/akriventsev/coursecatalog/framework/core"
)

// HeaderEventType заголовок сообщения с типом события
const HeaderEventType = "event_type"

// Envelope формат события на шине
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Metadata   EventMetadata   `json:"metadata,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

type decoder func(env Envelope) (Event, error)

// Codec реестр типизированных декодеров, ключ - тип события
type Codec struct {
	mu       sync.RWMutex
	decoders map[string]decoder
}

// NewCodec создает пустой кодек
func NewCodec() *Codec {
	return &Codec{decoders: make(map[string]decoder)}
}

// Register регистрирует тип события E. E должен быть структурой (не указателем),
// встраивающей Base, с методом EventType на значении.
func Register[E Event](c *Codec) {
	var zero E
	eventType := zero.EventType()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoders[eventType] = func(env Envelope) (Event, error) {
		var event E
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &event); err != nil {
				return nil, core.Wrap(err, core.ErrMalformedEvent, "decode payload of "+env.EventType)
			}
		}
		if setter, ok := any(&event).(baseSetter); ok {
			meta := env.Metadata
			if meta == nil {
				meta = make(EventMetadata)
			}
			setter.setBase(Base{ID: env.EventID, At: env.OccurredAt, Meta: meta})
		}
		return event, nil
	}
}

// Types возвращает зарегистрированные типы событий
func (c *Codec) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]string, 0, len(c.decoders))
	for t := range c.decoders {
		types = append(types, t)
	}
	return types
}

// Encode сериализует событие в конверт
func (c *Codec) Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, core.Wrap(err, core.ErrMalformedEvent, "encode payload of "+event.EventType())
	}
	return json.Marshal(Envelope{
		EventID:    event.EventID(),
		EventType:  event.EventType(),
		OccurredAt: event.OccurredAt(),
		Metadata:   event.Metadata(),
		Payload:    payload,
	})
}

// Decode восстанавливает типизированное событие из конверта.
// Если headerType не пуст, он имеет приоритет над event_type из конверта.
func (c *Codec) Decode(data []byte, headerType string) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.Wrap(err, core.ErrMalformedEvent, "decode envelope")
	}
	if headerType != "" {
		env.EventType = headerType
	}
	if env.EventType == "" {
		return nil, core.NewError(core.ErrMalformedEvent, "envelope has no event_type")
	}

	c.mu.RLock()
	decode, ok := c.decoders[env.EventType]
	c.mu.RUnlock()
	if !ok {
		return nil, core.Errorf(core.ErrUnknownEventType, "no decoder for %s", env.EventType)
	}
	return decode(env)
}
