// Package projection содержит реестр потребителей событий, диспетчер
// fan-out и runtime, связывающий message bus с проекторами read-моделей.
package projection

import (
	"context"
	"sort"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Consumer потребитель интеграционных событий.
// Handle не фиксирует изменения сам: сессию сохраняет диспетчер.
type Consumer interface {
	Name() string
	Priority() core.Priority
	EventTypes() []string
	Handle(ctx context.Context, s *readmodel.Session, event events.Event) error
}

// HandlerFunc обработчик одного типа события
type HandlerFunc func(ctx context.Context, s *readmodel.Session, event events.Event) error

// Projector потребитель, собранный из типизированных обработчиков
type Projector struct {
	name     string
	priority core.Priority
	handlers map[string]HandlerFunc
}

var _ Consumer = (*Projector)(nil)

// NewProjector создает пустой проектор
func NewProjector(name string, priority core.Priority) *Projector {
	return &Projector{
		name:     name,
		priority: priority,
		handlers: make(map[string]HandlerFunc),
	}
}

// On регистрирует типизированный обработчик события E.
// Повторная регистрация того же типа заменяет обработчик.
func On[E events.Event](p *Projector, fn func(ctx context.Context, s *readmodel.Session, event E) error) *Projector {
	var zero E
	eventType := zero.EventType()

	p.handlers[eventType] = func(ctx context.Context, s *readmodel.Session, event events.Event) error {
		typed, ok := event.(E)
		if !ok {
			return core.Errorf(core.ErrMalformedEvent, "%s: unexpected payload %T for %s", p.name, event, eventType)
		}
		return fn(ctx, s, typed)
	}
	return p
}

func (p *Projector) Name() string {
	return p.name
}

func (p *Projector) Priority() core.Priority {
	return p.priority
}

// EventTypes возвращает отсортированный список обрабатываемых типов
func (p *Projector) EventTypes() []string {
	types := make([]string, 0, len(p.handlers))
	for t := range p.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Handle вызывает обработчик по типу события; неизвестные типы игнорируются
func (p *Projector) Handle(ctx context.Context, s *readmodel.Session, event events.Event) error {
	h, ok := p.handlers[event.EventType()]
	if !ok {
		return nil
	}
	return h(ctx, s, event)
}
