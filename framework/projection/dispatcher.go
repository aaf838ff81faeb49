package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/observability"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Mode режим фиксации изменений
type Mode string

const (
	// ModeIndependent каждый потребитель работает в своей сессии и фиксирует ее сам
	ModeIndependent Mode = "independent"
	// ModeAtomic все потребители события делят одну сессию, фиксация одна на событие
	ModeAtomic Mode = "atomic"
)

// Valid проверяет значение режима
func (m Mode) Valid() bool {
	return m == ModeIndependent || m == ModeAtomic
}

// DispatcherConfig конфигурация диспетчера
type DispatcherConfig struct {
	Mode    Mode
	Parking ParkingConfig
	// ConflictRetries сколько раз повторить обработку, если строку
	// параллельно изменил другой процесс
	ConflictRetries int
}

// DefaultDispatcherConfig возвращает конфигурацию по умолчанию
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Mode:            ModeIndependent,
		Parking:         DefaultParkingConfig(),
		ConflictRetries: 3,
	}
}

// Report итог доставки события потребителям
type Report struct {
	Consumers int
	Applied   int
	Missing   int
	Parked    int
	Failed    int
	Replayed  int
	Rows      int
}

func (r *Report) add(outcome string, rows int) {
	switch outcome {
	case metrics.OutcomeApplied:
		r.Applied++
	case metrics.OutcomeMissing:
		r.Missing++
	case metrics.OutcomeParked:
		r.Parked++
	default:
		r.Failed++
	}
	r.Rows += rows
}

// Option опция диспетчера
type Option func(*Dispatcher)

// WithLogger устанавливает логгер
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics устанавливает сборщик метрик
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer устанавливает tracer
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// Dispatcher доставляет событие всем потребителям его типа в порядке приоритета
type Dispatcher struct {
	store     readmodel.Store
	config    DispatcherConfig
	consumers map[string]Consumer
	byType    map[string][]Consumer
	parking   *ParkingLot
	mu        sync.RWMutex
	log       *logger.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// NewDispatcher создает диспетчер поверх хранилища read-моделей
func NewDispatcher(store readmodel.Store, config DispatcherConfig, opts ...Option) *Dispatcher {
	if !config.Mode.Valid() {
		config.Mode = ModeIndependent
	}
	if config.ConflictRetries < 0 {
		config.ConflictRetries = 0
	}
	d := &Dispatcher{
		store:     store,
		config:    config,
		consumers: make(map[string]Consumer),
		byType:    make(map[string][]Consumer),
		log:       logger.NewNop(),
		tracer:    noop.NewTracerProvider().Tracer(observability.TracerName),
	}
	if config.Parking.Enabled {
		d.parking = NewParkingLot(config.Parking)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register регистрирует потребителя; имена должны быть уникальны
func (d *Dispatcher) Register(c Consumer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := c.Name()
	if _, exists := d.consumers[name]; exists {
		return core.Errorf(core.ErrAlreadyExists, "consumer %s already registered", name)
	}
	d.consumers[name] = c

	for _, eventType := range c.EventTypes() {
		list := append(d.byType[eventType], c)
		// Стабильная сортировка: при равном приоритете сохраняется порядок регистрации
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() < list[j].Priority()
		})
		d.byType[eventType] = list
	}
	return nil
}

// Consumers возвращает потребителей типа события в порядке вызова
func (d *Dispatcher) Consumers(eventType string) []Consumer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Consumer, len(d.byType[eventType]))
	copy(out, d.byType[eventType])
	return out
}

// EventTypes возвращает все типы событий, на которые есть потребители
func (d *Dispatcher) EventTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.byType))
	for t := range d.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Mode возвращает режим фиксации
func (d *Dispatcher) Mode() Mode {
	return d.config.Mode
}

// Parking возвращает parking lot или nil, если он выключен
func (d *Dispatcher) Parking() *ParkingLot {
	return d.parking
}

func (d *Dispatcher) consumer(name string) (Consumer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.consumers[name]
	return c, ok
}

// Dispatch доставляет событие всем потребителям. Ошибки потребителей
// объединяются; отсутствие цели ошибкой не считается.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) (Report, error) {
	var report Report

	consumers := d.Consumers(event.EventType())
	if len(consumers) == 0 {
		d.metrics.RecordDropped(ctx, event.EventType(), "no_consumer")
		d.log.Debug("no consumers for event", "event_type", event.EventType(), "event_id", event.EventID())
		return report, nil
	}
	report.Consumers = len(consumers)

	err := observability.TraceEvent(ctx, d.tracer, event.EventType(), event.EventID(), func(ctx context.Context) error {
		if d.config.Mode == ModeAtomic {
			return d.dispatchAtomic(ctx, event, consumers, &report)
		}
		return d.dispatchIndependent(ctx, event, consumers, &report)
	})

	if d.parking != nil {
		if created, ok := event.(events.Creation); ok && created.CreatedID() != "" {
			d.release(ctx, created.CreatedID(), &report)
		}
	}
	return report, err
}

func (d *Dispatcher) dispatchIndependent(ctx context.Context, event events.Event, consumers []Consumer, report *Report) error {
	var errs []error
	for _, c := range consumers {
		outcome, rows, err := d.runIsolated(ctx, c, event)
		report.add(outcome, rows)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// runIsolated вызывает потребителя в собственной сессии и фиксирует ее
func (d *Dispatcher) runIsolated(ctx context.Context, c Consumer, event events.Event) (string, int, error) {
	var (
		outcome string
		rows    int
	)
	start := time.Now()

	err := observability.TraceConsumer(ctx, d.tracer, c.Name(), event.EventType(), func(ctx context.Context) (string, error) {
		for attempt := 0; ; attempt++ {
			session := readmodel.NewSession(d.store)
			if err := d.invoke(ctx, c, session, event); err != nil {
				var herr error
				outcome, herr = d.classify(ctx, c, event, err)
				return outcome, herr
			}

			n, err := session.SaveChanges(ctx)
			if err != nil {
				if readmodel.IsConflict(err) && attempt < d.config.ConflictRetries {
					d.log.Debug("write conflict, retrying consumer",
						"consumer", c.Name(),
						"event_id", event.EventID(),
						"attempt", attempt+1,
						"error", err,
					)
					continue
				}
				outcome = metrics.OutcomeFailed
				return outcome, err
			}
			outcome, rows = metrics.OutcomeApplied, n
			return outcome, nil
		}
	})

	d.metrics.RecordConsumer(ctx, c.Name(), event.EventType(), outcome, time.Since(start), rows)
	if err != nil {
		d.log.Error("consumer failed",
			"consumer", c.Name(),
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"outcome", outcome,
			"error", err,
		)
	}
	return outcome, rows, err
}

// atomicResult результат потребителя в общей сессии до фиксации
type atomicResult struct {
	consumer Consumer
	err      error
	elapsed  time.Duration
}

// dispatchAtomic прогоняет всех потребителей в одной сессии. При конфликте
// записи событие целиком обрабатывается заново в новой сессии. Отсутствующие
// цели разбираются только после последней попытки, чтобы повтор не
// откладывал событие дважды.
func (d *Dispatcher) dispatchAtomic(ctx context.Context, event events.Event, consumers []Consumer, report *Report) error {
	var (
		results []atomicResult
		failed  bool
		rows    int
		err     error
	)

	for attempt := 0; ; attempt++ {
		session := readmodel.NewSession(d.store)
		results, failed = d.runShared(ctx, event, consumers, session)
		if failed {
			break
		}
		rows, err = session.SaveChanges(ctx)
		if readmodel.IsConflict(err) && attempt < d.config.ConflictRetries {
			d.log.Debug("write conflict, retrying event",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}
		break
	}

	var errs []error
	for _, r := range results {
		outcome := metrics.OutcomeApplied
		var cerr error
		switch {
		case err != nil:
			// событие не зафиксировано и будет доставлено повторно
			outcome = metrics.OutcomeFailed
		case r.err != nil:
			outcome, cerr = d.classify(ctx, r.consumer, event, r.err)
		}
		d.metrics.RecordConsumer(ctx, r.consumer.Name(), event.EventType(), outcome, r.elapsed, 0)
		report.add(outcome, 0)
		if cerr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.consumer.Name(), cerr))
		}
	}

	if len(errs) > 0 {
		d.log.Error("event not committed",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", errors.Join(errs...),
		)
		return errors.Join(errs...)
	}
	if err != nil {
		return err
	}
	report.Rows += rows
	d.metrics.RecordRows(ctx, string(ModeAtomic), rows)
	return nil
}

// runShared вызывает потребителей в общей сессии. failed означает, что
// кто-то завершился ошибкой кроме отсутствия цели и фиксировать нельзя.
func (d *Dispatcher) runShared(ctx context.Context, event events.Event, consumers []Consumer, session *readmodel.Session) ([]atomicResult, bool) {
	results := make([]atomicResult, 0, len(consumers))
	failed := false

	for _, c := range consumers {
		start := time.Now()
		var herr error
		_ = observability.TraceConsumer(ctx, d.tracer, c.Name(), event.EventType(), func(ctx context.Context) (string, error) {
			herr = d.invoke(ctx, c, session, event)
			if herr == nil {
				return metrics.OutcomeApplied, nil
			}
			if _, ok := readmodel.AsMissing(herr); ok {
				return metrics.OutcomeMissing, nil
			}
			return metrics.OutcomeFailed, herr
		})
		if herr != nil {
			if _, ok := readmodel.AsMissing(herr); !ok {
				failed = true
			}
		}
		results = append(results, atomicResult{consumer: c, err: herr, elapsed: time.Since(start)})
	}
	return results, failed
}

// invoke вызывает потребителя, превращая panic в ошибку
func (d *Dispatcher) invoke(ctx context.Context, c Consumer, s *readmodel.Session, event events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.Errorf(core.ErrConsumerPanic, "consumer %s panicked: %v", c.Name(), r)
		}
	}()
	return c.Handle(ctx, s, event)
}

// classify определяет исход по ошибке потребителя. Отсутствие цели
// откладывается в parking lot или отбрасывается.
func (d *Dispatcher) classify(ctx context.Context, c Consumer, event events.Event, err error) (string, error) {
	if core.HasCode(err, core.ErrConsumerPanic) {
		return metrics.OutcomePanic, err
	}

	missing, ok := readmodel.AsMissing(err)
	if !ok {
		return metrics.OutcomeFailed, err
	}

	if d.parking != nil {
		expired, perr := d.parking.Park(missing.ID, c.Name(), event)
		if expired > 0 {
			d.metrics.RecordParked(ctx, -expired)
			d.log.Warn("parked events expired", "count", expired)
		}
		if perr == nil {
			d.metrics.RecordParked(ctx, 1)
			d.log.Debug("event parked",
				"consumer", c.Name(),
				"event_type", event.EventType(),
				"collection", missing.Collection,
				"missing_id", missing.ID,
			)
			return metrics.OutcomeParked, nil
		}
		d.log.Warn("event not parked", "consumer", c.Name(), "event_type", event.EventType(), "error", perr)
	}

	d.log.Debug("missing target, event ignored",
		"consumer", c.Name(),
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"collection", missing.Collection,
		"missing_id", missing.ID,
	)
	return metrics.OutcomeMissing, nil
}

// release повторно доставляет отложенные события после создания сущности.
// Повтор может создать новые сущности, поэтому обход идет очередью.
func (d *Dispatcher) release(ctx context.Context, createdID string, report *Report) {
	queue := []string{createdID}
	seen := map[string]bool{}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		entries, expired := d.parking.Release(id)
		if expired > 0 {
			d.log.Warn("parked events expired", "missing_id", id, "count", expired)
		}
		if n := len(entries) + expired; n > 0 {
			d.metrics.RecordParked(ctx, -n)
		}

		for _, p := range entries {
			c, ok := d.consumer(p.Consumer)
			if !ok {
				continue
			}
			report.Replayed++
			outcome, rows, err := d.runIsolated(ctx, c, p.Event)
			report.add(outcome, rows)
			if err != nil {
				continue
			}
			if outcome == metrics.OutcomeApplied {
				if created, ok := p.Event.(events.Creation); ok && created.CreatedID() != "" {
					queue = append(queue, created.CreatedID())
				}
			}
		}
	}
}

// SweepParked периодически удаляет просроченные отложенные события до отмены ctx
func (d *Dispatcher) SweepParked(ctx context.Context, interval time.Duration) error {
	if d.parking == nil || interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if expired := d.parking.Expire(); expired > 0 {
				d.metrics.RecordParked(ctx, -expired)
				d.log.Warn("parked events expired", "count", expired)
			}
		}
	}
}
