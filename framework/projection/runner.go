package projection

import (
	"context"
	"sync"
	"time"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/observability"
	"github.com/akriventsev/coursecatalog/framework/transport"
)

// Состояния runner
const (
	StateStopped = "stopped"
	StateRunning = "running"
)

// RunnerStatus статус runner
type RunnerStatus struct {
	State           string    `json:"state"`
	Subjects        []string  `json:"subjects"`
	Mode            Mode      `json:"mode"`
	Processed       int64     `json:"processed"`
	Failed          int64     `json:"failed"`
	Dropped         int64     `json:"dropped"`
	Missing         int64     `json:"missing"`
	Parked          int64     `json:"parked"`
	Pending         int       `json:"pending_parked"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	LastError       string    `json:"last_error,omitempty"`
}

// RunnerConfig конфигурация runner
type RunnerConfig struct {
	Subjects []string
	// HandlerTimeout ограничивает доставку одного события; 0 без ограничения
	HandlerTimeout time.Duration
}

// Runner читает сообщения из message bus, декодирует события и передает
// их диспетчеру через пул. Сообщение подтверждается только после доставки.
type Runner struct {
	config     RunnerConfig
	bus        transport.Subscriber
	codec      *events.Codec
	dispatcher *Dispatcher
	pool       *Pool
	log        *logger.Logger
	metrics    *metrics.Metrics
	status     RunnerStatus
	mu         sync.RWMutex
}

// NewRunner создает runner
func NewRunner(config RunnerConfig, bus transport.Subscriber, codec *events.Codec, dispatcher *Dispatcher, pool *Pool, log *logger.Logger, m *metrics.Metrics) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		config:     config,
		bus:        bus,
		codec:      codec,
		dispatcher: dispatcher,
		pool:       pool,
		log:        log.With("component", "runner"),
		metrics:    m,
		status: RunnerStatus{
			State:    StateStopped,
			Subjects: config.Subjects,
			Mode:     dispatcher.Mode(),
		},
	}
}

// Name возвращает имя компонента (реализация core.Component)
func (r *Runner) Name() string {
	return "projection-runner"
}

// Type возвращает тип компонента (реализация core.Component)
func (r *Runner) Type() core.ComponentType {
	return core.ComponentTypeHandler
}

// Start подписывается на все subjects (реализация core.Lifecycle)
func (r *Runner) Start(ctx context.Context) error {
	if len(r.config.Subjects) == 0 {
		return core.NewError(core.ErrInvalidConfig, "runner needs at least one subject")
	}

	for _, subject := range r.config.Subjects {
		if err := r.bus.Subscribe(ctx, subject, r.HandleMessage); err != nil {
			return core.Wrap(err, core.ErrInitializationFailed, "failed to subscribe to "+subject)
		}
		r.log.Info("subscribed", "subject", subject)
	}

	r.mu.Lock()
	r.status.State = StateRunning
	r.mu.Unlock()
	return nil
}

// Stop отписывается и дожидается завершения пула (реализация core.Lifecycle)
func (r *Runner) Stop(ctx context.Context) error {
	for _, subject := range r.config.Subjects {
		if err := r.bus.Unsubscribe(subject); err != nil {
			r.log.Warn("unsubscribe failed", "subject", subject, "error", err)
		}
	}

	r.mu.Lock()
	r.status.State = StateStopped
	r.mu.Unlock()

	return r.pool.Stop(ctx)
}

// IsRunning проверяет, запущен ли runner (реализация core.Lifecycle)
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.State == StateRunning
}

// HandleMessage обрабатывает одно сообщение. Нераспознанные сообщения
// отбрасываются, ошибка доставки возвращается транспорту для повтора.
func (r *Runner) HandleMessage(ctx context.Context, msg *transport.Message) error {
	event, err := r.codec.Decode(msg.Data, msg.Header(transport.HeaderEventType))
	if err != nil {
		reason := "malformed"
		if core.HasCode(err, core.ErrUnknownEventType) {
			reason = "unknown_type"
		}
		r.metrics.RecordDropped(ctx, msg.Header(transport.HeaderEventType), reason)
		r.log.Warn("message dropped", "subject", msg.Subject, "reason", reason, "error", err)
		r.update(func(s *RunnerStatus) { s.Dropped++ })
		return nil
	}

	r.metrics.RecordReceived(ctx, event.EventType())

	key := msg.Header(transport.HeaderPartitionKey)
	if key == "" {
		key = events.PartitionKeyOf(event)
	}
	ctx = observability.ExtractMessageHeaders(ctx, msg.Headers)
	if id := event.Metadata().CorrelationID(); id != "" {
		ctx = observability.InjectCorrelationID(ctx, id)
	}

	return r.pool.Do(ctx, key, func(ctx context.Context) error {
		if r.config.HandlerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.config.HandlerTimeout)
			defer cancel()
		}
		report, err := r.dispatcher.Dispatch(ctx, event)
		r.record(report, err)
		return err
	})
}

func (r *Runner) record(report Report, err error) {
	r.update(func(s *RunnerStatus) {
		s.Processed++
		s.Missing += int64(report.Missing)
		s.Parked += int64(report.Parked)
		s.LastProcessedAt = time.Now().UTC()
		if err != nil {
			s.Failed++
			s.LastError = err.Error()
		}
	})
}

func (r *Runner) update(fn func(s *RunnerStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.status)
}

// Status возвращает копию статуса
func (r *Runner) Status() RunnerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.status
	st.Subjects = append([]string(nil), r.status.Subjects...)
	if lot := r.dispatcher.Parking(); lot != nil {
		st.Pending = lot.Len()
	}
	return st
}

// Publish кодирует событие и публикует его с заголовками типа, id и ключа партиции
func Publish(ctx context.Context, pub transport.Publisher, codec *events.Codec, subject string, event events.Event) error {
	data, err := codec.Encode(event)
	if err != nil {
		return err
	}
	headers := map[string]string{
		transport.HeaderEventType:    event.EventType(),
		transport.HeaderEventID:      event.EventID(),
		transport.HeaderPartitionKey: events.PartitionKeyOf(event),
	}
	observability.InjectMessageHeaders(ctx, headers)
	return pub.Publish(ctx, subject, data, headers)
}
