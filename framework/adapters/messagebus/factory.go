// Package messagebus предоставляет адаптеры для различных message brokers.
package messagebus

import (
	"sort"
	"sync"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/transport"
)

// Типы адаптеров
const (
	BusInMemory = "inmemory"
	BusNATS     = "nats"
	BusKafka    = "kafka"
	BusRedis    = "redis"
)

// Bus адаптер message bus с жизненным циклом
type Bus interface {
	transport.MessageBus
	transport.DeliveryReporter
	core.Component
	core.Lifecycle
	core.HealthCheckable
}

var (
	_ Bus = (*InMemoryAdapter)(nil)
	_ Bus = (*NATSAdapter)(nil)
	_ Bus = (*KafkaAdapter)(nil)
	_ Bus = (*RedisAdapter)(nil)
)

// FactoryConfig конфигурации всех адаптеров; используется только выбранная
type FactoryConfig struct {
	InMemory InMemoryConfig
	NATS     NATSConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// Creator создает адаптер по конфигурации
type Creator func(cfg FactoryConfig) (Bus, error)

// Factory реестр адаптеров message bus
type Factory struct {
	creators map[string]Creator
	mu       sync.RWMutex
}

// NewFactory создает фабрику со встроенными адаптерами
func NewFactory() *Factory {
	f := &Factory{creators: make(map[string]Creator)}

	_ = f.Register(BusInMemory, func(cfg FactoryConfig) (Bus, error) {
		return NewInMemoryAdapter(cfg.InMemory), nil
	})
	_ = f.Register(BusNATS, func(cfg FactoryConfig) (Bus, error) {
		return NewNATSAdapter(cfg.NATS, cfg.Metrics, cfg.Logger)
	})
	_ = f.Register(BusKafka, func(cfg FactoryConfig) (Bus, error) {
		return NewKafkaAdapter(cfg.Kafka, cfg.Metrics, cfg.Logger)
	})
	_ = f.Register(BusRedis, func(cfg FactoryConfig) (Bus, error) {
		return NewRedisAdapter(cfg.Redis, cfg.Metrics, cfg.Logger)
	})

	return f
}

// Register регистрирует адаптер
func (f *Factory) Register(name string, creator Creator) error {
	if name == "" || creator == nil {
		return core.NewError(core.ErrInvalidConfig, "adapter name and creator are required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.creators[name]; exists {
		return core.Errorf(core.ErrAlreadyExists, "adapter %s already registered", name)
	}
	f.creators[name] = creator
	return nil
}

// Create создает адаптер указанного типа
func (f *Factory) Create(busType string, cfg FactoryConfig) (Bus, error) {
	f.mu.RLock()
	creator, exists := f.creators[busType]
	f.mu.RUnlock()

	if !exists {
		return nil, core.Errorf(core.ErrInvalidConfig, "unknown message bus type: %s", busType)
	}

	bus, err := creator(cfg)
	if err != nil {
		return nil, core.Wrap(err, core.ErrInitializationFailed, "failed to create "+busType+" adapter")
	}
	return bus, nil
}

// ListRegistered возвращает отсортированный список адаптеров
func (f *Factory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewMessageBus создает адаптер через фабрику по умолчанию
func NewMessageBus(busType string, cfg FactoryConfig) (Bus, error) {
	return NewFactory().Create(busType, cfg)
}

