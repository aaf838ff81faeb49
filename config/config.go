// Package config загружает конфигурацию проектора каталога: значения по
// умолчанию, файл catalog.yaml и переменные окружения CATALOG_*.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/akriventsev/coursecatalog/framework/adapters/messagebus"
	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/observability"
	"github.com/akriventsev/coursecatalog/framework/projection"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "CATALOG"

// Config конфигурация сервиса
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Bus        BusConfig        `mapstructure:"bus"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Parking    ParkingConfig    `mapstructure:"parking"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BusConfig struct {
	Type     string   `mapstructure:"type"`
	Subjects []string `mapstructure:"subjects"`
}

type NATSConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
	Token string `mapstructure:"token"`
}

type KafkaConfig struct {
	Brokers     []string      `mapstructure:"brokers"`
	GroupID     string        `mapstructure:"group_id"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	Stream        string        `mapstructure:"stream"`
	ClaimIdle     time.Duration `mapstructure:"claim_idle"`
}

type StoreConfig struct {
	Type string `mapstructure:"type"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type MongoDBConfig struct {
	URI          string `mapstructure:"uri"`
	Database     string `mapstructure:"database"`
	Transactions bool   `mapstructure:"transactions"`
}

type DispatcherConfig struct {
	Mode           string        `mapstructure:"mode"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	// ConflictRetries повторы обработки при конфликте версии строки
	ConflictRetries int `mapstructure:"conflict_retries"`
}

type ParkingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	MaxPerKey int           `mapstructure:"max_per_key"`
	MaxTotal  int           `mapstructure:"max_total"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type StorageConfig struct {
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TracingConfig struct {
	Exporter     string  `mapstructure:"exporter"`
	Endpoint     string  `mapstructure:"endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func setDefaults(v *viper.Viper) {
	nats := messagebus.DefaultNATSConfig()
	kafka := messagebus.DefaultKafkaConfig()
	redis := messagebus.DefaultRedisConfig()
	postgres := repository.DefaultPostgresConfig()
	mongo := repository.DefaultMongoConfig()
	pool := projection.DefaultPoolConfig()
	parking := projection.DefaultParkingConfig()

	v.SetDefault("service.name", "course-catalog")
	v.SetDefault("service.version", "dev")
	v.SetDefault("service.environment", "development")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8081")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("bus.type", messagebus.BusInMemory)
	v.SetDefault("bus.subjects", []string{"catalog.>"})
	v.SetDefault("nats.url", nats.URL)
	v.SetDefault("nats.queue", nats.QueueGroup)
	v.SetDefault("nats.token", "")
	v.SetDefault("kafka.brokers", kafka.Brokers)
	v.SetDefault("kafka.group_id", kafka.GroupID)
	v.SetDefault("kafka.max_attempts", kafka.ConsumerConfig.MaxAttempts)
	v.SetDefault("kafka.retry_delay", kafka.ConsumerConfig.RetryDelay)
	v.SetDefault("redis.addr", redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.consumer_group", redis.ConsumerGroup)
	v.SetDefault("redis.stream", redis.StreamName)
	v.SetDefault("redis.claim_idle", redis.ClaimIdle)
	v.SetDefault("store.type", repository.StoreInMemory)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", postgres.TableName)
	v.SetDefault("postgres.max_conns", postgres.MaxConns)
	v.SetDefault("postgres.migrate", postgres.Migrate)
	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", mongo.Database)
	v.SetDefault("mongodb.transactions", false)
	v.SetDefault("dispatcher.mode", string(projection.ModeIndependent))
	v.SetDefault("dispatcher.workers", pool.Workers)
	v.SetDefault("dispatcher.queue_size", pool.QueueSize)
	v.SetDefault("dispatcher.handler_timeout", 30*time.Second)
	v.SetDefault("dispatcher.conflict_retries", projection.DefaultDispatcherConfig().ConflictRetries)
	v.SetDefault("parking.enabled", parking.Enabled)
	v.SetDefault("parking.max_per_key", parking.MaxPerKey)
	v.SetDefault("parking.max_total", parking.MaxTotal)
	v.SetDefault("parking.ttl", parking.TTL)
	v.SetDefault("reconcile.interval", time.Duration(0))
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.exporter", observability.ExporterNone)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampling_rate", 1.0)
}

// Load читает конфигурацию. Пустой path означает поиск catalog.yaml в
// текущем каталоге; отсутствие файла не ошибка.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя проверить позже
func (c *Config) Validate() error {
	switch c.Bus.Type {
	case messagebus.BusInMemory, messagebus.BusNATS, messagebus.BusKafka, messagebus.BusRedis:
	default:
		return core.Errorf(core.ErrInvalidConfig, "unknown bus type %q", c.Bus.Type)
	}
	switch c.Store.Type {
	case repository.StoreInMemory, repository.StorePostgres, repository.StoreMongoDB:
	default:
		return core.Errorf(core.ErrInvalidConfig, "unknown store type %q", c.Store.Type)
	}
	if !projection.Mode(c.Dispatcher.Mode).Valid() {
		return core.Errorf(core.ErrInvalidConfig, "unknown dispatcher mode %q", c.Dispatcher.Mode)
	}
	if c.Dispatcher.Workers <= 0 || c.Dispatcher.QueueSize <= 0 {
		return core.NewError(core.ErrInvalidConfig, "dispatcher workers and queue_size must be positive")
	}
	if c.Dispatcher.ConflictRetries < 0 {
		return core.NewError(core.ErrInvalidConfig, "dispatcher conflict_retries cannot be negative")
	}
	if len(c.Bus.Subjects) == 0 {
		return core.NewError(core.ErrInvalidConfig, "bus subjects cannot be empty")
	}
	if c.Parking.Enabled && (c.Parking.MaxPerKey <= 0 || c.Parking.MaxTotal <= 0) {
		return core.NewError(core.ErrInvalidConfig, "parking bounds must be positive")
	}
	if c.Reconcile.Interval < 0 {
		return core.NewError(core.ErrInvalidConfig, "reconcile interval cannot be negative")
	}
	return nil
}

// BusFactoryConfig собирает конфигурацию адаптеров message bus
func (c *Config) BusFactoryConfig(m *metrics.Metrics, log *logger.Logger) messagebus.FactoryConfig {
	nats := messagebus.DefaultNATSConfig()
	nats.URL = c.NATS.URL
	nats.QueueGroup = c.NATS.Queue
	nats.Token = c.NATS.Token

	kafka := messagebus.DefaultKafkaConfig()
	kafka.Brokers = c.Kafka.Brokers
	kafka.GroupID = c.Kafka.GroupID
	kafka.ConsumerConfig.MaxAttempts = c.Kafka.MaxAttempts
	kafka.ConsumerConfig.RetryDelay = c.Kafka.RetryDelay

	redis := messagebus.DefaultRedisConfig()
	redis.Addr = c.Redis.Addr
	redis.Password = c.Redis.Password
	redis.DB = c.Redis.DB
	redis.ConsumerGroup = c.Redis.ConsumerGroup
	redis.StreamName = c.Redis.Stream
	redis.ClaimIdle = c.Redis.ClaimIdle

	return messagebus.FactoryConfig{
		InMemory: messagebus.DefaultInMemoryConfig(),
		NATS:     nats,
		Kafka:    kafka,
		Redis:    redis,
		Metrics:  m,
		Logger:   log,
	}
}

// StoreFactoryConfig собирает конфигурацию хранилищ
func (c *Config) StoreFactoryConfig(indexed map[string][]string) repository.FactoryConfig {
	postgres := repository.DefaultPostgresConfig()
	postgres.DSN = c.Postgres.DSN
	postgres.TableName = c.Postgres.Table
	postgres.MaxConns = c.Postgres.MaxConns
	postgres.Migrate = c.Postgres.Migrate

	mongo := repository.DefaultMongoConfig()
	mongo.URI = c.MongoDB.URI
	mongo.Database = c.MongoDB.Database
	mongo.Transactions = c.MongoDB.Transactions
	mongo.IndexedFields = indexed

	return repository.FactoryConfig{
		InMemory: repository.DefaultInMemoryConfig(),
		Postgres: postgres,
		MongoDB:  mongo,
	}
}

// DispatcherConfig собирает конфигурацию диспетчера
func (c *Config) DispatcherConfig() projection.DispatcherConfig {
	return projection.DispatcherConfig{
		Mode:            projection.Mode(c.Dispatcher.Mode),
		ConflictRetries: c.Dispatcher.ConflictRetries,
		Parking: projection.ParkingConfig{
			Enabled:   c.Parking.Enabled,
			MaxPerKey: c.Parking.MaxPerKey,
			MaxTotal:  c.Parking.MaxTotal,
			TTL:       c.Parking.TTL,
		},
	}
}

// PoolConfig собирает конфигурацию пула обработчиков
func (c *Config) PoolConfig() projection.PoolConfig {
	return projection.PoolConfig{
		Workers:   c.Dispatcher.Workers,
		QueueSize: c.Dispatcher.QueueSize,
	}
}

// TracingConfig собирает конфигурацию трассировки; exporter "none" ее отключает
func (c *Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Service:      c.Service.Name,
		Version:      c.Service.Version,
		Environment:  c.Service.Environment,
		Exporter:     c.Tracing.Exporter,
		Endpoint:     c.Tracing.Endpoint,
		SamplingRate: c.Tracing.SamplingRate,
	}
}
