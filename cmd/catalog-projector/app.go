package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"

	"github.com/akriventsev/coursecatalog/catalog"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/catalog/reconcile"
	"github.com/akriventsev/coursecatalog/config"
	"github.com/akriventsev/coursecatalog/framework/adapters/messagebus"
	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/observability"
	"github.com/akriventsev/coursecatalog/framework/projection"
)

// app собранный граф компонентов процесса
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	provider   *sdkmetric.MeterProvider
	metrics    *metrics.Metrics
	tracing    *observability.Tracing
	store      repository.Store
	bus        messagebus.Bus
	dispatcher *projection.Dispatcher
	pool       *projection.Pool
	runner     *projection.Runner
	reconciler *reconcile.Reconciler
	health     *observability.HealthManager
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.Metrics.Enabled {
		provider, err := metrics.SetupMetrics(&metrics.MetricsConfig{
			ExporterType: "prometheus",
			ResourceAttrs: map[string]string{
				"service.name":    cfg.Service.Name,
				"service.version": cfg.Service.Version,
			},
		})
		if err != nil {
			return nil, err
		}
		a.provider = provider
		if a.metrics, err = metrics.NewMetrics(); err != nil {
			return nil, err
		}
	}

	tracing, err := observability.NewTracing(cfg.TracingConfig())
	if err != nil {
		return nil, err
	}
	a.tracing = tracing

	store, err := repository.NewStore(ctx, cfg.Store.Type, cfg.StoreFactoryConfig(model.IndexedFields()))
	if err != nil {
		return nil, err
	}
	a.store = store

	bus, err := messagebus.NewMessageBus(cfg.Bus.Type, cfg.BusFactoryConfig(a.metrics, log))
	if err != nil {
		return nil, err
	}
	a.bus = bus

	a.dispatcher = projection.NewDispatcher(store, cfg.DispatcherConfig(),
		projection.WithLogger(log),
		projection.WithMetrics(a.metrics),
		projection.WithTracer(tracing.Tracer()),
	)
	if err := catalog.Register(a.dispatcher, catalog.Options{
		ServiceName:   cfg.Service.Name,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Logger:        log,
	}); err != nil {
		return nil, err
	}

	a.pool = projection.NewPool(cfg.PoolConfig())
	a.runner = projection.NewRunner(projection.RunnerConfig{
		Subjects:       cfg.Bus.Subjects,
		HandlerTimeout: cfg.Dispatcher.HandlerTimeout,
	}, bus, catalog.NewCodec(), a.dispatcher, a.pool, log, a.metrics)
	a.reconciler = reconcile.New(store, log, a.metrics)

	a.health = observability.NewHealthManager(5 * time.Second)
	a.health.RegisterHealthCheck(observability.NewComponentHealthCheck(store.Name(), store))
	a.health.RegisterHealthCheck(observability.NewComponentHealthCheck(bus.Name(), bus))
	a.health.RegisterReadinessCheck(observability.NewLifecycleCheck(store.Name(), store))
	a.health.RegisterReadinessCheck(observability.NewLifecycleCheck(bus.Name(), bus))
	a.health.RegisterReadinessCheck(observability.NewLifecycleCheck(a.runner.Name(), a.runner))
	return a, nil
}

// start запускает компоненты в порядке зависимостей
func (a *app) start(ctx context.Context) error {
	if err := a.tracing.Start(ctx); err != nil {
		return err
	}
	if err := a.store.Start(ctx); err != nil {
		return fmt.Errorf("start store: %w", err)
	}
	if err := a.bus.Start(ctx); err != nil {
		return fmt.Errorf("start bus: %w", err)
	}
	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start runner: %w", err)
	}
	a.log.Info("projector started",
		"bus", a.cfg.Bus.Type,
		"delivery", a.bus.Delivery().String(),
		"store", a.cfg.Store.Type,
		"mode", a.dispatcher.Mode(),
		"event_types", len(a.dispatcher.EventTypes()),
	)
	return nil
}

// stop останавливает компоненты в обратном порядке
func (a *app) stop(ctx context.Context) {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"runner", a.runner.Stop},
		{"bus", a.bus.Stop},
		{"store", a.store.Stop},
		{"tracing", a.tracing.Stop},
		{"metrics", func(ctx context.Context) error { return metrics.ShutdownMetrics(ctx, a.provider) }},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			a.log.Warn("stop failed", "component", s.name, "error", err)
		}
	}
}

func (a *app) router() *gin.Engine {
	if a.cfg.Log.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", a.health.HealthCheckHandler())
	r.GET("/readyz", a.health.ReadinessCheckHandler())
	if a.cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/status", func(c *gin.Context) {
		consumers := map[string][]string{}
		for _, eventType := range a.dispatcher.EventTypes() {
			for _, cons := range a.dispatcher.Consumers(eventType) {
				consumers[eventType] = append(consumers[eventType], cons.Name())
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"runner":    a.runner.Status(),
			"consumers": consumers,
		})
	})
	return r
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		a.stop(context.Background())
		return err
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: a.router()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.reconciler.Loop(gctx, cfg.Reconcile.Interval)
	})
	g.Go(func() error {
		return a.dispatcher.SweepParked(gctx, cfg.Parking.TTL)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		a.stop(shutdownCtx)
		return err
	})

	return g.Wait()
}

func reconcileOnce(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store, err := repository.NewStore(ctx, cfg.Store.Type, cfg.StoreFactoryConfig(model.IndexedFields()))
	if err != nil {
		return err
	}
	if err := store.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = store.Stop(context.Background()) }()

	report, err := reconcile.New(store, log, nil).Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}
