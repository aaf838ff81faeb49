package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/akriventsev/coursecatalog/catalog"
	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/config"
	"github.com/akriventsev/coursecatalog/framework/adapters/messagebus"
	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// demo проецирует курс с одним модулем и уроком в памяти и печатает
// итоговые счетчики и дерево курса
func demo(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	bus := messagebus.NewInMemoryAdapter(messagebus.InMemoryConfig{EnableOrdering: true})
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	dispatcher := projection.NewDispatcher(store, cfg.DispatcherConfig(), projection.WithLogger(log))
	if err := catalog.Register(dispatcher, catalog.Options{
		ServiceName:   cfg.Service.Name,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Logger:        log,
	}); err != nil {
		return err
	}

	codec := catalog.NewCodec()
	runner := projection.NewRunner(projection.RunnerConfig{Subjects: []string{"catalog.>"}},
		bus, codec, dispatcher, projection.NewPool(cfg.PoolConfig()), log, nil)
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = runner.Stop(context.Background()) }()

	courseID, moduleID, lessonID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	for _, e := range []events.Event{
		contracts.CourseCreated{CourseEvent: contracts.Course(courseID), Title: "Intro", Status: "draft", Language: "en"},
		contracts.ModuleCreated{ModuleEvent: contracts.Module(courseID, moduleID), Title: "Basics", Index: 0},
		contracts.LessonCreated{LessonEvent: contracts.Lesson(courseID, moduleID, lessonID), Title: "Welcome", Index: 0, Access: "free", Duration: 120},
	} {
		if err := projection.Publish(ctx, bus, codec, "catalog."+e.EventType(), e); err != nil {
			return err
		}
	}

	s := readmodel.NewSession(store)
	stats, err := readmodel.Of[model.CourseStats](s, model.CourseStatsCollection).FindByID(ctx, courseID)
	if err != nil {
		return err
	}
	structure, err := readmodel.Of[model.CourseStructure](s, model.CourseStructuresCollection).FindByID(ctx, courseID)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"stats":     stats,
		"structure": structure,
		"runner":    runner.Status(),
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
