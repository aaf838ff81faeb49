package projectors

import (
	"context"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Modules проектор строк модулей с количеством уроков и суммарной длительностью
func Modules(now Clock) *projection.Projector {
	const collection = model.ModulesCollection
	p := projection.NewProjector(ModuleName, core.PriorityHigh)

	module := func(ctx context.Context, s *readmodel.Session, moduleID string, fn func(row *model.Module)) error {
		row, err := find[model.Module](ctx, s, collection, moduleID)
		if err != nil {
			return err
		}
		fn(row)
		row.UpdatedAtUTC = now()
		return nil
	}
	// counters меняет счетчики модуля не более одного раза на событие
	counters := func(ctx context.Context, s *readmodel.Session, e events.Event, moduleID string, fn func(row *model.Module)) error {
		row, err := find[model.Module](ctx, s, collection, moduleID)
		if err != nil {
			return err
		}
		if row.Applied.Has(e.EventID()) {
			return nil
		}
		fn(row)
		row.Applied.Add(e.EventID())
		row.UpdatedAtUTC = now()
		return nil
	}

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleCreated) error {
		ts := now()
		readmodel.Of[model.Module](s, collection).AddIfAbsent(&model.Module{
			ModuleID:     e.ModuleID,
			CourseID:     e.CourseID,
			Title:        e.Title,
			Index:        e.Index,
			CreatedAtUTC: ts,
			UpdatedAtUTC: ts,
		})
		return nil
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleTitleChanged) error {
		return module(ctx, s, e.ModuleID, func(row *model.Module) { row.Title = e.Title })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleIndexUpdated) error {
		return module(ctx, s, e.ModuleID, func(row *model.Module) { row.Index = e.Index })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleDeleted) error {
		row, err := find[model.Module](ctx, s, collection, e.ModuleID)
		if err != nil {
			return err
		}
		readmodel.Of[model.Module](s, collection).Remove(row)
		return nil
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonCreated) error {
		return counters(ctx, s, e, e.ModuleID, func(row *model.Module) {
			row.LessonCount++
			row.TotalDurationSeconds += e.Duration
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonDeleted) error {
		duration, _, err := lessonDuration(ctx, s, e.LessonID, e.Duration)
		if err != nil {
			return err
		}
		return counters(ctx, s, e, e.ModuleID, func(row *model.Module) {
			decrement(&row.LessonCount, 1)
			decrement(&row.TotalDurationSeconds, duration)
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMediaChanged) error {
		previous, ok, err := lessonDuration(ctx, s, e.LessonID, e.PreviousDuration)
		if err != nil {
			return err
		}
		if !ok {
			return readmodel.Missing(model.LessonsCollection, e.LessonID)
		}
		return counters(ctx, s, e, e.ModuleID, func(row *model.Module) {
			row.TotalDurationSeconds += e.Duration - previous
			decrement(&row.TotalDurationSeconds, 0)
		})
	})

	return p
}
