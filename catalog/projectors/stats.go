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

// CourseStats проектор счетчиков курса. Работает раньше проектора уроков,
// поэтому строка урока еще содержит прежнюю длительность. Каждое событие
// учитывается в строке один раз, повторная доставка игнорируется.
func CourseStats(now Clock) *projection.Projector {
	const collection = model.CourseStatsCollection
	p := projection.NewProjector(CourseStatsName, core.PriorityHigh)

	stats := func(ctx context.Context, s *readmodel.Session, e events.Event, courseID string, fn func(row *model.CourseStats)) error {
		row, err := find[model.CourseStats](ctx, s, collection, courseID)
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

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseCreated) error {
		readmodel.Of[model.CourseStats](s, collection).AddIfAbsent(&model.CourseStats{
			CourseID:     e.CourseID,
			UpdatedAtUTC: now(),
		})
		return nil
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseDeleted) error {
		row, err := find[model.CourseStats](ctx, s, collection, e.CourseID)
		if err != nil {
			return err
		}
		readmodel.Of[model.CourseStats](s, collection).Remove(row)
		return nil
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleCreated) error {
		return stats(ctx, s, e, e.CourseID, func(row *model.CourseStats) { row.ModulesCount++ })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleDeleted) error {
		// уроки удаляются вместе с модулем
		module, err := readmodel.Of[model.Module](s, model.ModulesCollection).FindByID(ctx, e.ModuleID)
		if err != nil {
			return err
		}
		return stats(ctx, s, e, e.CourseID, func(row *model.CourseStats) {
			decrement(&row.ModulesCount, 1)
			if module != nil {
				decrement(&row.LessonsCount, module.LessonCount)
				decrement(&row.TotalDurationSeconds, module.TotalDurationSeconds)
			}
		})
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonCreated) error {
		return stats(ctx, s, e, e.CourseID, func(row *model.CourseStats) {
			row.LessonsCount++
			row.TotalDurationSeconds += e.Duration
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonDeleted) error {
		// после удаления модуля его уроки уже вычтены
		module, err := readmodel.Of[model.Module](s, model.ModulesCollection).FindByID(ctx, e.ModuleID)
		if err != nil {
			return err
		}
		if module == nil {
			return readmodel.Missing(model.ModulesCollection, e.ModuleID)
		}
		duration, _, err := lessonDuration(ctx, s, e.LessonID, e.Duration)
		if err != nil {
			return err
		}
		return stats(ctx, s, e, e.CourseID, func(row *model.CourseStats) {
			decrement(&row.LessonsCount, 1)
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
		return stats(ctx, s, e, e.CourseID, func(row *model.CourseStats) {
			row.TotalDurationSeconds += e.Duration - previous
			decrement(&row.TotalDurationSeconds, 0)
		})
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.EnrollmentCreated) error {
		return stats(ctx, s, e, e.CourseID, func(row *model.CourseStats) { row.EnrollmentCount++ })
	})

	return p
}
