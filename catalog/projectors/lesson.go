package projectors

import (
	"context"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Lessons проектор строк уроков. Низкий приоритет: агрегаты читают прежнюю
// длительность урока до того, как она будет перезаписана.
func Lessons(now Clock) *projection.Projector {
	const collection = model.LessonsCollection
	p := projection.NewProjector(LessonName, core.PriorityLow)

	lesson := func(ctx context.Context, s *readmodel.Session, lessonID string, fn func(row *model.Lesson)) error {
		row, err := find[model.Lesson](ctx, s, collection, lessonID)
		if err != nil {
			return err
		}
		fn(row)
		row.UpdatedAtUTC = now()
		return nil
	}

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonCreated) error {
		ts := now()
		readmodel.Of[model.Lesson](s, collection).AddIfAbsent(&model.Lesson{
			LessonID:      e.LessonID,
			ModuleID:      e.ModuleID,
			CourseID:      e.CourseID,
			Title:         e.Title,
			Description:   e.Description,
			Slug:          e.Slug,
			Index:         e.Index,
			Access:        e.Access,
			VideoURL:      e.VideoURL,
			ThumbnailURL:  e.ThumbnailURL,
			TranscriptURL: e.TranscriptURL,
			Duration:      e.Duration,
			CreatedAtUTC:  ts,
			UpdatedAtUTC:  ts,
		})
		return nil
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMetadataChanged) error {
		return lesson(ctx, s, e.LessonID, func(row *model.Lesson) {
			row.Title = e.Title
			row.Description = e.Description
			row.Slug = e.Slug
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMediaChanged) error {
		return lesson(ctx, s, e.LessonID, func(row *model.Lesson) {
			row.VideoURL = e.VideoURL
			row.ThumbnailURL = e.ThumbnailURL
			row.TranscriptURL = e.TranscriptURL
			row.Duration = e.Duration
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonAccessChanged) error {
		return lesson(ctx, s, e.LessonID, func(row *model.Lesson) { row.Access = e.Access })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonIndexChanged) error {
		return lesson(ctx, s, e.LessonID, func(row *model.Lesson) { row.Index = e.Index })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonDeleted) error {
		row, err := find[model.Lesson](ctx, s, collection, e.LessonID)
		if err != nil {
			return err
		}
		readmodel.Of[model.Lesson](s, collection).Remove(row)
		return nil
	})

	return p
}
