package projectors

import (
	"context"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/catalog/outline"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

func newPageModules() outline.List[model.PageModule] {
	return outline.List[model.PageModule]{}
}

// CoursePages проектор публичной страницы курса: поля курса и вложенные
// модули с уроками
func CoursePages(now Clock) *projection.Projector {
	const collection = model.CoursePagesCollection
	p := courseProjector[model.CoursePage](CoursePageName, collection, now)

	page := func(ctx context.Context, s *readmodel.Session, courseID string, fn func(row *model.CoursePage) error) error {
		row, err := find[model.CoursePage](ctx, s, collection, courseID)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
		row.UpdatedAtUTC = now()
		return nil
	}

	module := func(ctx context.Context, s *readmodel.Session, e contracts.ModuleEvent, fn func(m *model.PageModule)) error {
		return page(ctx, s, e.CourseID, func(row *model.CoursePage) error {
			if !row.Modules.Update(e.ModuleID, fn) {
				return readmodel.Missing(collection, e.ModuleID)
			}
			return nil
		})
	}

	lesson := func(ctx context.Context, s *readmodel.Session, e contracts.LessonEvent, fn func(l *model.PageLesson)) error {
		return page(ctx, s, e.CourseID, func(row *model.CoursePage) error {
			m, err := node(row.Modules, collection, e.ModuleID)
			if err != nil {
				return err
			}
			if !m.Lessons.Update(e.LessonID, fn) {
				return readmodel.Missing(collection, e.LessonID)
			}
			return nil
		})
	}

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleCreated) error {
		return page(ctx, s, e.CourseID, func(row *model.CoursePage) error {
			if row.Modules.Contains(e.ModuleID) {
				return nil
			}
			row.Modules.Insert(model.PageModule{
				ModuleID: e.ModuleID,
				Title:    e.Title,
				Index:    e.Index,
				Lessons:  outline.List[model.PageLesson]{},
			})
			return nil
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleTitleChanged) error {
		return module(ctx, s, e.ModuleEvent, func(m *model.PageModule) { m.Title = e.Title })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleIndexUpdated) error {
		return module(ctx, s, e.ModuleEvent, func(m *model.PageModule) { m.Index = e.Index })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleDeleted) error {
		return page(ctx, s, e.CourseID, func(row *model.CoursePage) error {
			if !row.Modules.Remove(e.ModuleID) {
				return readmodel.Missing(collection, e.ModuleID)
			}
			return nil
		})
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonCreated) error {
		return page(ctx, s, e.CourseID, func(row *model.CoursePage) error {
			m, err := node(row.Modules, collection, e.ModuleID)
			if err != nil {
				return err
			}
			if m.Lessons.Contains(e.LessonID) {
				return nil
			}
			m.Lessons.Insert(model.PageLesson{
				LessonID:     e.LessonID,
				Title:        e.Title,
				Description:  e.Description,
				Slug:         e.Slug,
				Index:        e.Index,
				Access:       e.Access,
				Duration:     e.Duration,
				ThumbnailURL: e.ThumbnailURL,
			})
			return nil
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMetadataChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.PageLesson) {
			l.Title = e.Title
			l.Description = e.Description
			l.Slug = e.Slug
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMediaChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.PageLesson) {
			l.ThumbnailURL = e.ThumbnailURL
			l.Duration = e.Duration
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonAccessChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.PageLesson) { l.Access = e.Access })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonIndexChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.PageLesson) { l.Index = e.Index })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonDeleted) error {
		return page(ctx, s, e.CourseID, func(row *model.CoursePage) error {
			m, err := node(row.Modules, collection, e.ModuleID)
			if err != nil {
				return err
			}
			if !m.Lessons.Remove(e.LessonID) {
				return readmodel.Missing(collection, e.LessonID)
			}
			return nil
		})
	})

	return p
}
