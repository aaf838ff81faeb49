package projectors

import (
	"context"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/catalog/outline"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// CourseStructures проектор навигационного дерева курса.
// Модули упорядочены по индексу, уроки внутри модуля тоже.
func CourseStructures(now Clock) *projection.Projector {
	const collection = model.CourseStructuresCollection
	p := projection.NewProjector(CourseStructureName, core.PriorityNormal)

	structure := func(ctx context.Context, s *readmodel.Session, courseID string, fn func(row *model.CourseStructure) error) error {
		row, err := find[model.CourseStructure](ctx, s, collection, courseID)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
		row.UpdatedAtUTC = now()
		return nil
	}

	lesson := func(ctx context.Context, s *readmodel.Session, e contracts.LessonEvent, fn func(l *model.StructureLesson)) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
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

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseCreated) error {
		readmodel.Of[model.CourseStructure](s, collection).AddIfAbsent(&model.CourseStructure{
			CourseID:     e.CourseID,
			Modules:      outline.List[model.StructureModule]{},
			UpdatedAtUTC: now(),
		})
		return nil
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseDeleted) error {
		row, err := find[model.CourseStructure](ctx, s, collection, e.CourseID)
		if err != nil {
			return err
		}
		readmodel.Of[model.CourseStructure](s, collection).Remove(row)
		return nil
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleCreated) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
			if row.Modules.Contains(e.ModuleID) {
				return nil
			}
			row.Modules.Insert(model.StructureModule{
				ModuleID: e.ModuleID,
				Title:    e.Title,
				Index:    e.Index,
				Lessons:  outline.List[model.StructureLesson]{},
			})
			return nil
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleTitleChanged) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
			if !row.Modules.Update(e.ModuleID, func(m *model.StructureModule) { m.Title = e.Title }) {
				return readmodel.Missing(collection, e.ModuleID)
			}
			return nil
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleIndexUpdated) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
			if !row.Modules.Update(e.ModuleID, func(m *model.StructureModule) { m.Index = e.Index }) {
				return readmodel.Missing(collection, e.ModuleID)
			}
			return nil
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.ModuleDeleted) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
			if !row.Modules.Remove(e.ModuleID) {
				return readmodel.Missing(collection, e.ModuleID)
			}
			return nil
		})
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonCreated) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
			m, err := node(row.Modules, collection, e.ModuleID)
			if err != nil {
				return err
			}
			if m.Lessons.Contains(e.LessonID) {
				return nil
			}
			m.Lessons.Insert(model.StructureLesson{
				LessonID:     e.LessonID,
				Title:        e.Title,
				Index:        e.Index,
				Duration:     e.Duration,
				Access:       e.Access,
				ThumbnailURL: e.ThumbnailURL,
			})
			return nil
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMetadataChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.StructureLesson) { l.Title = e.Title })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonMediaChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.StructureLesson) {
			l.Duration = e.Duration
			l.ThumbnailURL = e.ThumbnailURL
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonAccessChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.StructureLesson) { l.Access = e.Access })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonIndexChanged) error {
		return lesson(ctx, s, e.LessonEvent, func(l *model.StructureLesson) { l.Index = e.Index })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.LessonDeleted) error {
		return structure(ctx, s, e.CourseID, func(row *model.CourseStructure) error {
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
