package projectors

import (
	"context"
	"time"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Instructors синхронизирует данные преподавателей: UserCreated
// перезаписывает изменяемые поля существующей строки или создает новую
func Instructors(now Clock) *projection.Projector {
	p := projection.NewProjector(InstructorName, core.PriorityNormal)

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.UserCreated) error {
		set := readmodel.Of[model.Instructor](s, model.InstructorsCollection)
		row, err := set.FindByID(ctx, e.UserID)
		if err != nil {
			return err
		}

		ts := now()
		if row == nil {
			row = &model.Instructor{UserID: e.UserID, CreatedAtUTC: ts}
			set.Add(row)
		}
		row.FirstName = e.FirstName
		row.LastName = e.LastName
		row.Email = e.Email
		row.AvatarURL = e.AvatarURL
		row.UpdatedAtUTC = ts
		return nil
	})

	return p
}

// UserProvisioner создает локальную копию пользователя при первом
// UserCreated. Повторные события ничего не меняют.
func UserProvisioner(now Clock) *projection.Projector {
	p := projection.NewProjector(UserProvisionerName, core.PriorityNormal)

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.UserCreated) error {
		readmodel.Of[model.User](s, model.UsersCollection).AddIfAbsent(&model.User{
			UserID:       e.UserID,
			FirstName:    e.FirstName,
			LastName:     e.LastName,
			Email:        e.Email,
			CreatedAtUTC: now(),
		})
		return nil
	})

	return p
}

// Categories ведет строки категорий и переносит новое имя категории во все
// курсы, которые на нее ссылаются
func Categories(now Clock) *projection.Projector {
	const collection = model.CategoriesCollection
	p := projection.NewProjector(CategoryName, core.PriorityNormal)

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CategoryCreated) error {
		ts := now()
		readmodel.Of[model.Category](s, collection).AddIfAbsent(&model.Category{
			CategoryID:   e.CategoryID,
			Name:         e.Name,
			Slug:         e.Slug,
			CreatedAtUTC: ts,
			UpdatedAtUTC: ts,
		})
		return nil
	})

	// Курсы переименовываются и тогда, когда строки категории нет:
	// ссылки на нее хранятся в самих курсах.
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CategoryRenamed) error {
		category, err := readmodel.Of[model.Category](s, collection).FindByID(ctx, e.CategoryID)
		if err != nil {
			return err
		}
		ts := now()
		if category == nil {
			category = &model.Category{CategoryID: e.CategoryID}
		}
		category.Name = e.Name
		category.Slug = e.Slug
		category.UpdatedAtUTC = ts

		if err := renameIn[model.CourseSummary](ctx, s, model.CoursesCollection, category, ts); err != nil {
			return err
		}
		if err := renameIn[model.CourseHeader](ctx, s, model.CourseHeadersCollection, category, ts); err != nil {
			return err
		}
		return renameIn[model.CoursePage](ctx, s, model.CoursePagesCollection, category, ts)
	})

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CategoryDeleted) error {
		category, err := find[model.Category](ctx, s, collection, e.CategoryID)
		if err != nil {
			return err
		}
		readmodel.Of[model.Category](s, collection).Remove(category)
		return nil
	})

	return p
}

// renameIn обновляет денормализованную категорию во всех строках коллекции,
// ссылающихся на нее
func renameIn[E any, P courseRow[E]](ctx context.Context, s *readmodel.Session, collection string, category *model.Category, ts time.Time) error {
	rows, err := readmodel.Of[E, P](s, collection).FindByIndex(ctx, model.IndexCategoryID, category.CategoryID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		f := row.Fields()
		f.SetCategory(category.CategoryID, category)
		f.UpdatedAtUTC = ts
	}
	return nil
}

// CourseViews записывает по строке на каждый просмотр; id строки равен id
// события, поэтому повторная доставка не дублирует просмотр
func CourseViews() *projection.Projector {
	p := projection.NewProjector(CourseViewName, core.PriorityNormal)

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseViewed) error {
		viewedAt := e.ViewedAt.UTC()
		if viewedAt.IsZero() {
			viewedAt = e.OccurredAt().UTC()
		}
		readmodel.Of[model.CourseView](s, model.CourseViewsCollection).AddIfAbsent(&model.CourseView{
			ViewID:      e.EventID(),
			CourseID:    e.CourseID,
			UserID:      e.UserID,
			ViewedAtUTC: viewedAt,
		})
		return nil
	})

	return p
}
