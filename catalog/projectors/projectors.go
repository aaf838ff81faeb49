// Package projectors содержит проекторы read-моделей каталога курсов.
//
// Каждый проектор отвечает за одно семейство строк и не обращается к другим
// проекторам. Обновление отсутствующей строки возвращает
// readmodel.MissingTargetError; строку при этом никто не создает.
package projectors

import (
	"context"
	"time"

	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/catalog/outline"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Имена проекторов
const (
	CourseSummaryName   = "course-summary"
	CourseHeaderName    = "course-header"
	CoursePageName      = "course-page"
	CourseStructureName = "course-structure"
	CourseStatsName     = "course-stats"
	ModuleName          = "module"
	LessonName          = "lesson"
	InstructorName      = "instructor"
	UserProvisionerName = "user-provisioner"
	CategoryName        = "category"
	CourseViewName      = "course-views"
)

// Clock источник текущего времени
type Clock func() time.Time

// UTC возвращает текущее время в UTC
func UTC() time.Time {
	return time.Now().UTC()
}

// All возвращает все проекторы каталога
func All(now Clock) []*projection.Projector {
	if now == nil {
		now = UTC
	}
	return []*projection.Projector{
		CourseStats(now),
		Modules(now),
		CourseSummaries(now),
		CourseHeaders(now),
		CoursePages(now),
		CourseStructures(now),
		Instructors(now),
		UserProvisioner(now),
		Categories(now),
		CourseViews(),
		Lessons(now),
	}
}

// find возвращает строку по id или MissingTargetError, если ее нет
func find[E any, P readmodel.Row[E]](ctx context.Context, s *readmodel.Session, collection, id string) (P, error) {
	row, err := readmodel.Of[E, P](s, collection).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, readmodel.Missing(collection, id)
	}
	return row, nil
}

// node возвращает узел дерева или MissingTargetError
func node[T outline.Node](list outline.List[T], collection, id string) (*T, error) {
	if n := list.Find(id); n != nil {
		return n, nil
	}
	return nil, readmodel.Missing(collection, id)
}

func findCategory(ctx context.Context, s *readmodel.Session, id string) (*model.Category, error) {
	if id == "" {
		return nil, nil
	}
	return readmodel.Of[model.Category](s, model.CategoriesCollection).FindByID(ctx, id)
}

// lessonDuration возвращает прежнюю длительность урока: из события, если
// она передана, иначе из строки урока. ok=false, если строки нет.
func lessonDuration(ctx context.Context, s *readmodel.Session, lessonID string, carried *int) (int, bool, error) {
	if carried != nil {
		return *carried, true, nil
	}
	lesson, err := readmodel.Of[model.Lesson](s, model.LessonsCollection).FindByID(ctx, lessonID)
	if err != nil {
		return 0, false, err
	}
	if lesson == nil {
		return 0, false, nil
	}
	return lesson.Duration, true, nil
}

// decrement уменьшает счетчик, не опускаясь ниже нуля
func decrement(v *int, by int) {
	*v -= by
	if *v < 0 {
		*v = 0
	}
}
