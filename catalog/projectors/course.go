package projectors

import (
	"context"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// courseRow строка с общими полями курса
type courseRow[E any] interface {
	*E
	readmodel.Entity
	Fields() *model.CourseFields
}

type imageHolder interface {
	ImageList() *model.Images
}

// CourseSummaries проектор строк каталога
func CourseSummaries(now Clock) *projection.Projector {
	return courseProjector[model.CourseSummary](CourseSummaryName, model.CoursesCollection, now)
}

// CourseHeaders проектор заголовков курса
func CourseHeaders(now Clock) *projection.Projector {
	return courseProjector[model.CourseHeader](CourseHeaderName, model.CourseHeadersCollection, now)
}

// courseProjector собирает обработчики событий жизненного цикла курса для
// строки, встраивающей model.CourseFields
func courseProjector[E any, P courseRow[E]](name, collection string, now Clock) *projection.Projector {
	p := projection.NewProjector(name, core.PriorityNormal)

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseCreated) error {
		category, err := findCategory(ctx, s, e.CategoryID)
		if err != nil {
			return err
		}

		row := P(new(E))
		f := row.Fields()
		*f = model.CourseFields{
			CourseID:      e.CourseID,
			Title:         e.Title,
			Description:   e.Description,
			InstructorID:  e.InstructorID,
			PriceAmount:   e.PriceAmount,
			PriceCurrency: e.PriceCurrency,
			Status:        e.Status,
			Language:      e.Language,
			Difficulty:    e.Difficulty,
			Slug:          e.Slug,
			Tags:          append([]string{}, e.Tags...),
			CreatedAtUTC:  e.CreatedAt.UTC(),
			UpdatedAtUTC:  now(),
		}
		if f.CreatedAtUTC.IsZero() {
			f.CreatedAtUTC = f.UpdatedAtUTC
		}
		f.SetCategory(e.CategoryID, category)
		if holder, ok := any(row).(imageHolder); ok {
			*holder.ImageList() = model.Images{}
		}
		if page, ok := any(row).(*model.CoursePage); ok {
			page.Modules = newPageModules()
		}

		readmodel.Of[E, P](s, collection).AddIfAbsent(row)
		return nil
	})

	update := func(ctx context.Context, s *readmodel.Session, id string, fn func(f *model.CourseFields)) error {
		row, err := find[E, P](ctx, s, collection, id)
		if err != nil {
			return err
		}
		fn(row.Fields())
		row.Fields().UpdatedAtUTC = now()
		return nil
	}

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseTitleChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Title = e.Title })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseDescriptionChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Description = e.Description })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CoursePriceChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) {
			f.PriceAmount = e.Amount
			f.PriceCurrency = e.Currency
		})
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseStatusChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Status = e.Status })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseDifficultyChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Difficulty = e.Difficulty })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseLanguageChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Language = e.Language })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseSlugChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Slug = e.Slug })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseTagsChanged) error {
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.Tags = append([]string{}, e.Tags...) })
	})
	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseCategoryChanged) error {
		category, err := findCategory(ctx, s, e.CategoryID)
		if err != nil {
			return err
		}
		return update(ctx, s, e.CourseID, func(f *model.CourseFields) { f.SetCategory(e.CategoryID, category) })
	})

	if _, ok := any(P(new(E))).(imageHolder); ok {
		images := func(ctx context.Context, s *readmodel.Session, id string, fn func(im *model.Images) bool) error {
			row, err := find[E, P](ctx, s, collection, id)
			if err != nil {
				return err
			}
			if fn(any(row).(imageHolder).ImageList()) {
				row.Fields().UpdatedAtUTC = now()
			}
			return nil
		}
		projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseImageAdded) error {
			return images(ctx, s, e.CourseID, func(im *model.Images) bool { return im.Add(e.ImageURL) })
		})
		projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseImageRemoved) error {
			return images(ctx, s, e.CourseID, func(im *model.Images) bool { return im.Remove(e.ImageURL) })
		})
	}

	projection.On(p, func(ctx context.Context, s *readmodel.Session, e contracts.CourseDeleted) error {
		row, err := find[E, P](ctx, s, collection, e.CourseID)
		if err != nil {
			return err
		}
		readmodel.Of[E, P](s, collection).Remove(row)
		return nil
	})

	return p
}
