package projectors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/projection"
)

func userCreated(id, first, email string) contracts.UserCreated {
	return contracts.UserCreated{Base: events.NewBase(), UserID: id, FirstName: first, LastName: "Doe", Email: email}
}

func TestUserCreated_InstructorUpsert(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(userCreated("u1", "Jane", "jane@example.com"))
	h.dispatch(userCreated("u1", "Janet", "janet@example.com"))

	instructor := load[model.Instructor](h, model.InstructorsCollection, "u1")
	require.NotNil(t, instructor)
	assert.Equal(t, "Janet", instructor.FirstName)
	assert.Equal(t, "janet@example.com", instructor.Email)
	assert.Equal(t, "Janet Doe", instructor.FullName())
	assert.Equal(t, 1, h.store.Count(model.InstructorsCollection))

	// локальный пользователь создается один раз и не меняется
	user := load[model.User](h, model.UsersCollection, "u1")
	require.NotNil(t, user)
	assert.Equal(t, "Jane", user.FirstName)
	assert.Equal(t, 1, h.store.Count(model.UsersCollection))
}

func TestCategoryRenamed_FansOutToCourses(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		contracts.CategoryCreated{CategoryEvent: contracts.Category("cat1"), Name: "Programming", Slug: "programming"},
		contracts.CategoryCreated{CategoryEvent: contracts.Category("cat2"), Name: "Design", Slug: "design"},
		courseCreated("C1", "Go", "cat1"),
		courseCreated("C2", "Rust", "cat1"),
		courseCreated("C3", "Zig", "cat1"),
		courseCreated("C4", "Figma", "cat2"),
	)

	header := load[model.CourseHeader](h, model.CourseHeadersCollection, "C1")
	assert.Equal(t, "Programming", header.CategoryName)

	h.dispatch(contracts.CategoryRenamed{CategoryEvent: contracts.Category("cat1"), Name: "Software", Slug: "software"})

	for _, id := range []string{"C1", "C2", "C3"} {
		header := load[model.CourseHeader](h, model.CourseHeadersCollection, id)
		assert.Equal(t, "Software", header.CategoryName, id)
		assert.Equal(t, "software", header.CategorySlug, id)

		summary := load[model.CourseSummary](h, model.CoursesCollection, id)
		assert.Equal(t, "Software", summary.CategoryName, id)

		assert.Equal(t, "Software", h.page(id).CategoryName, id)
	}

	other := load[model.CourseHeader](h, model.CourseHeadersCollection, "C4")
	assert.Equal(t, "Design", other.CategoryName)

	category := load[model.Category](h, model.CategoriesCollection, "cat1")
	assert.Equal(t, "software", category.Slug)
}

func TestCategoryRenamed_WithoutCategoryRow(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Go", "cat1"),
		courseCreated("C2", "Rust", "cat1"),
		courseCreated("C3", "Zig", "cat1"),
		contracts.CategoryRenamed{CategoryEvent: contracts.Category("cat1"), Name: "Software", Slug: "software"},
	)

	for _, id := range []string{"C1", "C2", "C3"} {
		header := load[model.CourseHeader](h, model.CourseHeadersCollection, id)
		assert.Equal(t, "Software", header.CategoryName, id)
		assert.Equal(t, "software", header.CategorySlug, id)
		assert.Equal(t, "Software", h.page(id).CategoryName, id)
	}
	assert.Nil(t, load[model.Category](h, model.CategoriesCollection, "cat1"))
}

func TestCourseCategoryChanged_Denormalizes(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Go", "unknown"),
		contracts.CategoryCreated{CategoryEvent: contracts.Category("cat2"), Name: "Design", Slug: "design"},
	)

	summary := load[model.CourseSummary](h, model.CoursesCollection, "C1")
	assert.Equal(t, "unknown", summary.CategoryID)
	assert.Empty(t, summary.CategoryName)

	h.dispatch(contracts.CourseCategoryChanged{CourseEvent: contracts.Course("C1"), CategoryID: "cat2"})
	summary = load[model.CourseSummary](h, model.CoursesCollection, "C1")
	assert.Equal(t, "cat2", summary.CategoryID)
	assert.Equal(t, "Design", summary.CategoryName)
}

func TestCategoryDeleted_KeepsCourseNames(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		contracts.CategoryCreated{CategoryEvent: contracts.Category("cat1"), Name: "Programming", Slug: "programming"},
		courseCreated("C1", "Go", "cat1"),
		contracts.CategoryDeleted{CategoryEvent: contracts.Category("cat1")},
	)

	assert.Zero(t, h.store.Count(model.CategoriesCollection))
	header := load[model.CourseHeader](h, model.CourseHeadersCollection, "C1")
	assert.Equal(t, "Programming", header.CategoryName)
}

func TestEnrollmentAndViews(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	viewed := contracts.CourseViewed{Base: events.NewBase(), CourseID: "C1", ViewedAt: fixedNow}
	h.dispatch(
		courseCreated("C1", "Go", ""),
		contracts.EnrollmentCreated{Base: events.NewBase(), EnrollmentID: "e1", CourseID: "C1", UserID: "u1"},
		contracts.EnrollmentCreated{Base: events.NewBase(), EnrollmentID: "e2", CourseID: "C1", UserID: "u2"},
		viewed,
		viewed,
		contracts.CourseViewed{Base: events.NewBase(), CourseID: "C1", UserID: "u1"},
	)

	assert.Equal(t, 2, h.stats("C1").EnrollmentCount)
	assert.Equal(t, 2, h.store.Count(model.CourseViewsCollection))

	view := load[model.CourseView](h, model.CourseViewsCollection, viewed.EventID())
	require.NotNil(t, view)
	assert.Equal(t, fixedNow, view.ViewedAtUTC)
	assert.Empty(t, view.UserID)
}
