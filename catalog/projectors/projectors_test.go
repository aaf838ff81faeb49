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

func TestEndToEnd_CourseModuleLesson(t *testing.T) {
	for _, mode := range []projection.Mode{projection.ModeIndependent, projection.ModeAtomic} {
		t.Run(string(mode), func(t *testing.T) {
			config := projection.DefaultDispatcherConfig()
			config.Mode = mode
			h := newHarness(t, config)

			h.dispatch(
				courseCreated("C1", "Intro", ""),
				moduleCreated("C1", "M1", "Basics", 0),
				lessonCreated("C1", "M1", "L1", "Welcome", 0, 120),
			)

			stats := h.stats("C1")
			require.NotNil(t, stats)
			assert.Equal(t, 1, stats.ModulesCount)
			assert.Equal(t, 1, stats.LessonsCount)
			assert.Equal(t, 120, stats.TotalDurationSeconds)

			structure := h.structure("C1")
			require.NotNil(t, structure)
			require.Len(t, structure.Modules, 1)
			assert.Equal(t, "Basics", structure.Modules[0].Title)
			require.Len(t, structure.Modules[0].Lessons, 1)
			assert.Equal(t, "Welcome", structure.Modules[0].Lessons[0].Title)
			assert.Equal(t, 0, structure.Modules[0].Lessons[0].Index)

			module := h.module("M1")
			require.NotNil(t, module)
			assert.Equal(t, 1, module.LessonCount)
			assert.Equal(t, 120, module.TotalDurationSeconds)

			page := h.page("C1")
			require.NotNil(t, page)
			assert.Equal(t, "Intro", page.Title)
			assert.Equal(t, []string{"L1"}, page.Modules[0].Lessons.IDs())
		})
	}
}

func TestCourseCreated_DefaultsNestedFields(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(courseCreated("C1", "Intro", ""))

	summary := load[model.CourseSummary](h, model.CoursesCollection, "C1")
	require.NotNil(t, summary)
	assert.NotNil(t, summary.Images)
	assert.Empty(t, summary.Images)
	assert.Equal(t, fixedNow, summary.UpdatedAtUTC)
	assert.Equal(t, fixedNow, summary.CreatedAtUTC)

	header := load[model.CourseHeader](h, model.CourseHeadersCollection, "C1")
	require.NotNil(t, header)
	assert.Equal(t, "USD", header.PriceCurrency)

	stats := h.stats("C1")
	require.NotNil(t, stats)
	assert.Zero(t, stats.ModulesCount)
	assert.Zero(t, stats.LessonsCount)
}

func TestCourseCreated_RedeliveryKeepsRow(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	created := courseCreated("C1", "Intro", "")
	h.dispatch(created, contracts.CourseTitleChanged{CourseEvent: contracts.Course("C1"), Title: "Renamed"})
	h.dispatch(created)

	summary := load[model.CourseSummary](h, model.CoursesCollection, "C1")
	assert.Equal(t, "Renamed", summary.Title)
	assert.Equal(t, 1, h.store.Count(model.CoursesCollection))
}

func TestCourseAttributeChanges(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		contracts.CoursePriceChanged{CourseEvent: contracts.Course("C1"), Amount: 10, Currency: "EUR"},
		contracts.CourseStatusChanged{CourseEvent: contracts.Course("C1"), Status: "published"},
		contracts.CourseTagsChanged{CourseEvent: contracts.Course("C1"), Tags: []string{"go", "cqrs"}},
		contracts.CourseImageAdded{CourseEvent: contracts.Course("C1"), ImageURL: "a.png"},
		contracts.CourseImageAdded{CourseEvent: contracts.Course("C1"), ImageURL: "a.png"},
		contracts.CourseImageAdded{CourseEvent: contracts.Course("C1"), ImageURL: "b.png"},
		contracts.CourseImageRemoved{CourseEvent: contracts.Course("C1"), ImageURL: "missing.png"},
		contracts.CourseImageRemoved{CourseEvent: contracts.Course("C1"), ImageURL: "a.png"},
	)

	summary := load[model.CourseSummary](h, model.CoursesCollection, "C1")
	assert.Equal(t, 10.0, summary.PriceAmount)
	assert.Equal(t, "EUR", summary.PriceCurrency)
	assert.Equal(t, "published", summary.Status)
	assert.Equal(t, []string{"go", "cqrs"}, summary.Tags)
	assert.Equal(t, model.Images{"b.png"}, summary.Images)

	page := h.page("C1")
	assert.Equal(t, model.Images{"b.png"}, page.Images)
	assert.Equal(t, "published", page.Status)
}

func TestCourseChange_UnknownCourseIsNoop(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	report, err := h.dispatcher.Dispatch(t.Context(), contracts.CourseTitleChanged{CourseEvent: contracts.Course("nope"), Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, report.Consumers, report.Missing)
	assert.Zero(t, h.store.Count(model.CoursesCollection))
}

func TestCourseDeleted_RemovesCourseRows(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(courseCreated("C1", "Intro", ""), courseCreated("C2", "Other", ""))
	h.dispatch(contracts.CourseDeleted{CourseEvent: contracts.Course("C1")})

	for _, c := range []string{
		model.CoursesCollection,
		model.CourseHeadersCollection,
		model.CoursePagesCollection,
		model.CourseStructuresCollection,
		model.CourseStatsCollection,
	} {
		assert.Equal(t, 1, h.store.Count(c), c)
	}
	assert.Nil(t, h.stats("C1"))
	assert.NotNil(t, h.stats("C2"))
}

func TestLessons_SortedByIndex(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		moduleCreated("C1", "M1", "Basics", 0),
		lessonCreated("C1", "M1", "L2", "Third", 2, 10),
		lessonCreated("C1", "M1", "L0", "First", 0, 10),
		lessonCreated("C1", "M1", "L1", "Second", 1, 10),
	)

	structure := h.structure("C1")
	assert.Equal(t, []string{"L0", "L1", "L2"}, structure.Modules[0].Lessons.IDs())
	assert.Equal(t, []string{"L0", "L1", "L2"}, h.page("C1").Modules[0].Lessons.IDs())

	h.dispatch(contracts.LessonIndexChanged{LessonEvent: contracts.Lesson("C1", "M1", "L0"), Index: 5})
	assert.Equal(t, []string{"L1", "L2", "L0"}, h.structure("C1").Modules[0].Lessons.IDs())
	assert.Equal(t, 5, h.lesson("L0").Index)
}

func TestModules_ReorderAndDelete(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		moduleCreated("C1", "M1", "One", 0),
		moduleCreated("C1", "M2", "Two", 1),
		lessonCreated("C1", "M1", "L1", "Welcome", 0, 30),
		lessonCreated("C1", "M2", "L2", "Next", 0, 45),
		contracts.ModuleIndexUpdated{ModuleEvent: contracts.Module("C1", "M1"), Index: 3},
	)
	assert.Equal(t, []string{"M2", "M1"}, h.structure("C1").Modules.IDs())
	assert.Equal(t, []string{"M2", "M1"}, h.page("C1").Modules.IDs())

	h.dispatch(contracts.ModuleDeleted{ModuleEvent: contracts.Module("C1", "M1")})

	assert.Equal(t, []string{"M2"}, h.structure("C1").Modules.IDs())
	assert.Nil(t, h.module("M1"))
	stats := h.stats("C1")
	assert.Equal(t, 1, stats.ModulesCount)
	assert.Equal(t, 1, stats.LessonsCount)
	assert.Equal(t, 45, stats.TotalDurationSeconds)
}

func TestCounters_ClampAtZero(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		moduleCreated("C1", "M1", "Basics", 0),
		contracts.LessonDeleted{LessonEvent: contracts.Lesson("C1", "M1", "L1"), Duration: intPtr(300)},
		contracts.ModuleDeleted{ModuleEvent: contracts.Module("C1", "M2")},
		contracts.ModuleDeleted{ModuleEvent: contracts.Module("C1", "M1")},
	)

	stats := h.stats("C1")
	assert.Equal(t, 0, stats.ModulesCount)
	assert.Equal(t, 0, stats.LessonsCount)
	assert.Equal(t, 0, stats.TotalDurationSeconds)
}

func TestLessonMediaChanged_DurationDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous *int
	}{
		{name: "read from lesson row"},
		{name: "carried by event", previous: intPtr(60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, projection.DefaultDispatcherConfig())
			h.dispatch(
				courseCreated("C1", "Intro", ""),
				moduleCreated("C1", "M1", "Basics", 0),
				lessonCreated("C1", "M1", "L1", "Welcome", 0, 60),
				lessonCreated("C1", "M1", "L2", "Other", 1, 100),
				contracts.LessonMediaChanged{
					LessonEvent:      contracts.Lesson("C1", "M1", "L1"),
					VideoURL:         "https://cdn/l1.m3u8",
					Duration:         90,
					PreviousDuration: tt.previous,
				},
			)

			assert.Equal(t, 190, h.stats("C1").TotalDurationSeconds)
			assert.Equal(t, 190, h.module("M1").TotalDurationSeconds)
			assert.Equal(t, 90, h.lesson("L1").Duration)
			assert.Equal(t, "https://cdn/l1.m3u8", h.lesson("L1").VideoURL)

			lessons := h.structure("C1").Modules[0].Lessons
			assert.Equal(t, 90, lessons.Find("L1").Duration)
			assert.Equal(t, 190, h.structure("C1").Modules[0].TotalDuration())
		})
	}
}

func TestLessonDeleted_SubtractsLessonDuration(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		moduleCreated("C1", "M1", "Basics", 0),
		lessonCreated("C1", "M1", "L1", "Welcome", 0, 60),
		lessonCreated("C1", "M1", "L2", "Other", 1, 100),
		contracts.LessonDeleted{LessonEvent: contracts.Lesson("C1", "M1", "L1")},
	)

	stats := h.stats("C1")
	assert.Equal(t, 1, stats.LessonsCount)
	assert.Equal(t, 100, stats.TotalDurationSeconds)
	assert.Equal(t, 1, h.module("M1").LessonCount)
	assert.Nil(t, h.lesson("L1"))
	assert.Equal(t, []string{"L2"}, h.structure("C1").Modules[0].Lessons.IDs())
}

func TestOutOfOrder_RenameBeforeCreateIsLost(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		contracts.ModuleTitleChanged{ModuleEvent: contracts.Module("C1", "M1"), Title: "Renamed"},
	)
	assert.Nil(t, h.module("M1"))
	assert.Empty(t, h.structure("C1").Modules)

	h.dispatch(moduleCreated("C1", "M1", "Basics", 0))
	assert.Equal(t, "Basics", h.module("M1").Title)
	assert.Equal(t, "Basics", h.structure("C1").Modules[0].Title)
}

func TestOutOfOrder_ParkedRenameIsReplayed(t *testing.T) {
	config := projection.DefaultDispatcherConfig()
	config.Parking.Enabled = true
	h := newHarness(t, config)

	h.dispatch(courseCreated("C1", "Intro", ""))
	report, err := h.dispatcher.Dispatch(t.Context(), contracts.ModuleTitleChanged{ModuleEvent: contracts.Module("C1", "M1"), Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Parked)

	report, err = h.dispatcher.Dispatch(t.Context(), moduleCreated("C1", "M1", "Basics", 0))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Replayed)

	assert.Equal(t, "Renamed", h.module("M1").Title)
	assert.Equal(t, "Renamed", h.structure("C1").Modules[0].Title)
	assert.Equal(t, "Renamed", h.page("C1").Modules[0].Title)
	assert.Zero(t, h.dispatcher.Parking().Len())
}

func TestLessonCreated_UnknownModuleIsNoop(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		lessonCreated("C1", "M9", "L1", "Welcome", 0, 60),
	)

	assert.Empty(t, h.structure("C1").Modules)
	// счетчики курса от модуля не зависят
	assert.Equal(t, 1, h.stats("C1").LessonsCount)
}

func TestCounters_RedeliveryIsCountedOnce(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	module := moduleCreated("C1", "M1", "Basics", 0)
	lesson := lessonCreated("C1", "M1", "L1", "Welcome", 0, 60)
	enrollment := contracts.EnrollmentCreated{Base: events.NewBase(), EnrollmentID: "E1", CourseID: "C1", UserID: "u2"}
	media := contracts.LessonMediaChanged{
		LessonEvent:      contracts.Lesson("C1", "M1", "L1"),
		Duration:         90,
		PreviousDuration: intPtr(60),
	}

	h.dispatch(courseCreated("C1", "Intro", ""))
	for i := 0; i < 2; i++ {
		h.dispatch(module, lesson, enrollment, media)
	}

	stats := h.stats("C1")
	assert.Equal(t, 1, stats.ModulesCount)
	assert.Equal(t, 1, stats.LessonsCount)
	assert.Equal(t, 90, stats.TotalDurationSeconds)
	assert.Equal(t, 1, stats.EnrollmentCount)

	m := h.module("M1")
	assert.Equal(t, 1, m.LessonCount)
	assert.Equal(t, 90, m.TotalDurationSeconds)
}

func TestLessonDeleted_RedeliveryIsCountedOnce(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	deleted := contracts.LessonDeleted{LessonEvent: contracts.Lesson("C1", "M1", "L1"), Duration: intPtr(60)}
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		moduleCreated("C1", "M1", "Basics", 0),
		lessonCreated("C1", "M1", "L1", "Welcome", 0, 60),
		lessonCreated("C1", "M1", "L2", "Other", 1, 100),
		deleted,
		deleted,
	)

	stats := h.stats("C1")
	assert.Equal(t, 1, stats.LessonsCount)
	assert.Equal(t, 100, stats.TotalDurationSeconds)
	assert.Equal(t, 1, h.module("M1").LessonCount)
	assert.Equal(t, 100, h.module("M1").TotalDurationSeconds)
}

func TestLessonDeleted_AfterModuleDeletedIsNotSubtractedTwice(t *testing.T) {
	h := newHarness(t, projection.DefaultDispatcherConfig())
	h.dispatch(
		courseCreated("C1", "Intro", ""),
		moduleCreated("C1", "M1", "One", 0),
		moduleCreated("C1", "M2", "Two", 1),
		lessonCreated("C1", "M1", "L1", "Welcome", 0, 30),
		lessonCreated("C1", "M2", "L2", "Next", 0, 45),
		contracts.ModuleDeleted{ModuleEvent: contracts.Module("C1", "M1")},
		contracts.LessonDeleted{LessonEvent: contracts.Lesson("C1", "M1", "L1")},
	)

	stats := h.stats("C1")
	assert.Equal(t, 1, stats.ModulesCount)
	assert.Equal(t, 1, stats.LessonsCount)
	assert.Equal(t, 45, stats.TotalDurationSeconds)
}
