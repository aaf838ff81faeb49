package projectors_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/catalog/projectors"
	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t          *testing.T
	store      *repository.InMemoryStore
	dispatcher *projection.Dispatcher
}

func newHarness(t *testing.T, config projection.DispatcherConfig) *harness {
	t.Helper()
	store := repository.NewInMemoryStore(repository.DefaultInMemoryConfig())
	d := projection.NewDispatcher(store, config)
	for _, p := range projectors.All(func() time.Time { return fixedNow }) {
		require.NoError(t, d.Register(p))
	}
	return &harness{t: t, store: store, dispatcher: d}
}

func (h *harness) dispatch(evs ...events.Event) {
	h.t.Helper()
	for _, e := range evs {
		_, err := h.dispatcher.Dispatch(context.Background(), e)
		require.NoError(h.t, err, e.EventType())
	}
}

func load[E any, P readmodel.Row[E]](h *harness, collection, id string) P {
	h.t.Helper()
	row, err := readmodel.Of[E, P](readmodel.NewSession(h.store), collection).FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return row
}

func (h *harness) stats(courseID string) *model.CourseStats {
	return load[model.CourseStats](h, model.CourseStatsCollection, courseID)
}

func (h *harness) structure(courseID string) *model.CourseStructure {
	return load[model.CourseStructure](h, model.CourseStructuresCollection, courseID)
}

func (h *harness) page(courseID string) *model.CoursePage {
	return load[model.CoursePage](h, model.CoursePagesCollection, courseID)
}

func (h *harness) module(moduleID string) *model.Module {
	return load[model.Module](h, model.ModulesCollection, moduleID)
}

func (h *harness) lesson(lessonID string) *model.Lesson {
	return load[model.Lesson](h, model.LessonsCollection, lessonID)
}

func courseCreated(id, title, categoryID string) contracts.CourseCreated {
	return contracts.CourseCreated{
		CourseEvent:   contracts.Course(id),
		Title:         title,
		InstructorID:  "u1",
		PriceAmount:   49.9,
		PriceCurrency: "USD",
		Status:        "draft",
		Language:      "en",
		Difficulty:    "beginner",
		Slug:          "intro",
		CategoryID:    categoryID,
	}
}

func moduleCreated(courseID, moduleID, title string, index int) contracts.ModuleCreated {
	return contracts.ModuleCreated{ModuleEvent: contracts.Module(courseID, moduleID), Title: title, Index: index}
}

func lessonCreated(courseID, moduleID, lessonID, title string, index, duration int) contracts.LessonCreated {
	return contracts.LessonCreated{
		LessonEvent: contracts.Lesson(courseID, moduleID, lessonID),
		Title:       title,
		Index:       index,
		Access:      "free",
		Duration:    duration,
	}
}

func intPtr(v int) *int { return &v }
