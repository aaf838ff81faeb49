package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/catalog/projectors"
	"github.com/akriventsev/coursecatalog/catalog/storage"
	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

const service = "course-catalog"

type fixture struct {
	store      *repository.InMemoryStore
	dispatcher *projection.Dispatcher
	courseID   string
	moduleID   string
	lessonID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewInMemoryStore(repository.DefaultInMemoryConfig()),
		courseID: uuid.NewString(),
		moduleID: uuid.NewString(),
		lessonID: uuid.NewString(),
	}
	f.dispatcher = projection.NewDispatcher(f.store, projection.DefaultDispatcherConfig())
	for _, p := range projectors.All(nil) {
		require.NoError(t, f.dispatcher.Register(p))
	}
	router := storage.NewRouter(storage.Config{
		ServiceName:   service,
		PublicBaseURL: "https://cdn.example.com/media",
	}, f.dispatcher, nil)
	for _, c := range router.Consumers() {
		require.NoError(t, f.dispatcher.Register(c))
	}

	f.dispatch(t,
		contracts.CourseCreated{CourseEvent: contracts.Course(f.courseID), Title: "Intro"},
		contracts.ModuleCreated{ModuleEvent: contracts.Module(f.courseID, f.moduleID), Title: "Basics"},
		contracts.LessonCreated{
			LessonEvent: contracts.Lesson(f.courseID, f.moduleID, f.lessonID),
			Title:       "Welcome",
			VideoURL:    "https://cdn.example.com/media/old.m3u8",
			Duration:    60,
		},
	)
	return f
}

func (f *fixture) dispatch(t *testing.T, evs ...events.Event) {
	t.Helper()
	for _, e := range evs {
		_, err := f.dispatcher.Dispatch(context.Background(), e)
		require.NoError(t, err)
	}
}

func (f *fixture) lesson(t *testing.T) *model.Lesson {
	t.Helper()
	row, err := readmodel.Of[model.Lesson](readmodel.NewSession(f.store), model.LessonsCollection).FindByID(context.Background(), f.lessonID)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func (f *fixture) summary(t *testing.T) *model.CourseSummary {
	t.Helper()
	row, err := readmodel.Of[model.CourseSummary](readmodel.NewSession(f.store), model.CoursesCollection).FindByID(context.Background(), f.courseID)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func (f *fixture) stats(t *testing.T) *model.CourseStats {
	t.Helper()
	row, err := readmodel.Of[model.CourseStats](readmodel.NewSession(f.store), model.CourseStatsCollection).FindByID(context.Background(), f.courseID)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row
}

func TestReferenceType(t *testing.T) {
	tests := map[string]string{
		"course-image":     storage.ReferenceCourseImage,
		"CourseImage":      storage.ReferenceCourseImage,
		"LESSON-THUMBNAIL": storage.ReferenceLessonThumb,
		"lessonvideo":      storage.ReferenceLessonVideo,
		" lesson-video ":   storage.ReferenceLessonVideo,
		"avatar":           "",
		"":                 "",
	}
	for raw, want := range tests {
		assert.Equal(t, want, storage.ReferenceType(raw), raw)
	}
}

func TestFileUploaded_CourseImage(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, contracts.FileUploaded{
		Base:          events.NewBase(),
		OwnerService:  "Course-Catalog",
		ReferenceType: "CourseImage",
		ReferenceID:   f.courseID,
		FileKey:       "images/cover.png",
	})

	assert.Equal(t, model.Images{"https://cdn.example.com/media/images/cover.png"}, f.summary(t).Images)
}

func TestFileUploaded_LessonThumbnail(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, contracts.FileUploaded{
		Base:          events.NewBase(),
		OwnerService:  service,
		ReferenceType: "lesson-thumbnail",
		ReferenceID:   f.lessonID,
		FileKey:       "thumbs/1.jpg",
	})

	lesson := f.lesson(t)
	assert.Equal(t, "https://cdn.example.com/media/thumbs/1.jpg", lesson.ThumbnailURL)
	assert.Equal(t, "https://cdn.example.com/media/old.m3u8", lesson.VideoURL)
	assert.Equal(t, 60, lesson.Duration)
	assert.Equal(t, 60, f.stats(t).TotalDurationSeconds)
}

func TestVideoProcessingCompleted_UpdatesLessonAndTotals(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, contracts.VideoProcessingCompleted{
		Base:            events.NewBase(),
		OwnerService:    service,
		ReferenceType:   "LessonVideo",
		ReferenceID:     f.lessonID,
		MasterFileKey:   "videos/master.m3u8",
		DurationSeconds: 90,
		TranscriptKey:   "videos/transcript.vtt",
	})

	lesson := f.lesson(t)
	assert.Equal(t, "https://cdn.example.com/media/videos/master.m3u8", lesson.VideoURL)
	assert.Equal(t, "https://cdn.example.com/media/videos/transcript.vtt", lesson.TranscriptURL)
	assert.Equal(t, 90, lesson.Duration)
	assert.Equal(t, 90, f.stats(t).TotalDurationSeconds)
}

func TestStorageEvents_Dropped(t *testing.T) {
	tests := []struct {
		name  string
		event func(f *fixture) events.Event
	}{
		{
			name: "foreign owner",
			event: func(f *fixture) events.Event {
				return contracts.FileUploaded{Base: events.NewBase(), OwnerService: "billing", ReferenceType: "course-image", ReferenceID: f.courseID, FileKey: "x.png"}
			},
		},
		{
			name: "malformed reference id",
			event: func(f *fixture) events.Event {
				return contracts.FileUploaded{Base: events.NewBase(), OwnerService: service, ReferenceType: "course-image", ReferenceID: "not-a-uuid", FileKey: "x.png"}
			},
		},
		{
			name: "unknown reference type",
			event: func(f *fixture) events.Event {
				return contracts.FileUploaded{Base: events.NewBase(), OwnerService: service, ReferenceType: "avatar", ReferenceID: f.courseID, FileKey: "x.png"}
			},
		},
		{
			name: "lesson not projected",
			event: func(f *fixture) events.Event {
				return contracts.VideoProcessingCompleted{Base: events.NewBase(), OwnerService: service, ReferenceType: "lesson-video", ReferenceID: uuid.NewString(), MasterFileKey: "v.m3u8", DurationSeconds: 10}
			},
		},
		{
			name: "video for course image",
			event: func(f *fixture) events.Event {
				return contracts.VideoProcessingCompleted{Base: events.NewBase(), OwnerService: service, ReferenceType: "course-image", ReferenceID: f.courseID, MasterFileKey: "v.m3u8"}
			},
		},
		{
			name: "raw lesson video upload",
			event: func(f *fixture) events.Event {
				return contracts.FileUploaded{Base: events.NewBase(), OwnerService: service, ReferenceType: "lesson-video", ReferenceID: f.lessonID, FileKey: "raw.mp4"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			report, err := f.dispatcher.Dispatch(context.Background(), tt.event(f))
			require.NoError(t, err)
			assert.Equal(t, 1, report.Applied)

			assert.Empty(t, f.summary(t).Images)
			lesson := f.lesson(t)
			assert.Equal(t, "https://cdn.example.com/media/old.m3u8", lesson.VideoURL)
			assert.Equal(t, 60, f.stats(t).TotalDurationSeconds)
		})
	}
}
