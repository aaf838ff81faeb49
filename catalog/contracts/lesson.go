package contracts

import "github.com/akriventsev/coursecatalog/framework/events"

// Типы событий урока
const (
	TypeLessonCreated         = "LessonCreated"
	TypeLessonMetadataChanged = "LessonMetadataChanged"
	TypeLessonMediaChanged    = "LessonMediaChanged"
	TypeLessonAccessChanged   = "LessonAccessChanged"
	TypeLessonIndexChanged    = "LessonIndexChanged"
	TypeLessonDeleted         = "LessonDeleted"
)

// LessonEvent общая часть событий урока
type LessonEvent struct {
	events.Base
	CourseID string `json:"courseId"`
	ModuleID string `json:"moduleId"`
	LessonID string `json:"lessonId"`
}

// Lesson создает общую часть события урока
func Lesson(courseID, moduleID, lessonID string) LessonEvent {
	return LessonEvent{Base: events.NewBase(), CourseID: courseID, ModuleID: moduleID, LessonID: lessonID}
}

func (e LessonEvent) AggregateID() string  { return e.LessonID }
func (e LessonEvent) PartitionKey() string { return e.CourseID }

// LessonCreated урок добавлен в модуль. Duration в секундах.
type LessonCreated struct {
	LessonEvent
	Title         string `json:"title"`
	Description   string `json:"description"`
	Slug          string `json:"slug"`
	Index         int    `json:"index"`
	Access        string `json:"access"`
	VideoURL      string `json:"videoUrl,omitempty"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
	TranscriptURL string `json:"transcriptUrl,omitempty"`
	Duration      int    `json:"duration"`
}

func (LessonCreated) EventType() string   { return TypeLessonCreated }
func (e LessonCreated) CreatedID() string { return e.LessonID }

// LessonMetadataChanged изменены текстовые поля урока
type LessonMetadataChanged struct {
	LessonEvent
	Title       string `json:"title"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
}

func (LessonMetadataChanged) EventType() string { return TypeLessonMetadataChanged }

// LessonMediaChanged изменены медиа урока.
// PreviousDuration заполняется, когда отправитель знает прежнюю длительность.
type LessonMediaChanged struct {
	LessonEvent
	VideoURL         string `json:"videoUrl,omitempty"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
	TranscriptURL    string `json:"transcriptUrl,omitempty"`
	Duration         int    `json:"duration"`
	PreviousDuration *int   `json:"previousDuration,omitempty"`
}

func (LessonMediaChanged) EventType() string { return TypeLessonMediaChanged }

// LessonAccessChanged изменен уровень доступа урока
type LessonAccessChanged struct {
	LessonEvent
	Access string `json:"access"`
}

func (LessonAccessChanged) EventType() string { return TypeLessonAccessChanged }

// LessonIndexChanged изменена позиция урока в модуле
type LessonIndexChanged struct {
	LessonEvent
	Index int `json:"index"`
}

func (LessonIndexChanged) EventType() string { return TypeLessonIndexChanged }

// LessonDeleted урок удален. Duration, если задан, равен длительности удаленного урока.
type LessonDeleted struct {
	LessonEvent
	Duration *int `json:"duration,omitempty"`
}

func (LessonDeleted) EventType() string { return TypeLessonDeleted }
