// Package contracts описывает интеграционные события каталога курсов.
// Все события встраивают events.Base и используют id курса как ключ партиции.
package contracts

import (
	"time"

	"github.com/akriventsev/coursecatalog/framework/events"
)

// Типы событий курса
const (
	TypeCourseCreated            = "CourseCreated"
	TypeCourseTitleChanged       = "CourseTitleChanged"
	TypeCourseDescriptionChanged = "CourseDescriptionChanged"
	TypeCoursePriceChanged       = "CoursePriceChanged"
	TypeCourseStatusChanged      = "CourseStatusChanged"
	TypeCourseCategoryChanged    = "CourseCategoryChanged"
	TypeCourseDifficultyChanged  = "CourseDifficultyChanged"
	TypeCourseLanguageChanged    = "CourseLanguageChanged"
	TypeCourseSlugChanged        = "CourseSlugChanged"
	TypeCourseTagsChanged        = "CourseTagsChanged"
	TypeCourseImageAdded         = "CourseImageAdded"
	TypeCourseImageRemoved       = "CourseImageRemoved"
	TypeCourseDeleted            = "CourseDeleted"
)

// CourseEvent общая часть событий курса
type CourseEvent struct {
	events.Base
	CourseID string `json:"courseId"`
}

// Course создает общую часть события курса с новым идентификатором события
func Course(courseID string) CourseEvent {
	return CourseEvent{Base: events.NewBase(), CourseID: courseID}
}

func (e CourseEvent) AggregateID() string  { return e.CourseID }
func (e CourseEvent) PartitionKey() string { return e.CourseID }

// CourseCreated курс создан
type CourseCreated struct {
	CourseEvent
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	InstructorID  string    `json:"instructorId"`
	PriceAmount   float64   `json:"priceAmount"`
	PriceCurrency string    `json:"priceCurrency"`
	Status        string    `json:"status"`
	Language      string    `json:"language"`
	Difficulty    string    `json:"difficulty"`
	Slug          string    `json:"slug"`
	CategoryID    string    `json:"categoryId,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (CourseCreated) EventType() string   { return TypeCourseCreated }
func (e CourseCreated) CreatedID() string { return e.CourseID }

// CourseTitleChanged изменено название курса
type CourseTitleChanged struct {
	CourseEvent
	Title string `json:"title"`
}

func (CourseTitleChanged) EventType() string { return TypeCourseTitleChanged }

// CourseDescriptionChanged изменено описание курса
type CourseDescriptionChanged struct {
	CourseEvent
	Description string `json:"description"`
}

func (CourseDescriptionChanged) EventType() string { return TypeCourseDescriptionChanged }

// CoursePriceChanged изменена цена курса
type CoursePriceChanged struct {
	CourseEvent
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func (CoursePriceChanged) EventType() string { return TypeCoursePriceChanged }

// CourseStatusChanged изменен статус курса
type CourseStatusChanged struct {
	CourseEvent
	Status string `json:"status"`
}

func (CourseStatusChanged) EventType() string { return TypeCourseStatusChanged }

// CourseCategoryChanged курс перенесен в другую категорию
type CourseCategoryChanged struct {
	CourseEvent
	CategoryID string `json:"categoryId"`
}

func (CourseCategoryChanged) EventType() string { return TypeCourseCategoryChanged }

// CourseDifficultyChanged изменена сложность курса
type CourseDifficultyChanged struct {
	CourseEvent
	Difficulty string `json:"difficulty"`
}

func (CourseDifficultyChanged) EventType() string { return TypeCourseDifficultyChanged }

// CourseLanguageChanged изменен язык курса
type CourseLanguageChanged struct {
	CourseEvent
	Language string `json:"language"`
}

func (CourseLanguageChanged) EventType() string { return TypeCourseLanguageChanged }

// CourseSlugChanged изменен slug курса
type CourseSlugChanged struct {
	CourseEvent
	Slug string `json:"slug"`
}

func (CourseSlugChanged) EventType() string { return TypeCourseSlugChanged }

// CourseTagsChanged заменен список тегов
type CourseTagsChanged struct {
	CourseEvent
	Tags []string `json:"tags"`
}

func (CourseTagsChanged) EventType() string { return TypeCourseTagsChanged }

// CourseImageAdded к курсу добавлено изображение
type CourseImageAdded struct {
	CourseEvent
	ImageURL string `json:"imageUrl"`
}

func (CourseImageAdded) EventType() string { return TypeCourseImageAdded }

// CourseImageRemoved изображение удалено из курса
type CourseImageRemoved struct {
	CourseEvent
	ImageURL string `json:"imageUrl"`
}

func (CourseImageRemoved) EventType() string { return TypeCourseImageRemoved }

// CourseDeleted курс удален
type CourseDeleted struct {
	CourseEvent
}

func (CourseDeleted) EventType() string { return TypeCourseDeleted }
