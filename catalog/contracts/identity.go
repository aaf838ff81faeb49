package contracts

import (
	"time"

	"github.com/akriventsev/coursecatalog/framework/events"
)

// Типы событий пользователей, категорий, записей и просмотров
const (
	TypeUserCreated       = "UserCreated"
	TypeCategoryCreated   = "CategoryCreated"
	TypeCategoryRenamed   = "CategoryRenamed"
	TypeCategoryDeleted   = "CategoryDeleted"
	TypeEnrollmentCreated = "EnrollmentCreated"
	TypeCourseViewed      = "CourseViewed"
)

// UserCreated пользователь зарегистрирован в сервисе пользователей
type UserCreated struct {
	events.Base
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (UserCreated) EventType() string      { return TypeUserCreated }
func (e UserCreated) AggregateID() string  { return e.UserID }
func (e UserCreated) PartitionKey() string { return e.UserID }
func (e UserCreated) CreatedID() string    { return e.UserID }

// CategoryEvent общая часть событий категории
type CategoryEvent struct {
	events.Base
	CategoryID string `json:"categoryId"`
}

// Category создает общую часть события категории
func Category(categoryID string) CategoryEvent {
	return CategoryEvent{Base: events.NewBase(), CategoryID: categoryID}
}

func (e CategoryEvent) AggregateID() string  { return e.CategoryID }
func (e CategoryEvent) PartitionKey() string { return e.CategoryID }

// CategoryCreated категория создана
type CategoryCreated struct {
	CategoryEvent
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (CategoryCreated) EventType() string   { return TypeCategoryCreated }
func (e CategoryCreated) CreatedID() string { return e.CategoryID }

// CategoryRenamed категория переименована
type CategoryRenamed struct {
	CategoryEvent
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (CategoryRenamed) EventType() string { return TypeCategoryRenamed }

// CategoryDeleted категория удалена
type CategoryDeleted struct {
	CategoryEvent
}

func (CategoryDeleted) EventType() string { return TypeCategoryDeleted }

// EnrollmentCreated пользователь записался на курс
type EnrollmentCreated struct {
	events.Base
	EnrollmentID string `json:"enrollmentId"`
	CourseID     string `json:"courseId"`
	UserID       string `json:"userId"`
}

func (EnrollmentCreated) EventType() string      { return TypeEnrollmentCreated }
func (e EnrollmentCreated) AggregateID() string  { return e.EnrollmentID }
func (e EnrollmentCreated) PartitionKey() string { return e.CourseID }

// CourseViewed страница курса просмотрена; UserID пуст для анонимов
type CourseViewed struct {
	events.Base
	CourseID string    `json:"courseId"`
	UserID   string    `json:"userId,omitempty"`
	ViewedAt time.Time `json:"viewedAt"`
}

func (CourseViewed) EventType() string      { return TypeCourseViewed }
func (e CourseViewed) AggregateID() string  { return e.CourseID }
func (e CourseViewed) PartitionKey() string { return e.CourseID }
