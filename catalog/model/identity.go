package model

import "time"

// Instructor синхронизированные данные пользователя-преподавателя
type Instructor struct {
	UserID       string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAtUTC time.Time `json:"createdAtUtc"`
	UpdatedAtUTC time.Time `json:"updatedAtUtc"`
}

func (i *Instructor) ID() string { return i.UserID }

// FullName возвращает имя и фамилию через пробел
func (i *Instructor) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// User локальная копия пользователя для стороны записи курсов.
// Создается один раз и не обновляется.
type User struct {
	UserID       string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	CreatedAtUTC time.Time `json:"createdAtUtc"`
}

func (u *User) ID() string { return u.UserID }

// Category запись таксономии
type Category struct {
	CategoryID   string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	CreatedAtUTC time.Time `json:"createdAtUtc"`
	UpdatedAtUTC time.Time `json:"updatedAtUtc"`
}

func (c *Category) ID() string { return c.CategoryID }

// CourseView факт просмотра курса, только добавление
type CourseView struct {
	ViewID      string    `json:"id"`
	CourseID    string    `json:"courseId"`
	UserID      string    `json:"userId,omitempty"`
	ViewedAtUTC time.Time `json:"viewedAtUtc"`
}

func (v *CourseView) ID() string { return v.ViewID }

func (v *CourseView) IndexKeys() map[string]string {
	return map[string]string{IndexCourseID: v.CourseID}
}
