package model

import (
	"time"

	"github.com/akriventsev/coursecatalog/catalog/outline"
)

// CourseStructure навигационное дерево курса, независимое от CoursePage
type CourseStructure struct {
	CourseID     string                        `json:"id"`
	Modules      outline.List[StructureModule] `json:"modules"`
	UpdatedAtUTC time.Time                     `json:"updatedAtUtc"`
}

func (c *CourseStructure) ID() string { return c.CourseID }

// StructureModule модуль в дереве курса
type StructureModule struct {
	ModuleID string                        `json:"id"`
	Title    string                        `json:"title"`
	Index    int                           `json:"index"`
	Lessons  outline.List[StructureLesson] `json:"lessons"`
}

func (m StructureModule) NodeID() string { return m.ModuleID }
func (m StructureModule) NodeIndex() int { return m.Index }

// TotalDuration суммирует длительность уроков модуля
func (m StructureModule) TotalDuration() int {
	total := 0
	for _, l := range m.Lessons {
		total += l.Duration
	}
	return total
}

// StructureLesson урок в дереве курса
type StructureLesson struct {
	LessonID     string `json:"id"`
	Title        string `json:"title"`
	Index        int    `json:"index"`
	Duration     int    `json:"duration"`
	Access       string `json:"access"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func (l StructureLesson) NodeID() string { return l.LessonID }
func (l StructureLesson) NodeIndex() int { return l.Index }

// CourseStats агрегированные счетчики курса. Счетчики не бывают отрицательными.
type CourseStats struct {
	CourseID             string    `json:"id"`
	ModulesCount         int       `json:"modulesCount"`
	LessonsCount         int       `json:"lessonsCount"`
	TotalDurationSeconds int       `json:"totalDurationSeconds"`
	EnrollmentCount      int       `json:"enrollmentCount"`
	Applied              Applied   `json:"appliedEvents,omitempty"`
	UpdatedAtUTC         time.Time `json:"updatedAtUtc"`
}

func (c *CourseStats) ID() string { return c.CourseID }

// Module строка модуля
type Module struct {
	ModuleID             string    `json:"id"`
	CourseID             string    `json:"courseId"`
	Title                string    `json:"title"`
	Index                int       `json:"index"`
	LessonCount          int       `json:"lessonCount"`
	TotalDurationSeconds int       `json:"totalDurationSeconds"`
	Applied              Applied   `json:"appliedEvents,omitempty"`
	CreatedAtUTC         time.Time `json:"createdAtUtc"`
	UpdatedAtUTC         time.Time `json:"updatedAtUtc"`
}

func (m *Module) ID() string { return m.ModuleID }

func (m *Module) IndexKeys() map[string]string {
	return map[string]string{IndexCourseID: m.CourseID}
}

// Lesson строка урока. Duration в секундах.
type Lesson struct {
	LessonID      string    `json:"id"`
	ModuleID      string    `json:"moduleId"`
	CourseID      string    `json:"courseId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Slug          string    `json:"slug"`
	Index         int       `json:"index"`
	Access        string    `json:"access"`
	VideoURL      string    `json:"videoUrl,omitempty"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	TranscriptURL string    `json:"transcriptUrl,omitempty"`
	Duration      int       `json:"duration"`
	CreatedAtUTC  time.Time `json:"createdAtUtc"`
	UpdatedAtUTC  time.Time `json:"updatedAtUtc"`
}

func (l *Lesson) ID() string { return l.LessonID }

func (l *Lesson) IndexKeys() map[string]string {
	return map[string]string{IndexCourseID: l.CourseID}
}

// AppliedWindow сколько последних событий помнит строка со счетчиками
const AppliedWindow = 128

// Applied идентификаторы последних событий, уже учтенных в счетчиках строки.
// Повторная доставка события из окна счетчики не меняет.
type Applied []string

// Has сообщает, учтено ли событие
func (a Applied) Has(eventID string) bool {
	for _, id := range a {
		if id == eventID {
			return true
		}
	}
	return false
}

// Add запоминает событие, вытесняя самые старые за пределами окна
func (a *Applied) Add(eventID string) {
	*a = append(*a, eventID)
	if n := len(*a) - AppliedWindow; n > 0 {
		*a = append((*a)[:0], (*a)[n:]...)
	}
}
