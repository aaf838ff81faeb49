package model

import (
	"time"

	"github.com/akriventsev/coursecatalog/catalog/outline"
)

// CourseFields поля курса, общие для summary, header и page
type CourseFields struct {
	CourseID      string    `json:"id"`
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
	CategoryName  string    `json:"categoryName,omitempty"`
	CategorySlug  string    `json:"categorySlug,omitempty"`
	Tags          []string  `json:"tags"`
	CreatedAtUTC  time.Time `json:"createdAtUtc"`
	UpdatedAtUTC  time.Time `json:"updatedAtUtc"`
}

func (c *CourseFields) ID() string { return c.CourseID }

// Fields возвращает общие поля курса
func (c *CourseFields) Fields() *CourseFields { return c }

// IndexKeys индексирует курс по категории
func (c *CourseFields) IndexKeys() map[string]string {
	return map[string]string{IndexCategoryID: c.CategoryID}
}

// SetCategory денормализует категорию в строку курса
func (c *CourseFields) SetCategory(id string, category *Category) {
	c.CategoryID = id
	c.CategoryName, c.CategorySlug = "", ""
	if category != nil {
		c.CategoryName = category.Name
		c.CategorySlug = category.Slug
	}
}

// Images список изображений курса без повторов
type Images []string

// Add добавляет url, если его еще нет
func (im *Images) Add(url string) bool {
	for _, existing := range *im {
		if existing == url {
			return false
		}
	}
	*im = append(*im, url)
	return true
}

// Remove удаляет url; отсутствие url не ошибка
func (im *Images) Remove(url string) bool {
	for i, existing := range *im {
		if existing == url {
			*im = append((*im)[:i], (*im)[i+1:]...)
			return true
		}
	}
	return false
}

// CourseSummary строка каталога курсов
type CourseSummary struct {
	CourseFields
	Images Images `json:"images"`
}

// ImageList возвращает изображения курса
func (c *CourseSummary) ImageList() *Images { return &c.Images }

// CourseHeader облегченная строка заголовка курса
type CourseHeader struct {
	CourseFields
}

// CoursePage публичная страница курса с вложенными модулями и уроками
type CoursePage struct {
	CourseFields
	Images  Images                   `json:"images"`
	Modules outline.List[PageModule] `json:"modules"`
}

// ImageList возвращает изображения курса
func (c *CoursePage) ImageList() *Images { return &c.Images }

// PageModule модуль на странице курса
type PageModule struct {
	ModuleID string                   `json:"id"`
	Title    string                   `json:"title"`
	Index    int                      `json:"index"`
	Lessons  outline.List[PageLesson] `json:"lessons"`
}

func (m PageModule) NodeID() string { return m.ModuleID }
func (m PageModule) NodeIndex() int { return m.Index }

// PageLesson урок на странице курса
type PageLesson struct {
	LessonID     string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Slug         string `json:"slug"`
	Index        int    `json:"index"`
	Access       string `json:"access"`
	Duration     int    `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func (l PageLesson) NodeID() string { return l.LessonID }
func (l PageLesson) NodeIndex() int { return l.Index }
