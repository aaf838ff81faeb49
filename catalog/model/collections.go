// Package model содержит строки read-моделей каталога курсов.
// Каждая read-модель восстанавливается независимо и не ссылается на другие
// строки внешними ключами.
package model

// Коллекции read-моделей
const (
	CoursesCollection          = "courses"
	CourseHeadersCollection    = "course_headers"
	CoursePagesCollection      = "course_pages"
	CourseStructuresCollection = "course_structures"
	CourseStatsCollection      = "course_stats"
	ModulesCollection          = "modules"
	LessonsCollection          = "lessons"
	InstructorsCollection      = "instructors"
	UsersCollection            = "users"
	CategoriesCollection       = "categories"
	CourseViewsCollection      = "course_views"
)

// Имена вторичных индексов
const (
	IndexCategoryID = "category_id"
	IndexCourseID   = "course_id"
)

// Collections возвращает все коллекции каталога
func Collections() []string {
	return []string{
		CoursesCollection,
		CourseHeadersCollection,
		CoursePagesCollection,
		CourseStructuresCollection,
		CourseStatsCollection,
		ModulesCollection,
		LessonsCollection,
		InstructorsCollection,
		UsersCollection,
		CategoriesCollection,
		CourseViewsCollection,
	}
}

// IndexedFields возвращает вторичные индексы по коллекциям
func IndexedFields() map[string][]string {
	return map[string][]string{
		CoursesCollection:       {IndexCategoryID},
		CourseHeadersCollection: {IndexCategoryID},
		CoursePagesCollection:   {IndexCategoryID},
		ModulesCollection:       {IndexCourseID},
		LessonsCollection:       {IndexCourseID},
		CourseViewsCollection:   {IndexCourseID},
	}
}
