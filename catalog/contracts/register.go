package contracts

import "github.com/akriventsev/coursecatalog/framework/events"

// RegisterAll регистрирует в кодеке все события каталога
func RegisterAll(c *events.Codec) {
	events.Register[CourseCreated](c)
	events.Register[CourseTitleChanged](c)
	events.Register[CourseDescriptionChanged](c)
	events.Register[CoursePriceChanged](c)
	events.Register[CourseStatusChanged](c)
	events.Register[CourseCategoryChanged](c)
	events.Register[CourseDifficultyChanged](c)
	events.Register[CourseLanguageChanged](c)
	events.Register[CourseSlugChanged](c)
	events.Register[CourseTagsChanged](c)
	events.Register[CourseImageAdded](c)
	events.Register[CourseImageRemoved](c)
	events.Register[CourseDeleted](c)

	events.Register[ModuleCreated](c)
	events.Register[ModuleTitleChanged](c)
	events.Register[ModuleIndexUpdated](c)
	events.Register[ModuleDeleted](c)

	events.Register[LessonCreated](c)
	events.Register[LessonMetadataChanged](c)
	events.Register[LessonMediaChanged](c)
	events.Register[LessonAccessChanged](c)
	events.Register[LessonIndexChanged](c)
	events.Register[LessonDeleted](c)

	events.Register[UserCreated](c)
	events.Register[CategoryCreated](c)
	events.Register[CategoryRenamed](c)
	events.Register[CategoryDeleted](c)
	events.Register[EnrollmentCreated](c)
	events.Register[CourseViewed](c)

	events.Register[FileUploaded](c)
	events.Register[VideoProcessingCompleted](c)
}
