// Package storage превращает события сервиса хранения файлов в события
// каталога: изображение курса, превью урока, видео урока.
package storage

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/projection"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Имена потребителей
const (
	FileUploadedName   = "storage-file-uploaded"
	VideoProcessedName = "storage-video-processed"
)

// Канонические типы ссылок
const (
	ReferenceCourseImage = "course-image"
	ReferenceLessonThumb = "lesson-thumbnail"
	ReferenceLessonVideo = "lesson-video"
)

const (
	dropReasonReference    = "unknown reference type"
	dropReasonReferenceID  = "malformed reference id"
	dropReasonLessonAbsent = "lesson not projected"
	dropReasonFileKey      = "malformed file key"
)

// ReferenceType приводит тип ссылки к каноническому виду.
// Регистр и дефисы не учитываются; неизвестный тип возвращается пустым.
func ReferenceType(raw string) string {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "") {
	case "courseimage":
		return ReferenceCourseImage
	case "lessonthumbnail":
		return ReferenceLessonThumb
	case "lessonvideo":
		return ReferenceLessonVideo
	}
	return ""
}

// Dispatcher доставляет производные события проекторам
type Dispatcher interface {
	Dispatch(ctx context.Context, event events.Event) (projection.Report, error)
}

// Config конфигурация маршрутизатора
type Config struct {
	// ServiceName имя этого сервиса в поле ownerService
	ServiceName string
	// PublicBaseURL префикс публичных ссылок на файлы
	PublicBaseURL string
}

// Router маршрутизирует события хранилища
type Router struct {
	config     Config
	dispatcher Dispatcher
	log        *logger.Logger
}

// NewRouter создает маршрутизатор
func NewRouter(config Config, dispatcher Dispatcher, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{config: config, dispatcher: dispatcher, log: log.With("component", "storage-router")}
}

// Consumers возвращает потребителей FileUploaded и VideoProcessingCompleted
func (r *Router) Consumers() []*projection.Projector {
	uploaded := projection.NewProjector(FileUploadedName, core.PriorityNormal)
	projection.On(uploaded, r.fileUploaded)

	processed := projection.NewProjector(VideoProcessedName, core.PriorityNormal)
	projection.On(processed, r.videoProcessed)

	return []*projection.Projector{uploaded, processed}
}

func (r *Router) fileUploaded(ctx context.Context, s *readmodel.Session, e contracts.FileUploaded) error {
	reference, id, ok := r.accept(e, e.OwnerService, e.ReferenceType, e.ReferenceID)
	if !ok {
		return nil
	}
	fileURL, ok := r.publicURL(e, e.FileKey)
	if !ok {
		return nil
	}

	switch reference {
	case ReferenceCourseImage:
		return r.forward(ctx, contracts.CourseImageAdded{
			CourseEvent: contracts.CourseEvent{Base: derived(e), CourseID: id},
			ImageURL:    fileURL,
		})
	case ReferenceLessonThumb:
		media, ok, err := r.lessonMedia(ctx, s, e, id)
		if err != nil || !ok {
			return err
		}
		media.ThumbnailURL = fileURL
		return r.forward(ctx, media)
	default:
		// исходное видео урока становится доступно после транскодирования
		r.log.Debug("upload ignored", "event_id", e.EventID(), "reference_type", reference, "reference_id", id)
		return nil
	}
}

func (r *Router) videoProcessed(ctx context.Context, s *readmodel.Session, e contracts.VideoProcessingCompleted) error {
	reference, id, ok := r.accept(e, e.OwnerService, e.ReferenceType, e.ReferenceID)
	if !ok {
		return nil
	}
	if reference != ReferenceLessonVideo {
		r.drop(e, dropReasonReference, "reference_type", e.ReferenceType)
		return nil
	}

	videoURL, ok := r.publicURL(e, e.MasterFileKey)
	if !ok {
		return nil
	}
	media, ok, err := r.lessonMedia(ctx, s, e, id)
	if err != nil || !ok {
		return err
	}
	media.VideoURL = videoURL
	media.Duration = e.DurationSeconds
	if e.TranscriptKey != "" {
		if transcriptURL, ok := r.publicURL(e, e.TranscriptKey); ok {
			media.TranscriptURL = transcriptURL
		}
	}
	return r.forward(ctx, media)
}

// accept проверяет владельца, тип ссылки и идентификатор
func (r *Router) accept(e events.Event, owner, referenceType, referenceID string) (string, string, bool) {
	if !strings.EqualFold(strings.TrimSpace(owner), r.config.ServiceName) {
		r.log.Debug("event for another service", "event_id", e.EventID(), "owner_service", owner)
		return "", "", false
	}
	reference := ReferenceType(referenceType)
	if reference == "" {
		r.drop(e, dropReasonReference, "reference_type", referenceType)
		return "", "", false
	}
	id, err := uuid.Parse(referenceID)
	if err != nil {
		r.drop(e, dropReasonReferenceID, "reference_id", referenceID, "error", err)
		return "", "", false
	}
	return reference, id.String(), true
}

// lessonMedia собирает LessonMediaChanged из текущей строки урока.
// ok=false, если урок еще не спроецирован.
func (r *Router) lessonMedia(ctx context.Context, s *readmodel.Session, e events.Event, lessonID string) (contracts.LessonMediaChanged, bool, error) {
	lesson, err := readmodel.Of[model.Lesson](s, model.LessonsCollection).FindByID(ctx, lessonID)
	if err != nil {
		return contracts.LessonMediaChanged{}, false, err
	}
	if lesson == nil {
		r.drop(e, dropReasonLessonAbsent, "lesson_id", lessonID)
		return contracts.LessonMediaChanged{}, false, nil
	}

	previous := lesson.Duration
	return contracts.LessonMediaChanged{
		LessonEvent: contracts.LessonEvent{
			Base:     derived(e),
			CourseID: lesson.CourseID,
			ModuleID: lesson.ModuleID,
			LessonID: lesson.LessonID,
		},
		VideoURL:         lesson.VideoURL,
		ThumbnailURL:     lesson.ThumbnailURL,
		TranscriptURL:    lesson.TranscriptURL,
		Duration:         lesson.Duration,
		PreviousDuration: &previous,
	}, true, nil
}

func (r *Router) publicURL(e events.Event, key string) (string, bool) {
	if r.config.PublicBaseURL == "" {
		return key, true
	}
	u, err := url.JoinPath(r.config.PublicBaseURL, key)
	if err != nil {
		r.drop(e, dropReasonFileKey, "file_key", key, "error", err)
		return "", false
	}
	return u, true
}

// forward доставляет производное событие всем проекторам
func (r *Router) forward(ctx context.Context, event events.Event) error {
	report, err := r.dispatcher.Dispatch(ctx, event)
	if err != nil {
		return err
	}
	r.log.Debug("storage event routed",
		"event_type", event.EventType(),
		"correlation_id", event.Metadata().CorrelationID(),
		"applied", report.Applied,
		"missing", report.Missing,
	)
	return nil
}

func (r *Router) drop(e events.Event, reason string, kv ...interface{}) {
	args := append([]interface{}{"event_id", e.EventID(), "event_type", e.EventType(), "reason", reason}, kv...)
	r.log.Warn("storage event dropped", args...)
}

// derived создает Base производного события, связанный с исходным
func derived(source events.Event) events.Base {
	return events.NewBase().WithCorrelationID(source.EventID())
}
