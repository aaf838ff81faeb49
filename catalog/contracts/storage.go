package contracts

import "github.com/akriventsev/coursecatalog/framework/events"

// Типы событий сервиса хранения файлов
const (
	TypeFileUploaded             = "FileUploaded"
	TypeVideoProcessingCompleted = "VideoProcessingCompleted"
)

// FileUploaded файл загружен в хранилище от имени OwnerService
type FileUploaded struct {
	events.Base
	OwnerService  string `json:"ownerService"`
	ReferenceType string `json:"referenceType"`
	ReferenceID   string `json:"referenceId"`
	FileKey       string `json:"fileKey"`
}

func (FileUploaded) EventType() string     { return TypeFileUploaded }
func (e FileUploaded) AggregateID() string { return e.ReferenceID }

// VideoProcessingCompleted транскодирование видео завершено
type VideoProcessingCompleted struct {
	events.Base
	OwnerService    string `json:"ownerService"`
	ReferenceType   string `json:"referenceType"`
	ReferenceID     string `json:"referenceId"`
	MasterFileKey   string `json:"masterFileKey"`
	DurationSeconds int    `json:"durationSeconds"`
	TranscriptKey   string `json:"transcriptKey,omitempty"`
}

func (VideoProcessingCompleted) EventType() string     { return TypeVideoProcessingCompleted }
func (e VideoProcessingCompleted) AggregateID() string { return e.ReferenceID }
