package contracts

import "github.com/akriventsev/coursecatalog/framework/events"

// Типы событий модуля
const (
	TypeModuleCreated      = "ModuleCreated"
	TypeModuleTitleChanged = "ModuleTitleChanged"
	TypeModuleIndexUpdated = "ModuleIndexUpdated"
	TypeModuleDeleted      = "ModuleDeleted"
)

// ModuleEvent общая часть событий модуля
type ModuleEvent struct {
	events.Base
	CourseID string `json:"courseId"`
	ModuleID string `json:"moduleId"`
}

// Module создает общую часть события модуля
func Module(courseID, moduleID string) ModuleEvent {
	return ModuleEvent{Base: events.NewBase(), CourseID: courseID, ModuleID: moduleID}
}

func (e ModuleEvent) AggregateID() string  { return e.ModuleID }
func (e ModuleEvent) PartitionKey() string { return e.CourseID }

// ModuleCreated модуль добавлен в курс
type ModuleCreated struct {
	ModuleEvent
	Title string `json:"title"`
	Index int    `json:"index"`
}

func (ModuleCreated) EventType() string   { return TypeModuleCreated }
func (e ModuleCreated) CreatedID() string { return e.ModuleID }

// ModuleTitleChanged изменено название модуля
type ModuleTitleChanged struct {
	ModuleEvent
	Title string `json:"title"`
}

func (ModuleTitleChanged) EventType() string { return TypeModuleTitleChanged }

// ModuleIndexUpdated изменена позиция модуля
type ModuleIndexUpdated struct {
	ModuleEvent
	Index int `json:"index"`
}

func (ModuleIndexUpdated) EventType() string { return TypeModuleIndexUpdated }

// ModuleDeleted модуль удален вместе с уроками
type ModuleDeleted struct {
	ModuleEvent
}

func (ModuleDeleted) EventType() string { return TypeModuleDeleted }
