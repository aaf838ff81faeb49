// Package core предоставляет базовые типы для всех компонентов фреймворка.
package core

// ComponentType enum для типов компонентов
type ComponentType string

const (
	ComponentTypeAdapter   ComponentType = "adapter"
	ComponentTypeTransport ComponentType = "transport"
	ComponentTypeHandler   ComponentType = "handler"
	ComponentTypeStore     ComponentType = "store"
)

// Priority определяет порядок вызова обработчиков одного события.
// Меньшее значение вызывается раньше.
type Priority int

const (
	PriorityLow      Priority = 100
	PriorityNormal   Priority = 50
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 1
)
