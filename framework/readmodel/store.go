// Package readmodel предоставляет единицу работы (Session) поверх хранилища
// денормализованных read-моделей.
package readmodel

import (
	"context"

	"github.com/akriventsev/coursecatalog/framework/core"
)

// Entity строка read-модели с идентификатором
type Entity interface {
	ID() string
}

// Indexed строка read-модели со значениями вторичных индексов.
// Ключ карты - имя поля, значение - индексируемое значение.
type Indexed interface {
	IndexKeys() map[string]string
}

// OpKind вид операции записи
type OpKind int

const (
	// OpUpsert вставка или полная замена строки
	OpUpsert OpKind = iota
	// OpInsertIfAbsent вставка, если строки с таким id еще нет
	OpInsertIfAbsent
	// OpDelete удаление строки
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpUpsert:
		return "upsert"
	case OpInsertIfAbsent:
		return "insert_if_absent"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op операция записи, накопленная сессией
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       []byte
	Index      map[string]string
	// Version версия строки, прочитанная сессией. Для OpUpsert и OpDelete
	// запись выполняется, только если версия в хранилище совпадает.
	// 0 - без проверки.
	Version int64
}

// Document сырая строка коллекции. Версия начинается с 1 и растет
// при каждой записи строки.
type Document struct {
	ID      string
	Data    []byte
	Version int64
}

// Store backend хранилища read-моделей.
// Commit применяет все операции атомарно и возвращает количество
// фактически измененных строк. Несовпадение версии отменяет весь Commit
// с ошибкой Conflict.
type Store interface {
	FindByID(ctx context.Context, collection, id string) (Document, error)
	FindByIndex(ctx context.Context, collection, field, value string) ([]Document, error)
	FindAll(ctx context.Context, collection string) ([]Document, error)
	Commit(ctx context.Context, ops []Op) (int, error)
}

// NotFound возвращает ошибку отсутствия строки в хранилище
func NotFound(collection, id string) error {
	return core.Errorf(core.ErrNotFound, "%s/%s not found", collection, id)
}

// Conflict возвращает ошибку конкурентного изменения строки
func Conflict(collection, id string) error {
	return core.Errorf(core.ErrConflict, "%s/%s was changed concurrently", collection, id)
}

// IsConflict проверяет, что Commit отменен из-за конкурентного изменения
func IsConflict(err error) bool {
	return core.HasCode(err, core.ErrConflict)
}

// IsNotFound проверяет, что строка отсутствует в хранилище
func IsNotFound(err error) bool {
	return core.HasCode(err, core.ErrNotFound)
}
