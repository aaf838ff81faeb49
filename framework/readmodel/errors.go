package readmodel

import (
	"errors"
	"fmt"
)

// MissingTargetError сообщает, что строка, к которой относится событие,
// еще не существует. Обработчик при этом ничего не меняет.
type MissingTargetError struct {
	Collection string
	ID         string
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("missing target %s/%s", e.Collection, e.ID)
}

// Missing возвращает MissingTargetError
func Missing(collection, id string) error {
	return &MissingTargetError{Collection: collection, ID: id}
}

// AsMissing извлекает MissingTargetError из цепочки ошибок
func AsMissing(err error) (*MissingTargetError, bool) {
	var target *MissingTargetError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
