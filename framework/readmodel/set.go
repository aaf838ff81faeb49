package readmodel

import (
	"context"
	"encoding/json"
	"fmt"
)

// Row ограничение для указателя на строку read-модели
type Row[E any] interface {
	*E
	Entity
}

// Set типизированный доступ к одной коллекции в рамках сессии
type Set[E any, P Row[E]] struct {
	session    *Session
	collection string
}

// Of возвращает коллекцию name сессии s:
//
//	stats := readmodel.Of[model.CourseStats](s, model.CourseStatsCollection)
func Of[E any, P Row[E]](s *Session, collection string) Set[E, P] {
	return Set[E, P]{session: s, collection: collection}
}

// Name возвращает имя коллекции
func (c Set[E, P]) Name() string {
	return c.collection
}

// Add добавляет строку; при записи выполняется upsert
func (c Set[E, P]) Add(row P) {
	c.session.track(c.collection, row, nil, 0, stateAdded)
}

// AddIfAbsent добавляет строку, только если строки с таким id нет в хранилище.
// Проверка выполняется хранилищем при записи.
func (c Set[E, P]) AddIfAbsent(row P) {
	c.session.track(c.collection, row, nil, 0, stateAddedIfAbsent)
}

// Remove удаляет строку
func (c Set[E, P]) Remove(row P) {
	c.session.remove(c.collection, row)
}

// FindByID возвращает строку по id или nil, если ее нет.
// Изменения возвращенной строки записываются SaveChanges.
func (c Set[E, P]) FindByID(ctx context.Context, id string) (P, error) {
	if e, ok := c.session.lookup(c.collection, id); ok {
		if e.state == stateRemoved {
			return nil, nil
		}
		return e.row.(P), nil
	}

	doc, err := c.session.store.FindByID(ctx, c.collection, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s/%s: %w", c.collection, id, err)
	}
	return c.attach(doc)
}

// FindByIndex возвращает строки, у которых индекс field равен value
func (c Set[E, P]) FindByIndex(ctx context.Context, field, value string) ([]P, error) {
	docs, err := c.session.store.FindByIndex(ctx, c.collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", c.collection, field, err)
	}
	return c.attachAll(docs)
}

// FindAll возвращает все строки коллекции
func (c Set[E, P]) FindAll(ctx context.Context) ([]P, error) {
	docs, err := c.session.store.FindAll(ctx, c.collection)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", c.collection, err)
	}
	return c.attachAll(docs)
}

func (c Set[E, P]) attachAll(docs []Document) ([]P, error) {
	rows := make([]P, 0, len(docs))
	for _, doc := range docs {
		if e, ok := c.session.lookup(c.collection, doc.ID); ok {
			if e.state != stateRemoved {
				rows = append(rows, e.row.(P))
			}
			continue
		}
		row, err := c.attach(doc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c Set[E, P]) attach(doc Document) (P, error) {
	row := P(new(E))
	if err := json.Unmarshal(doc.Data, row); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", c.collection, err)
	}
	// снимок берется после декодирования: форматирование хранилища не считается изменением
	original, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", c.collection, row.ID(), err)
	}
	c.session.track(c.collection, row, original, doc.Version, stateLoaded)
	return row, nil
}
