package readmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type entryState int

const (
	stateLoaded entryState = iota
	stateAdded
	stateAddedIfAbsent
	stateRemoved
)

type entryKey struct {
	collection string
	id         string
}

type entry struct {
	key      entryKey
	row      Entity
	original []byte // снимок строки на момент загрузки; nil - строки нет в хранилище
	version  int64  // версия строки в хранилище; 0 - строка не читалась
	state    entryState
}

// Session единица работы над read-моделями: identity map и отслеживание
// изменений. Все изменения записываются одним вызовом SaveChanges.
// Session не потокобезопасна и создается на один вызов обработчика.
type Session struct {
	store   Store
	entries map[entryKey]*entry
	order   []entryKey
}

// NewSession создает новую сессию поверх хранилища
func NewSession(store Store) *Session {
	return &Session{
		store:   store,
		entries: make(map[entryKey]*entry),
	}
}

func (s *Session) lookup(collection, id string) (*entry, bool) {
	e, ok := s.entries[entryKey{collection: collection, id: id}]
	return e, ok
}

func (s *Session) track(collection string, row Entity, original []byte, version int64, state entryState) {
	key := entryKey{collection: collection, id: row.ID()}
	if e, ok := s.entries[key]; ok {
		e.row = row
		e.state = state
		return
	}
	s.entries[key] = &entry{key: key, row: row, original: original, version: version, state: state}
	s.order = append(s.order, key)
}

func (s *Session) remove(collection string, row Entity) {
	key := entryKey{collection: collection, id: row.ID()}
	if e, ok := s.entries[key]; ok {
		e.state = stateRemoved
		return
	}
	// строка не загружалась: удаляем вслепую
	s.entries[key] = &entry{key: key, row: row, original: []byte("null"), state: stateRemoved}
	s.order = append(s.order, key)
}

// Changes возвращает операции, которые будут записаны SaveChanges
func (s *Session) Changes() ([]Op, error) {
	var ops []Op
	for _, key := range s.order {
		e := s.entries[key]
		switch e.state {
		case stateRemoved:
			if e.original == nil {
				continue
			}
			ops = append(ops, Op{Kind: OpDelete, Collection: key.collection, ID: key.id, Version: e.version})
		case stateAdded, stateAddedIfAbsent, stateLoaded:
			data, err := json.Marshal(e.row)
			if err != nil {
				return nil, fmt.Errorf("marshal %s/%s: %w", key.collection, key.id, err)
			}
			if e.state == stateLoaded && bytes.Equal(data, e.original) {
				continue
			}
			kind := OpUpsert
			if e.state == stateAddedIfAbsent {
				kind = OpInsertIfAbsent
			}
			op := Op{Kind: kind, Collection: key.collection, ID: key.id, Data: data}
			if e.state == stateLoaded {
				op.Version = e.version
			}
			if indexed, ok := e.row.(Indexed); ok {
				op.Index = indexed.IndexKeys()
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// HasChanges проверяет, есть ли незаписанные изменения
func (s *Session) HasChanges() bool {
	ops, err := s.Changes()
	return err != nil || len(ops) > 0
}

// SaveChanges записывает все накопленные изменения одним Commit и
// возвращает количество записанных строк. Если контекст уже отменен,
// ничего не записывается.
func (s *Session) SaveChanges(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ops, err := s.Changes()
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, nil
	}

	n, err := s.store.Commit(ctx, ops)
	if err != nil {
		return 0, fmt.Errorf("commit %d operations: %w", len(ops), err)
	}

	s.settle()
	return n, nil
}

// settle приводит identity map к состоянию после успешного commit.
// Строки с неизвестной после записи версией забываются и перечитываются
// при следующем обращении.
func (s *Session) settle() {
	order := s.order[:0]
	for _, key := range s.order {
		e := s.entries[key]
		if e.state != stateLoaded {
			delete(s.entries, key)
			continue
		}
		data, err := json.Marshal(e.row)
		if err != nil {
			delete(s.entries, key)
			continue
		}
		if !bytes.Equal(data, e.original) {
			e.original = data
			e.version++
		}
		order = append(order, key)
	}
	s.order = order
}
