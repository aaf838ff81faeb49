// Package repository предоставляет backends хранилища read-моделей.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// InMemoryConfig конфигурация для InMemory хранилища
type InMemoryConfig struct {
	// MaxRows максимальное количество строк в одной коллекции (0 = без ограничений)
	// При достижении лимита Commit вернет ошибку
	MaxRows int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		MaxRows: 0, // Без ограничений по умолчанию
	}
}

type memRow struct {
	data    []byte
	index   map[string]string
	version int64
}

type memCollection struct {
	rows    map[string]memRow
	indexes map[string]map[string]map[string]struct{} // field -> value -> ids
}

func newMemCollection() *memCollection {
	return &memCollection{
		rows:    make(map[string]memRow),
		indexes: make(map[string]map[string]map[string]struct{}),
	}
}

func (c *memCollection) unindex(id string, index map[string]string) {
	for field, value := range index {
		if ids, ok := c.indexes[field][value]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(c.indexes[field], value)
			}
		}
	}
}

func (c *memCollection) put(id string, row memRow) {
	row.version = 1
	if old, exists := c.rows[id]; exists {
		c.unindex(id, old.index)
		row.version = old.version + 1
	}
	c.rows[id] = row
	for field, value := range row.index {
		if c.indexes[field] == nil {
			c.indexes[field] = make(map[string]map[string]struct{})
		}
		if c.indexes[field][value] == nil {
			c.indexes[field][value] = make(map[string]struct{})
		}
		c.indexes[field][value][id] = struct{}{}
	}
}

func (c *memCollection) document(id string) readmodel.Document {
	row := c.rows[id]
	return readmodel.Document{ID: id, Data: cloneBytes(row.data), Version: row.version}
}

func (c *memCollection) delete(id string) bool {
	old, exists := c.rows[id]
	if !exists {
		return false
	}
	c.unindex(id, old.index)
	delete(c.rows, id)
	return true
}

// InMemoryStore in-memory хранилище read-моделей со вторичными индексами.
// Commit применяется под одной блокировкой и поэтому атомарен.
type InMemoryStore struct {
	config      InMemoryConfig
	collections map[string]*memCollection
	mu          sync.RWMutex
	running     bool
}

// NewInMemoryStore создает новое in-memory хранилище
func NewInMemoryStore(config InMemoryConfig) *InMemoryStore {
	return &InMemoryStore{
		config:      config,
		collections: make(map[string]*memCollection),
		running:     true,
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (s *InMemoryStore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (s *InMemoryStore) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (s *InMemoryStore) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Name возвращает имя компонента (реализация core.Component)
func (s *InMemoryStore) Name() string {
	return "inmemory-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (s *InMemoryStore) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// HealthCheck проверяет здоровье хранилища
func (s *InMemoryStore) HealthCheck(ctx context.Context) error {
	if !s.IsRunning() {
		return core.NewError(core.ErrInitializationFailed, "inmemory store is stopped")
	}
	return nil
}

// FindByID находит строку по ID
func (s *InMemoryStore) FindByID(ctx context.Context, collection, id string) (readmodel.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[collection]; ok {
		if _, ok := c.rows[id]; ok {
			return c.document(id), nil
		}
	}
	return readmodel.Document{}, readmodel.NotFound(collection, id)
}

// FindByIndex находит строки по значению вторичного индекса
func (s *InMemoryStore) FindByIndex(ctx context.Context, collection, field, value string) ([]readmodel.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []readmodel.Document{}, nil
	}
	ids := make([]string, 0, len(c.indexes[field][value]))
	for id := range c.indexes[field][value] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]readmodel.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, c.document(id))
	}
	return docs, nil
}

// FindAll возвращает все строки коллекции, отсортированные по ID
func (s *InMemoryStore) FindAll(ctx context.Context, collection string) ([]readmodel.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []readmodel.Document{}, nil
	}
	ids := make([]string, 0, len(c.rows))
	for id := range c.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]readmodel.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, c.document(id))
	}
	return docs, nil
}

// Commit применяет операции атомарно
func (s *InMemoryStore) Commit(ctx context.Context, ops []readmodel.Op) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	for _, op := range ops {
		if op.ID == "" {
			return 0, fmt.Errorf("row ID cannot be empty in %s", op.Collection)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersions(ops); err != nil {
		return 0, err
	}

	// Проверяем лимит до применения, чтобы не записать часть операций
	if s.config.MaxRows > 0 {
		added := make(map[string]int)
		for _, op := range ops {
			if op.Kind == readmodel.OpDelete {
				continue
			}
			c := s.collections[op.Collection]
			if c != nil {
				if _, exists := c.rows[op.ID]; exists {
					continue
				}
			}
			added[op.Collection]++
			current := 0
			if c != nil {
				current = len(c.rows)
			}
			if current+added[op.Collection] > s.config.MaxRows {
				return 0, core.Errorf(core.ErrCommitFailed, "collection %s limit reached: max %d rows", op.Collection, s.config.MaxRows)
			}
		}
	}

	committed := 0
	for _, op := range ops {
		c, ok := s.collections[op.Collection]
		if !ok {
			c = newMemCollection()
			s.collections[op.Collection] = c
		}

		switch op.Kind {
		case readmodel.OpUpsert:
			c.put(op.ID, memRow{data: cloneBytes(op.Data), index: op.Index})
			committed++
		case readmodel.OpInsertIfAbsent:
			if _, exists := c.rows[op.ID]; exists {
				continue
			}
			c.put(op.ID, memRow{data: cloneBytes(op.Data), index: op.Index})
			committed++
		case readmodel.OpDelete:
			if c.delete(op.ID) {
				committed++
			}
		}
	}
	return committed, nil
}

// checkVersions сверяет версии до применения, чтобы не записать часть операций.
// Удаление уже удаленной строки конфликтом не считается.
func (s *InMemoryStore) checkVersions(ops []readmodel.Op) error {
	for _, op := range ops {
		if op.Version == 0 || op.Kind == readmodel.OpInsertIfAbsent {
			continue
		}
		var (
			row    memRow
			exists bool
		)
		if c := s.collections[op.Collection]; c != nil {
			row, exists = c.rows[op.ID]
		}
		switch {
		case !exists && op.Kind == readmodel.OpDelete:
		case !exists, row.version != op.Version:
			return readmodel.Conflict(op.Collection, op.ID)
		}
	}
	return nil
}

// Count возвращает количество строк в коллекции
func (s *InMemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collection]; ok {
		return len(c.rows)
	}
	return 0
}

// Clear очищает хранилище (для тестирования)
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*memCollection)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
