// Package repository предоставляет backends хранилища read-моделей.
package repository

import (
	"context"
	"fmt"

	"github.com/akriventsev/coursecatalog/framework/core"
)

// Типы хранилищ
const (
	StoreInMemory = "inmemory"
	StorePostgres = "postgres"
	StoreMongoDB  = "mongodb"
)

// FactoryConfig конфигурация всех поддерживаемых хранилищ
type FactoryConfig struct {
	InMemory InMemoryConfig
	Postgres PostgresConfig
	MongoDB  MongoConfig
}

// NewStore создает хранилище указанного типа
func NewStore(ctx context.Context, storeType string, config FactoryConfig) (Store, error) {
	switch storeType {
	case StoreInMemory, "":
		return NewInMemoryStore(config.InMemory), nil
	case StorePostgres:
		store, err := NewPostgresStore(ctx, config.Postgres)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreMongoDB:
		store, err := NewMongoStore(ctx, config.MongoDB)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, core.NewError(core.ErrInvalidConfig, fmt.Sprintf("unknown store type: %s", storeType))
	}
}
