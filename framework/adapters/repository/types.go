// Package repository предоставляет backends хранилища read-моделей.
package repository

import (
	"context"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Store backend read-моделей с управлением жизненным циклом
type Store interface {
	readmodel.Store
	core.Component
	core.Lifecycle
	core.HealthCheckable
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MongoStore)(nil)
)

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.Wrap(err, core.ErrCommitFailed, "context done before commit")
	}
	return nil
}
