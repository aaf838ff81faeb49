// Package catalog связывает проекторы каталога курсов с диспетчером.
package catalog

import (
	"fmt"
	"time"

	"github.com/akriventsev/coursecatalog/catalog/contracts"
	"github.com/akriventsev/coursecatalog/catalog/projectors"
	"github.com/akriventsev/coursecatalog/catalog/storage"
	"github.com/akriventsev/coursecatalog/framework/events"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/projection"
)

// Options параметры регистрации
type Options struct {
	ServiceName   string
	PublicBaseURL string
	Logger        *logger.Logger
	Now           func() time.Time
}

// NewCodec возвращает кодек со всеми событиями каталога
func NewCodec() *events.Codec {
	codec := events.NewCodec()
	contracts.RegisterAll(codec)
	return codec
}

// Register регистрирует все проекторы и маршрутизатор событий хранилища
func Register(d *projection.Dispatcher, opts Options) error {
	for _, p := range projectors.All(opts.Now) {
		if err := d.Register(p); err != nil {
			return fmt.Errorf("register %s: %w", p.Name(), err)
		}
	}

	router := storage.NewRouter(storage.Config{
		ServiceName:   opts.ServiceName,
		PublicBaseURL: opts.PublicBaseURL,
	}, d, opts.Logger)
	for _, c := range router.Consumers() {
		if err := d.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.Name(), err)
		}
	}
	return nil
}
