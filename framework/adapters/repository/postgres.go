// Package repository предоставляет backends хранилища read-моделей.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/migrations"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// PostgresConfig конфигурация для PostgreSQL хранилища
type PostgresConfig struct {
	DSN             string
	TableName       string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	// Migrate применяет встроенные миграции при старте
	Migrate bool
}

// Validate проверяет корректность конфигурации
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.TableName == "" {
		return fmt.Errorf("TableName cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("MaxConns must be greater than 0")
	}
	return nil
}

// DefaultPostgresConfig возвращает конфигурацию PostgreSQL по умолчанию
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		TableName:       "read_models",
		MaxConns:        25,
		MinConns:        2,
		ConnMaxLifetime: 5 * time.Minute,
		Migrate:         true,
	}
}

// PostgresStore хранилище read-моделей в одной JSONB-таблице.
// Каждый Commit выполняется в одной транзакции.
type PostgresStore struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

// NewPostgresStore создает хранилище и проверяет подключение
func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if err := config.Validate(); err != nil {
		return nil, core.Wrap(err, core.ErrInvalidConfig, "invalid postgres config")
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, core.Wrap(err, core.ErrInvalidConfig, "parse postgres DSN")
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, core.Wrap(err, core.ErrInitializationFailed, "failed to connect to PostgreSQL")
	}

	return &PostgresStore{config: config, pool: pool}, nil
}

// Start применяет миграции, если они включены (реализация core.Lifecycle)
func (p *PostgresStore) Start(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return core.Wrap(err, core.ErrInitializationFailed, "failed to ping PostgreSQL")
	}
	if p.config.Migrate {
		return p.Migrate(ctx)
	}
	return nil
}

// Migrate применяет встроенные миграции схемы
func (p *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return migrations.RunMigrations(ctx, db)
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (p *PostgresStore) Stop(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (p *PostgresStore) IsRunning() bool {
	return p.pool != nil
}

// Name возвращает имя компонента (реализация core.Component)
func (p *PostgresStore) Name() string {
	return "postgres-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (p *PostgresStore) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// HealthCheck проверяет подключение к базе
func (p *PostgresStore) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// FindByID находит строку по ID
func (p *PostgresStore) FindByID(ctx context.Context, collection, id string) (readmodel.Document, error) {
	query := fmt.Sprintf("SELECT data, version FROM %s WHERE collection = $1 AND id = $2", p.table())

	doc := readmodel.Document{ID: id}
	err := p.pool.QueryRow(ctx, query, collection, id).Scan(&doc.Data, &doc.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return readmodel.Document{}, readmodel.NotFound(collection, id)
		}
		return readmodel.Document{}, fmt.Errorf("failed to find %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// FindByIndex находит строки по значению вторичного индекса
func (p *PostgresStore) FindByIndex(ctx context.Context, collection, field, value string) ([]readmodel.Document, error) {
	query := fmt.Sprintf(
		"SELECT id, data, version FROM %s WHERE collection = $1 AND index_keys->>$2 = $3 ORDER BY id",
		p.table(),
	)
	return p.query(ctx, query, collection, field, value)
}

// FindAll возвращает все строки коллекции
func (p *PostgresStore) FindAll(ctx context.Context, collection string) ([]readmodel.Document, error) {
	query := fmt.Sprintf("SELECT id, data, version FROM %s WHERE collection = $1 ORDER BY id", p.table())
	return p.query(ctx, query, collection)
}

func (p *PostgresStore) query(ctx context.Context, query string, args ...any) ([]readmodel.Document, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query read models: %w", err)
	}
	defer rows.Close()

	docs := make([]readmodel.Document, 0)
	for rows.Next() {
		var doc readmodel.Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.Version); err != nil {
			return nil, fmt.Errorf("failed to scan read model: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Commit применяет операции в одной транзакции. Операции с версией
// выполняются условно; несовпадение откатывает транзакцию с ошибкой Conflict.
func (p *PostgresStore) Commit(ctx context.Context, ops []readmodel.Op) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	committed := 0
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, op := range ops {
			n, err := p.apply(ctx, tx, op)
			if err != nil {
				return err
			}
			committed += n
		}
		return nil
	})
	if err != nil {
		if readmodel.IsConflict(err) {
			return 0, err
		}
		return 0, core.Wrap(err, core.ErrCommitFailed, "postgres commit")
	}
	return committed, nil
}

func (p *PostgresStore) apply(ctx context.Context, tx pgx.Tx, op readmodel.Op) (int, error) {
	table := p.table()

	switch op.Kind {
	case readmodel.OpUpsert, readmodel.OpInsertIfAbsent:
		index := op.Index
		if index == nil {
			index = map[string]string{}
		}
		indexJSON, err := json.Marshal(index)
		if err != nil {
			return 0, err
		}

		var sql string
		args := []any{op.Collection, op.ID, op.Data, indexJSON}
		switch {
		case op.Kind == readmodel.OpInsertIfAbsent:
			sql = fmt.Sprintf(`
				INSERT INTO %s (collection, id, data, index_keys, version, updated_at)
				VALUES ($1, $2, $3, $4, 1, NOW())
				ON CONFLICT (collection, id) DO NOTHING
			`, table)
		case op.Version > 0:
			sql = fmt.Sprintf(`
				UPDATE %s SET data = $3, index_keys = $4, version = version + 1, updated_at = NOW()
				WHERE collection = $1 AND id = $2 AND version = $5
			`, table)
			args = append(args, op.Version)
		default:
			sql = fmt.Sprintf(`
				INSERT INTO %s AS t (collection, id, data, index_keys, version, updated_at)
				VALUES ($1, $2, $3, $4, 1, NOW())
				ON CONFLICT (collection, id)
				DO UPDATE SET data = EXCLUDED.data, index_keys = EXCLUDED.index_keys,
					version = t.version + 1, updated_at = NOW()
			`, table)
		}

		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
		}
		if op.Kind == readmodel.OpUpsert && op.Version > 0 && tag.RowsAffected() == 0 {
			return 0, readmodel.Conflict(op.Collection, op.ID)
		}
		return int(tag.RowsAffected()), nil

	case readmodel.OpDelete:
		if op.Version == 0 {
			tag, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE collection = $1 AND id = $2", table), op.Collection, op.ID)
			if err != nil {
				return 0, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
			}
			return int(tag.RowsAffected()), nil
		}

		tag, err := tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE collection = $1 AND id = $2 AND version = $3", table),
			op.Collection, op.ID, op.Version)
		if err != nil {
			return 0, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
		}
		if tag.RowsAffected() > 0 {
			return int(tag.RowsAffected()), nil
		}
		// строка уже удалена - не конфликт; изменена - конфликт
		var exists bool
		err = tx.QueryRow(ctx,
			fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE collection = $1 AND id = $2)", table),
			op.Collection, op.ID).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
		}
		if exists {
			return 0, readmodel.Conflict(op.Collection, op.ID)
		}
		return 0, nil

	default:
		return 0, fmt.Errorf("unsupported operation %s", op.Kind)
	}
}

func (p *PostgresStore) table() string {
	return pgx.Identifier{p.config.TableName}.Sanitize()
}
