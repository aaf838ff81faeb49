package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/akriventsev/coursecatalog/config"
	"github.com/akriventsev/coursecatalog/framework/adapters/repository"
	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/migrations"
)

func migrate(ctx context.Context, cfg *config.Config, args []string) error {
	if cfg.Store.Type != repository.StorePostgres {
		return core.Errorf(core.ErrInvalidConfig, "migrations require store.type=postgres, got %q", cfg.Store.Type)
	}
	if cfg.Postgres.DSN == "" {
		return core.NewError(core.ErrInvalidConfig, "postgres.dsn is required")
	}

	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "up":
		if err := migrations.RunMigrations(ctx, db); err != nil {
			return err
		}
		fmt.Println("✓ Migrations applied")
	case "down":
		if err := migrations.RollbackMigration(ctx, db); err != nil {
			return err
		}
		fmt.Println("✓ Last migration rolled back")
	case "status":
		statuses, err := migrations.GetMigrationStatus(ctx, db)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			applied := "-"
			if s.AppliedAt != nil {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("  [%s] %d - %s (%s)\n", s.Status, s.Version, s.Name, applied)
		}
	default:
		return core.Errorf(core.ErrInvalidConfig, "unknown migrate action %q", action)
	}
	return nil
}
