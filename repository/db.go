package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open connects to the sqlite database described by cfg and registers
// the embedded migrations. The schema is created by Manager.Migrate.
func Open(ctx context.Context, cfg persistence.Config) (Manager, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetServer())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
	}
	// sqlite allows one writer, and every ":memory:" connection is a new database
	sqldb.SetMaxOpenConns(1)

	persistence.RegisterModel(
		(*auth.User)(nil),
		(*tasks.Task)(nil),
		(*tasks.UserSummary)(nil),
	)

	client, err := persistence.New(cfg, sqldb, sqlitedialect.New())
	if err != nil {
		_ = sqldb.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to connect to sqlite database").
			WithMetadata(map[string]any{"driver": cfg.GetDriver()})
	}

	logger := auth.NewLogger("persistence")
	client.SetLogger(func(format string, a ...any) {
		logger.Debug(strings.TrimSpace(fmt.Sprintf(format, a...)))
	})
	client.RegisterSQLMigrations(GetMigrationsFS())

	select {
	case <-ctx.Done():
		_ = sqldb.Close()
		return nil, errors.Wrap(ctx.Err(), errors.CategoryOperation, "context cancelled while opening database")
	default:
	}

	return NewRepositoryManager(client, sqldb), nil
}
