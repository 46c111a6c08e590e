package repository

import (
	"context"
	"database/sql"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/uptrace/bun"
)

// Manager groups the stores of one storage backend
type Manager interface {
	Validate() error
	MustValidate()
	Migrate(ctx context.Context) error
	Users() auth.Users
	Tasks() tasks.Store
	Close() error
}

type mngr struct {
	client *persistence.Client
	db     bun.IDB
	sqldb  *sql.DB
	users  auth.Users
	tasks  tasks.Store
}

func NewRepositoryManager(client *persistence.Client, sqldb *sql.DB) Manager {
	db := client.DB()
	return &mngr{
		client: client,
		db:     db,
		sqldb:  sqldb,
		users:  NewUsersRepository(db),
		tasks:  NewTasksRepository(db),
	}
}

func (m mngr) Validate() error {
	return validation.Errors{
		"client": validation.Validate(m.client, validation.NotNil),
		"sqldb":  validation.Validate(m.sqldb, validation.NotNil),
		"users":  validation.Validate(m.users, validation.NotNil),
		"tasks":  validation.Validate(m.tasks, validation.NotNil),
	}.Filter()
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(errors.FromOzzoValidation(err, "invalid repository manager"))
	}
}

// Migrate runs the embedded migrations that have not been applied yet
func (m mngr) Migrate(ctx context.Context) error {
	if err := m.client.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to migrate database")
	}
	return nil
}

func (m mngr) Users() auth.Users {
	return m.users
}

func (m mngr) Tasks() tasks.Store {
	return m.tasks
}

// Close releases the connection pool
func (m mngr) Close() error {
	return m.sqldb.Close()
}
