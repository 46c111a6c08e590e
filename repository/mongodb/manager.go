package mongodb

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/repository"
	"github.com/goliatone/go-tasks/tasks"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const disconnectTimeout = 5 * time.Second

type mngr struct {
	client *mongo.Client
	db     *mongo.Database
	users  *UsersStore
	tasks  *TasksStore
}

// Connect dials the server, pings it, and returns a manager bound to
// the named database
func Connect(ctx context.Context, uri, database string) (repository.Manager, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to connect to mongodb")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to ping mongodb")
	}

	return NewRepositoryManager(client, database), nil
}

func NewRepositoryManager(client *mongo.Client, database string) repository.Manager {
	db := client.Database(database)
	return &mngr{
		client: client,
		db:     db,
		users:  NewUsersStore(db),
		tasks:  NewTasksStore(db),
	}
}

func (m mngr) Validate() error {
	return validation.Errors{
		"client": validation.Validate(m.client, validation.NotNil),
		"users":  validation.Validate(m.users, validation.NotNil),
		"tasks":  validation.Validate(m.tasks, validation.NotNil),
	}.Filter()
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(errors.FromOzzoValidation(err, "invalid repository manager"))
	}
}

// Migrate creates the collection indexes
func (m mngr) Migrate(ctx context.Context) error {
	_, err := m.users.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create users index")
	}

	_, err = m.tasks.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create tasks indexes")
	}
	return nil
}

func (m mngr) Users() auth.Users {
	return m.users
}

func (m mngr) Tasks() tasks.Store {
	return m.tasks
}

func (m mngr) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
