package mongodb

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tasksCollection = "tasks"

// TasksStore persists tasks in a mongo collection
type TasksStore struct {
	coll  *mongo.Collection
	users *mongo.Collection
}

var _ tasks.Store = (*TasksStore)(nil)

func NewTasksStore(db *mongo.Database) *TasksStore {
	return &TasksStore{
		coll:  db.Collection(tasksCollection),
		users: db.Collection(usersCollection),
	}
}

func (s *TasksStore) Create(ctx context.Context, task *tasks.Task) (*tasks.Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	if _, err := s.coll.InsertOne(ctx, toTaskDocument(task)); err != nil {
		return nil, mapError(err, "tasks.create")
	}
	return task, nil
}

func (s *TasksStore) GetByID(ctx context.Context, id uuid.UUID) (*tasks.Task, error) {
	var doc taskDocument
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		return nil, mapError(err, "tasks.get_by_id")
	}
	task, err := doc.toTask()
	if err != nil {
		return nil, err
	}
	if err := s.loadUsers(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// loadUsers sets the creator and assignee summaries of the given tasks
// with a single users query
func (s *TasksStore) loadUsers(ctx context.Context, found ...*tasks.Task) error {
	ids := referencedUserIDs(found)
	if len(ids) == 0 {
		return nil
	}

	opts := options.Find().SetProjection(bson.D{
		{Key: "name", Value: 1},
		{Key: "email", Value: 1},
	})
	cursor, err := s.users.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, opts)
	if err != nil {
		return mapError(err, "tasks.load_users")
	}

	var docs []userSummaryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return mapError(err, "tasks.load_users")
	}

	attachUsers(found, docs)
	return nil
}

func (s *TasksStore) List(ctx context.Context, filter tasks.ListFilter) ([]*tasks.Task, int, error) {
	filter = filter.Normalize()
	query := taskFilter(filter)

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, mapError(err, "tasks.count")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit))

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, mapError(err, "tasks.list")
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, mapError(err, "tasks.list")
	}

	out := make([]*tasks.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := doc.toTask()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, task)
	}
	if err := s.loadUsers(ctx, out...); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (s *TasksStore) Update(ctx context.Context, task *tasks.Task, fields ...tasks.Field) (*tasks.Task, error) {
	update, err := taskUpdate(task, fields...)
	if err != nil {
		return nil, err
	}

	res, err := s.coll.UpdateByID(ctx, task.ID.String(), update)
	if err != nil {
		return nil, mapError(err, "tasks.update")
	}
	if err := requireMatched(res.MatchedCount); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, task.ID)
}

func (s *TasksStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return mapError(err, "tasks.delete")
	}
	return requireMatched(res.DeletedCount)
}

// taskFilter translates a listing filter into a mongo query
func taskFilter(f tasks.ListFilter) bson.D {
	query := bson.D{}

	if f.Status != "" {
		query = append(query, bson.E{Key: "status", Value: string(f.Status)})
	}
	if f.Priority != "" {
		query = append(query, bson.E{Key: "priority", Value: string(f.Priority)})
	}
	if f.Category != "" {
		query = append(query, bson.E{Key: "category", Value: string(f.Category)})
	}
	if f.AssignedTo != nil {
		query = append(query, bson.E{Key: "assignedTo", Value: f.AssignedTo.String()})
	}
	if start, end, ok := f.DueRange(); ok {
		query = append(query, bson.E{Key: "dueDate", Value: bson.D{
			{Key: "$gte", Value: start},
			{Key: "$lt", Value: end},
		}})
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "description", Value: pattern}},
		}})
	}

	return query
}
