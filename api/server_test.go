package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-tasks/api"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/config"
	"github.com/goliatone/go-tasks/repository"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	app    *fiber.App
	repo   repository.Manager
	hasher auth.BcryptHasher
	events *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (l *eventLog) Record(_ context.Context, event auth.ActivityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) ofType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []auth.ActivityEvent
	for _, e := range l.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestServer(t *testing.T, env map[string]string) *testServer {
	t.Helper()

	vars := map[string]string{"APP_ENV": "test", "JWT_SECRET": "test-secret", "DATABASE_URL": ":memory:"}
	for k, v := range env {
		vars[k] = v
	}
	cfg, err := config.FromEnv(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	require.NoError(t, err)

	repo, err := repository.Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })

	tokens, err := auth.NewTokenService(cfg)
	require.NoError(t, err)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	auther := auth.NewAuthenticator(repo.Users(), tokens).WithPasswordHasher(hasher)

	events := &eventLog{}
	machine := tasks.NewStatusMachine(
		tasks.WithAfterTransitionHook(tasks.StatusActivityHook(events, nil)),
	)

	srv := api.New(api.Options{
		Config:           cfg,
		Auther:           auther,
		Tasks:            tasks.NewService(repo.Tasks()).WithStatusMachine(machine),
		DisableAccessLog: true,
	})

	return &testServer{app: srv.WrappedRouter(), repo: repo, hasher: hasher, events: events}
}

type response struct {
	Status int
	Body   map[string]any
}

func (r response) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func (r response) task() map[string]any {
	task, _ := r.data()["task"].(map[string]any)
	return task
}

func (r response) errorField(name string) any {
	e, _ := r.Body["error"].(map[string]any)
	return e[name]
}

func (s *testServer) call(t *testing.T, method, path, token string, body any) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	out := response{Status: res.StatusCode, Body: map[string]any{}}
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

// register returns the token and id of a new user
func (s *testServer) register(t *testing.T, name, email string) (string, string) {
	t.Helper()
	res := s.call(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "Secret123",
	})
	require.Equal(t, fiber.StatusCreated, res.Status, res.Body)
	user := res.data()["user"].(map[string]any)
	return res.data()["token"].(string), user["id"].(string)
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	hash, err := s.hasher.HashPassword("Admin123")
	require.NoError(t, err)
	_, err = s.repo.Users().Create(context.Background(), &auth.User{
		Name:         "Root",
		Email:        "root@example.com",
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		IsActive:     true,
	})
	require.NoError(t, err)

	res := s.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"email": "root@example.com", "password": "Admin123",
	})
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)
	return res.data()["token"].(string)
}

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
}

func (s *testServer) createTask(t *testing.T, token, assignee string) string {
	t.Helper()
	res := s.call(t, fiber.MethodPost, "/tasks", token, map[string]any{
		"title":       "Ship report",
		"description": "Quarterly report for finance",
		"priority":    "high",
		"dueDate":     tomorrow(),
		"assignedTo":  assignee,
		"tags":        []string{"finance", "q3"},
	})
	require.Equal(t, fiber.StatusCreated, res.Status, res.Body)
	return res.task()["id"].(string)
}

func TestAliceScenario(t *testing.T) {
	s := newTestServer(t, nil)

	reg := s.call(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Alice",
		"email":    "Alice@Example.com",
		"password": "Secret123",
	})
	require.Equal(t, fiber.StatusCreated, reg.Status, reg.Body)
	assert.Equal(t, true, reg.Body["success"])
	user := reg.data()["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")
	aliceID := user["id"].(string)

	login := s.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"email": "alice@example.com", "password": "Secret123",
	})
	require.Equal(t, fiber.StatusOK, login.Status, login.Body)
	token := login.data()["token"].(string)
	assert.NotEmpty(t, login.data()["expiresAt"])

	profile := s.call(t, fiber.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, fiber.StatusOK, profile.Status)
	assert.Equal(t, aliceID, profile.data()["user"].(map[string]any)["id"])
	assert.NotEmpty(t, profile.data()["user"].(map[string]any)["lastLogin"])

	created := s.call(t, fiber.MethodPost, "/tasks", token, map[string]any{
		"title":       "Ship report",
		"description": "Quarterly report for finance",
		"priority":    "high",
		"dueDate":     tomorrow(),
		"assignedTo":  aliceID,
	})
	require.Equal(t, fiber.StatusCreated, created.Status, created.Body)
	assert.Equal(t, "pending", created.task()["status"])
	assert.Equal(t, aliceID, created.task()["createdBy"])
	taskID := created.task()["id"].(string)

	list := s.call(t, fiber.MethodGet, "/tasks", token, nil)
	require.Equal(t, fiber.StatusOK, list.Status)
	found := list.data()["tasks"].([]any)
	require.Len(t, found, 1)
	assert.Equal(t, "pending", found[0].(map[string]any)["status"])
	assert.Equal(t, map[string]any{"total": 1.0, "page": 1.0, "limit": 10.0, "pages": 1.0}, list.data()["pagination"])

	done := s.call(t, fiber.MethodPatch, "/tasks/"+taskID+"/status", token, map[string]any{"status": "completed"})
	require.Equal(t, fiber.StatusOK, done.Status, done.Body)
	assert.Equal(t, true, done.task()["isCompleted"])
	assert.NotEmpty(t, done.task()["completedAt"])

	reopened := s.call(t, fiber.MethodPatch, "/tasks/"+taskID+"/status", token, map[string]any{"status": "in-progress"})
	require.Equal(t, fiber.StatusOK, reopened.Status)
	assert.Equal(t, false, reopened.task()["isCompleted"])
	assert.NotContains(t, reopened.task(), "completedAt")
}

func TestAuthFailures(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "Alice", "alice@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		res := s.call(t, fiber.MethodPost, "/auth/register", "", map[string]any{
			"name": "Other", "email": "ALICE@example.com", "password": "Secret123",
		})
		assert.Equal(t, fiber.StatusConflict, res.Status)
		assert.Equal(t, auth.TextCodeDuplicateEmail, res.errorField("text_code"))
		assert.Equal(t, false, res.Body["success"])
	})

	t.Run("credential failures are indistinguishable", func(t *testing.T) {
		wrong := s.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{
			"email": "alice@example.com", "password": "Wrong123",
		})
		missing := s.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{
			"email": "nobody@example.com", "password": "Secret123",
		})
		assert.Equal(t, fiber.StatusUnauthorized, wrong.Status)
		assert.Equal(t, wrong.Status, missing.Status)
		assert.Equal(t, wrong.errorField("message"), missing.errorField("message"))
		assert.Equal(t, wrong.errorField("text_code"), missing.errorField("text_code"))
	})

	t.Run("validation", func(t *testing.T) {
		res := s.call(t, fiber.MethodPost, "/auth/register", "", map[string]any{
			"name": "A", "email": "not-an-email", "password": "weak",
		})
		assert.Equal(t, fiber.StatusBadRequest, res.Status)
		assert.Equal(t, auth.TextCodeValidationFailed, res.errorField("text_code"))
		assert.Len(t, res.errorField("validation_errors"), 3)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/auth/login", bytes.NewBufferString("{"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		res, err := s.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})

	t.Run("guard", func(t *testing.T) {
		res := s.call(t, fiber.MethodGet, "/tasks", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.Status)
		assert.Equal(t, auth.TextCodeMissingToken, res.errorField("text_code"))

		res = s.call(t, fiber.MethodGet, "/auth/profile", "not.a.token", nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.Status)
		assert.Equal(t, auth.TextCodeTokenInvalid, res.errorField("text_code"))
	})
}

func TestTaskOwnershipOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	aliceToken, aliceID := s.register(t, "Alice", "alice@example.com")
	bobToken, bobID := s.register(t, "Bob", "bob@example.com")
	adminToken := s.admin(t)

	taskID := s.createTask(t, aliceToken, bobID)
	path := "/tasks/" + taskID

	t.Run("assignee may update but not delete", func(t *testing.T) {
		res := s.call(t, fiber.MethodPut, path, bobToken, map[string]any{"title": "Ship the report"})
		require.Equal(t, fiber.StatusOK, res.Status, res.Body)
		assert.Equal(t, "Ship the report", res.task()["title"])

		res = s.call(t, fiber.MethodDelete, path, bobToken, nil)
		assert.Equal(t, fiber.StatusForbidden, res.Status)
		assert.Equal(t, auth.TextCodeForbidden, res.errorField("text_code"))
	})

	t.Run("creator may not change status unless assigned", func(t *testing.T) {
		res := s.call(t, fiber.MethodPatch, path+"/status", aliceToken, map[string]any{"status": "completed"})
		assert.Equal(t, fiber.StatusForbidden, res.Status)

		res = s.call(t, fiber.MethodPatch, path+"/status", bobToken, map[string]any{"status": "completed"})
		assert.Equal(t, fiber.StatusOK, res.Status)
	})

	t.Run("status cannot change through update", func(t *testing.T) {
		res := s.call(t, fiber.MethodPut, path, aliceToken, map[string]any{"status": "cancelled"})
		assert.Equal(t, fiber.StatusBadRequest, res.Status)
	})

	t.Run("anyone authenticated may tag", func(t *testing.T) {
		stranger, _ := s.register(t, "Carol", "carol@example.com")

		res := s.call(t, fiber.MethodPost, path+"/tags", stranger, map[string]any{"tag": "urgent"})
		require.Equal(t, fiber.StatusOK, res.Status, res.Body)
		assert.Equal(t, []any{"finance", "q3", "urgent"}, res.task()["tags"])

		res = s.call(t, fiber.MethodPost, path+"/tags", stranger, map[string]any{"tag": "urgent"})
		assert.Equal(t, []any{"finance", "q3", "urgent"}, res.task()["tags"])

		res = s.call(t, fiber.MethodDelete, path+"/tags", aliceToken, map[string]any{"tag": "q3"})
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.Equal(t, []any{"finance", "urgent"}, res.task()["tags"])
	})

	t.Run("filters", func(t *testing.T) {
		res := s.call(t, fiber.MethodGet, "/tasks?assignedTo="+aliceID, aliceToken, nil)
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.Empty(t, res.data()["tasks"])

		res = s.call(t, fiber.MethodGet, "/tasks?status=completed&search=SHIP&dueDate="+tomorrow(), aliceToken, nil)
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.Len(t, res.data()["tasks"], 1)

		res = s.call(t, fiber.MethodGet, "/tasks?status=archived", aliceToken, nil)
		assert.Equal(t, fiber.StatusBadRequest, res.Status)
	})

	t.Run("missing task is not found before permission check", func(t *testing.T) {
		res := s.call(t, fiber.MethodDelete, "/tasks/"+uuid.NewString(), bobToken, nil)
		assert.Equal(t, fiber.StatusNotFound, res.Status)
		assert.Equal(t, tasks.TextCodeTaskNotFound, res.errorField("text_code"))

		res = s.call(t, fiber.MethodGet, "/tasks/not-a-uuid", bobToken, nil)
		assert.Equal(t, fiber.StatusBadRequest, res.Status)
	})

	t.Run("admin may delete", func(t *testing.T) {
		res := s.call(t, fiber.MethodDelete, path, adminToken, nil)
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.Equal(t, "Task deleted successfully", res.Body["message"])

		res = s.call(t, fiber.MethodGet, path, aliceToken, nil)
		assert.Equal(t, fiber.StatusNotFound, res.Status)
	})
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestServer(t, nil)
	token, id := s.register(t, "Alice", "alice@example.com")

	tests := map[string]map[string]any{
		"short title":      {"title": "ab", "description": "long enough text", "dueDate": tomorrow(), "assignedTo": id},
		"past due date":    {"title": "Report", "description": "long enough text", "dueDate": "2001-01-01", "assignedTo": id},
		"unknown priority": {"title": "Report", "description": "long enough text", "dueDate": tomorrow(), "assignedTo": id, "priority": "urgent"},
		"too many tags":    {"title": "Report", "description": "long enough text", "dueDate": tomorrow(), "assignedTo": id, "tags": []string{"aa", "bb", "cc", "dd", "ee", "ff"}},
		"missing assignee": {"title": "Report", "description": "long enough text", "dueDate": tomorrow()},
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			res := s.call(t, fiber.MethodPost, "/tasks", token, body)
			assert.Equal(t, fiber.StatusBadRequest, res.Status, res.Body)
			assert.Equal(t, auth.TextCodeValidationFailed, res.errorField("text_code"))
		})
	}
}

func TestDeactivation(t *testing.T) {
	s := newTestServer(t, nil)
	aliceToken, aliceID := s.register(t, "Alice", "alice@example.com")
	bobToken, _ := s.register(t, "Bob", "bob@example.com")
	adminToken := s.admin(t)

	res := s.call(t, fiber.MethodPatch, "/users/"+aliceID+"/activation", bobToken, map[string]any{"isActive": false})
	assert.Equal(t, fiber.StatusForbidden, res.Status)

	res = s.call(t, fiber.MethodPatch, "/users/"+aliceID+"/activation", adminToken, map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, res.Status)

	res = s.call(t, fiber.MethodPatch, "/users/"+aliceID+"/activation", adminToken, map[string]any{"isActive": false})
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)
	assert.Equal(t, false, res.data()["user"].(map[string]any)["isActive"])

	res = s.call(t, fiber.MethodGet, "/auth/profile", aliceToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.Status)
	assert.Equal(t, auth.TextCodeAccountInactive, res.errorField("text_code"))

	res = s.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{"email": "alice@example.com", "password": "Secret123"})
	assert.Equal(t, fiber.StatusUnauthorized, res.Status)
	assert.Equal(t, auth.TextCodeAccountInactive, res.errorField("text_code"))

	res = s.call(t, fiber.MethodPatch, "/users/"+uuid.NewString()+"/activation", adminToken, map[string]any{"isActive": true})
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	res := s.call(t, fiber.MethodGet, "/health", "", nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "OK", res.Body["status"])
	assert.Equal(t, "test", res.Body["environment"])
	assert.Contains(t, res.Body, "uptime")

	res = s.call(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
	assert.Equal(t, api.TextCodeRouteNotFound, res.errorField("text_code"))
	assert.Nil(t, res.errorField("metadata"), "metadata is redacted outside development")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, map[string]string{"RATE_LIMIT_MAX_REQUESTS": "2"})

	for i := 0; i < 2; i++ {
		assert.Equal(t, fiber.StatusOK, s.call(t, fiber.MethodGet, "/health", "", nil).Status)
	}

	res := s.call(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusTooManyRequests, res.Status)
	assert.Equal(t, api.TextCodeRateLimit, res.errorField("text_code"))
}

func TestRegister_MultibytePasswordOverByteLimit(t *testing.T) {
	s := newTestServer(t, nil)

	// 43 runes but 83 bytes
	password := "Aa1" + strings.Repeat("é", 40)
	res := s.call(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": password,
	})
	assert.Equal(t, fiber.StatusBadRequest, res.Status, res.Body)
	assert.Equal(t, auth.TextCodeValidationFailed, res.errorField("text_code"))

	res = s.call(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": "Aa1" + strings.Repeat("é", 20),
	})
	assert.Equal(t, fiber.StatusCreated, res.Status, res.Body)
}

func TestListTasks_PagingBounds(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.register(t, "Alice", "alice@example.com")

	for _, query := range []string{
		"page=9223372036854775807&limit=100",
		"page=99999999999999999999999",
		"page=two",
		"limit=-1",
	} {
		t.Run(query, func(t *testing.T) {
			res := s.call(t, fiber.MethodGet, "/tasks?"+query, token, nil)
			assert.Equal(t, fiber.StatusBadRequest, res.Status, res.Body)
			assert.Equal(t, auth.TextCodeValidationFailed, res.errorField("text_code"))
		})
	}

	res := s.call(t, fiber.MethodGet, "/tasks?page=1000000&limit=100", token, nil)
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)
	assert.Empty(t, res.data()["tasks"])
}

func TestTaskReadsIncludeUsers(t *testing.T) {
	s := newTestServer(t, nil)
	aliceToken, aliceID := s.register(t, "Alice", "alice@example.com")
	_, bobID := s.register(t, "Bob", "bob@example.com")

	taskID := s.createTask(t, aliceToken, bobID)

	summary := func(t *testing.T, task map[string]any, key string) map[string]any {
		t.Helper()
		out, ok := task[key].(map[string]any)
		require.True(t, ok, "%s missing in %v", key, task)
		return out
	}

	res := s.call(t, fiber.MethodGet, "/tasks/"+taskID, aliceToken, nil)
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)
	assert.Equal(t, map[string]any{"id": aliceID, "name": "Alice", "email": "alice@example.com"}, summary(t, res.task(), "creator"))
	assert.Equal(t, map[string]any{"id": bobID, "name": "Bob", "email": "bob@example.com"}, summary(t, res.task(), "assignee"))

	list := s.call(t, fiber.MethodGet, "/tasks", aliceToken, nil)
	require.Equal(t, fiber.StatusOK, list.Status)
	found := list.data()["tasks"].([]any)
	require.Len(t, found, 1)
	assert.Equal(t, "Alice", summary(t, found[0].(map[string]any), "creator")["name"])
	assert.Equal(t, "bob@example.com", summary(t, found[0].(map[string]any), "assignee")["email"])

	updated := s.call(t, fiber.MethodPut, "/tasks/"+taskID, aliceToken, map[string]any{"assignedTo": aliceID})
	require.Equal(t, fiber.StatusOK, updated.Status, updated.Body)
	assert.Equal(t, aliceID, updated.task()["assignedTo"])
	assert.Equal(t, "Alice", summary(t, updated.task(), "assignee")["name"])
}

func TestStatusChangeIsRecorded(t *testing.T) {
	s := newTestServer(t, nil)
	aliceToken, aliceID := s.register(t, "Alice", "alice@example.com")
	bobToken, bobID := s.register(t, "Bob", "bob@example.com")

	taskID := s.createTask(t, aliceToken, bobID)

	res := s.call(t, fiber.MethodPatch, "/tasks/"+taskID+"/status", aliceToken, map[string]any{"status": "completed"})
	require.Equal(t, fiber.StatusForbidden, res.Status)
	assert.Empty(t, s.events.ofType(auth.ActivityEventTaskStatusChanged))

	res = s.call(t, fiber.MethodPatch, "/tasks/"+taskID+"/status", bobToken, map[string]any{"status": "in-progress"})
	require.Equal(t, fiber.StatusOK, res.Status, res.Body)

	events := s.events.ofType(auth.ActivityEventTaskStatusChanged)
	require.Len(t, events, 1)
	assert.Equal(t, bobID, events[0].ActorID)
	assert.Equal(t, taskID, events[0].SubjectID)
	assert.Equal(t, "pending", events[0].Metadata["from"])
	assert.Equal(t, "in-progress", events[0].Metadata["to"])
	assert.NotEqual(t, aliceID, events[0].ActorID)
}
