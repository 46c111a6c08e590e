package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/middleware/jwtware"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
)

// TaskController serves the /tasks resource
type TaskController struct {
	Tasks  *tasks.Service
	Logger auth.Logger
	// Now is used to validate due dates
	Now func() time.Time
}

func NewTaskController(service *tasks.Service, logger auth.Logger) *TaskController {
	if service == nil {
		panic("Missing task service in task controller...")
	}
	if logger == nil {
		logger = auth.NewLogger("tasks.http")
	}
	return &TaskController{Tasks: service, Logger: logger, Now: time.Now}
}

// RegisterTaskRoutes mounts /tasks behind guard
func RegisterTaskRoutes[T any](app router.Router[T], controller *TaskController, guard router.MiddlewareFunc) {
	group := app.Group("/tasks").Use(guard)

	group.Get("", controller.List).SetName("tasks.list")
	group.Post("", controller.Create).SetName("tasks.create")
	group.Get("/:id", controller.Get).SetName("tasks.get")
	group.Put("/:id", controller.Update).SetName("tasks.update")
	group.Delete("/:id", controller.Delete).SetName("tasks.delete")
	group.Patch("/:id/status", controller.UpdateStatus).SetName("tasks.status")
	group.Post("/:id/tags", controller.AddTag).SetName("tasks.tags.add")
	group.Delete("/:id/tags", controller.RemoveTag).SetName("tasks.tags.remove")
}

func (t *TaskController) List(c router.Context) error {
	query, err := BindListTasksQuery(c)
	if err != nil {
		return err
	}
	if err := query.Validate(); err != nil {
		return validationError(err)
	}

	page, err := t.Tasks.List(c.Context(), query.Filter())
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, page)
}

func (t *TaskController) Create(c router.Context) error {
	actor, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	payload := &CreateTaskRequest{now: t.Now}
	if err := bind(c, payload); err != nil {
		return err
	}

	task, err := t.Tasks.Create(c.Context(), actor, payload.Message())
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusCreated, fiber.Map{"task": task})
}

func (t *TaskController) Get(c router.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	task, err := t.Tasks.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"task": task})
}

func (t *TaskController) Update(c router.Context) error {
	actor, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}

	payload := &UpdateTaskRequest{now: t.Now}
	if err := bind(c, payload); err != nil {
		return err
	}

	task, err := t.Tasks.Update(c.Context(), actor, id, payload.Message())
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"task": task})
}

func (t *TaskController) Delete(c router.Context) error {
	actor, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := t.Tasks.Delete(c.Context(), actor, id); err != nil {
		return err
	}

	return respondMessage(c, fiber.StatusOK, "Task deleted successfully")
}

func (t *TaskController) UpdateStatus(c router.Context) error {
	actor, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}

	payload := new(StatusRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	task, err := t.Tasks.UpdateStatus(c.Context(), actor, id, tasks.Status(payload.Status))
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"task": task})
}

func (t *TaskController) AddTag(c router.Context) error {
	return t.changeTag(c, t.Tasks.AddTag)
}

func (t *TaskController) RemoveTag(c router.Context) error {
	return t.changeTag(c, t.Tasks.RemoveTag)
}

type tagMutation func(ctx context.Context, actor *auth.User, id uuid.UUID, tag string) (*tasks.Task, error)

func (t *TaskController) changeTag(c router.Context, mutate tagMutation) error {
	actor, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}

	payload := new(TagRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	task, err := mutate(c.Context(), actor, id, payload.Tag)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"task": task})
}
