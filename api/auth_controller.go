package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/middleware/jwtware"
	"github.com/google/uuid"
)

// AuthController serves registration, login, profile and account
// activation
type AuthController struct {
	Auther *auth.Auther
	Logger auth.Logger
}

func NewAuthController(auther *auth.Auther, logger auth.Logger) *AuthController {
	if auther == nil {
		panic("Missing Auther in auth controller...")
	}
	if logger == nil {
		logger = auth.NewLogger("auth.http")
	}
	return &AuthController{Auther: auther, Logger: logger}
}

// RegisterAuthRoutes mounts /auth and /users. guard must be the
// authentication middleware.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController, guard router.MiddlewareFunc) {
	group := app.Group("/auth")
	group.Post("/register", controller.Register).SetName("auth.register")
	group.Post("/login", controller.Login).SetName("auth.login")
	group.Get("/profile", controller.Profile, guard).SetName("auth.profile")

	app.Patch("/users/:id/activation",
		controller.SetActivation,
		guard,
		jwtware.Authorize(auth.RoleAdmin),
	).SetName("users.activation")
}

func (a *AuthController) Register(c router.Context) error {
	payload := new(RegisterRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	res, err := a.Auther.Register(c.Context(), payload.Message())
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusCreated, res)
}

func (a *AuthController) Login(c router.Context) error {
	payload := new(LoginRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	res, err := a.Auther.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Debug("login rejected", "email", auth.NormalizeEmail(payload.Email))
		return err
	}

	return respond(c, fiber.StatusOK, res)
}

func (a *AuthController) Profile(c router.Context) error {
	user, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	profile, err := a.Auther.Profile(c.Context(), user.ID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"user": profile})
}

func (a *AuthController) SetActivation(c router.Context) error {
	actor, ok := jwtware.UserFromCtx(c)
	if !ok {
		return auth.ErrMissingToken
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}

	payload := new(ActivationRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	user, err := a.Auther.SetActive(c.Context(), actor, id, *payload.IsActive)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"user": user})
}

// pathID parses the :id route parameter
func pathID(c router.Context) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Param("id", ""))
	id, err := uuid.Parse(raw)
	if err != nil {
		field := errors.FieldError{Field: "id", Message: "must be a valid UUID", Value: raw}
		return uuid.Nil, errors.NewValidation("Validation failed", field).
			WithCode(errors.CodeBadRequest).
			WithTextCode(auth.TextCodeValidationFailed)
	}
	return id, nil
}
