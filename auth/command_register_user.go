package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// RegisterUserMessage is the input of a registration
type RegisterUserMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// UseHashid derives the user ID from the normalized email
	UseHashid bool `json:"-"`
}

var _ command.Message = RegisterUserMessage{}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the fields the handler can not work without. Password
// strength rules belong to the HTTP request.
func (e RegisterUserMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Email, validation.Required, is.EmailFormat),
		validation.Field(&e.Password, validation.Required),
	)
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "invalid registration message").
		WithCode(goerrors.CodeBadRequest)
}

// RegisterUserHandler persists a new active user with the default role
type RegisterUserHandler struct {
	users  Users
	hasher PasswordAuthenticator
	now    func() time.Time
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

// NewRegisterUserHandler returns a handler storing users in users
func NewRegisterUserHandler(users Users, hasher PasswordAuthenticator, now func() time.Time) *RegisterUserHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if now == nil {
		now = time.Now
	}
	return &RegisterUserHandler{users: users, hasher: hasher, now: now}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	email := NormalizeEmail(event.Email)
	event.Email = email

	if err := event.Validate(); err != nil {
		return err
	}

	existing, err := h.users.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return ErrDuplicateEmail
	}
	if err != nil && !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to lookup user during registration")
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return err
	}

	id := uuid.New()
	if event.UseHashid {
		if hid, err := hashid.NewUUID(email); err == nil {
			id = hid
		}
	}

	now := h.now().UTC()
	user := &User{
		ID:           id,
		Name:         strings.TrimSpace(event.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := h.users.Create(ctx, user); err != nil {
		// lost a race against a concurrent registration for the same email
		if goerrors.IsCategory(err, goerrors.CategoryConflict) {
			return ErrDuplicateEmail
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return nil
}
