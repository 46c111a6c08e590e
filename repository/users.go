package repository

import (
	"context"
	"time"

	repo "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tasks/auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsersRepository persists users with bun
type UsersRepository struct {
	db      bun.IDB
	records repo.Repository[*auth.User]
}

var _ auth.Users = (*UsersRepository)(nil)

func NewUsersRepository(db bun.IDB) *UsersRepository {
	return &UsersRepository{
		db: db,
		records: repo.NewRepository(db, repo.ModelHandlers[*auth.User]{
			NewRecord: func() *auth.User { return new(auth.User) },
			GetID: func(u *auth.User) uuid.UUID {
				if u == nil {
					return uuid.Nil
				}
				return u.ID
			},
			SetID: func(u *auth.User, id uuid.UUID) {
				u.ID = id
			},
			GetIdentifier: func() string {
				return "email"
			},
		}),
	}
}

func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	user, err := r.records.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapError(err, "users.get_by_id")
	}
	return user, nil
}

func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, err := r.records.Get(ctx, repo.SelectBy("email", "=", auth.NormalizeEmail(email)))
	if err != nil {
		return nil, mapError(err, "users.get_by_email")
	}
	return user, nil
}

func (r *UsersRepository) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	user.Email = auth.NormalizeEmail(user.Email)

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	created, err := r.records.Create(ctx, user)
	if err != nil {
		return nil, mapError(err, "users.create")
	}
	return created, nil
}

// The flag and timestamp writes below stay on the query builder: the
// generic Update omits zero values, which would drop is_active=false.

// TrackLogin stamps the last successful login
func (r *UsersRepository) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("last_login = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapError(err, "users.track_login")
	}
	return requireAffected(res)
}

// SetActive flips the active flag and returns the stored user
func (r *UsersRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*auth.User, error) {
	res, err := r.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, mapError(err, "users.set_active")
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
