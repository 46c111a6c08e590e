package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Auther runs the registration and login flows against the credential
// store and the token service.
type Auther struct {
	users        Users
	tokens       TokenService
	hasher       PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	useHashid    bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(users Users, tokens TokenService) *Auther {
	return &Auther{
		users:        users,
		tokens:       tokens,
		hasher:       NewBcryptHasher(0),
		logger:       NewLogger("auth"),
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger, "auth")
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = NormalizeActivitySink(sink)
	return s
}

// WithPasswordHasher replaces the default bcrypt hasher
func (s *Auther) WithPasswordHasher(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithClock overrides the clock used for login tracking
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// WithHashidUserIDs derives new user IDs from the registration email
func (s *Auther) WithHashidUserIDs(enabled bool) *Auther {
	s.useHashid = enabled
	return s
}

// Register creates a new active user with the default role and issues a token
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*AuthResult, error) {
	msg.Email = NormalizeEmail(msg.Email)
	msg.UseHashid = msg.UseHashid || s.useHashid

	handler := NewRegisterUserHandler(s.users, s.hasher, s.now)
	if err := handler.Execute(ctx, msg); err != nil {
		return nil, err
	}

	created, err := s.users.GetByEmail(ctx, msg.Email)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load registered user")
	}

	result, err := s.issue(created)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventRegistered, created.ID.String(), created.ID.String(), nil)

	return result, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords return the same ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			// unknown emails still pay for one hash comparison
			_ = s.hasher.ComparePasswordAndHash(password, s.dummyPasswordHash())
			s.emit(ctx, ActivityEventLoginFailure, "", "", map[string]any{
				"identifier": email,
				"reason":     "unknown identifier",
			})
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login lookup failed", "error", err)
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during login")
	}

	if !user.IsActive {
		s.logger.Warn("login blocked for inactive account", "user_id", user.ID.String())
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), user.ID.String(), map[string]any{
			"identifier": email,
			"reason":     "inactive",
		})
		return nil, ErrAccountInactive
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), user.ID.String(), map[string]any{
				"identifier": email,
				"reason":     "password mismatch",
			})
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login password compare failed", "error", err)
		return nil, err
	}

	loginAt := s.now().UTC()
	if err := s.users.TrackLogin(ctx, user.ID, loginAt); err != nil {
		s.logger.Error("failed to track successful login", "user_id", user.ID.String(), "error", err)
	} else {
		user.LastLogin = &loginAt
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), user.ID.String(), map[string]any{
		"identifier": email,
	})

	return result, nil
}

// Profile returns the redacted view of an active user
func (s *Auther) Profile(ctx context.Context, id uuid.UUID) (*PublicUser, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve profile")
	}

	if !user.IsActive {
		return nil, ErrIdentityNotFound
	}

	out := user.Public()
	return &out, nil
}

// ResolveToken verifies a raw token and loads its subject. It is the
// storage half of the request guard: the token must verify, the subject
// must exist and it must still be active.
func (s *Auther) ResolveToken(ctx context.Context, raw string) (*User, *JWTClaims, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, nil, err
	}

	id, err := claims.UserUUID()
	if err != nil {
		return nil, nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve token subject")
	}

	if !user.IsActive {
		return nil, nil, ErrAccountInactive
	}

	return user, claims, nil
}

// SetActive flips the active flag of a user. Only the admin route calls it.
func (s *Auther) SetActive(ctx context.Context, actor *User, id uuid.UUID, active bool) (*PublicUser, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden("user.activation")
	}

	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user")
	}

	user, err := s.users.SetActive(ctx, id, active)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update user activation")
	}

	s.emit(ctx, ActivityEventActivationChanged, actor.ID.String(), id.String(), map[string]any{
		"from": current.IsActive,
		"to":   active,
	})

	out := user.Public()
	return &out, nil
}

func (s *Auther) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			s.logger.Error("failed to prepare dummy password hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Auther) issue(user *User) (*AuthResult, error) {
	token, err := s.tokens.Issue(NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", user.ID.String(), "error", err)
		return nil, err
	}
	return &AuthResult{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		User:      user.Public(),
	}, nil
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, actorID, subjectID string, meta map[string]any) {
	RecordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		ActorID:    actorID,
		SubjectID:  subjectID,
		Metadata:   meta,
		OccurredAt: s.now().UTC(),
	})
}
