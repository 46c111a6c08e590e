package auth_test

import (
	"context"
	"time"

	"github.com/goliatone/go-tasks/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	switch v := args.Get(0).(type) {
	case func() *auth.User:
		return v(), args.Error(1)
	case *auth.User:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	switch v := args.Get(0).(type) {
	case func(context.Context, *auth.User) *auth.User:
		return v(ctx, user), args.Error(1)
	case *auth.User:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) (*auth.User, error) {
	args := m.Called(ctx, id, active)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetTokenExpiration() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

func (m *MockConfig) GetIssuer() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetContextKey() string {
	return m.Called().String(0)
}

func newMockConfig() *MockConfig {
	cfg := new(MockConfig)
	cfg.On("GetSigningKey").Return("test-signing-key")
	cfg.On("GetTokenExpiration").Return(24 * time.Hour)
	cfg.On("GetIssuer").Return("test-issuer")
	cfg.On("GetAuthScheme").Return("Bearer").Maybe()
	cfg.On("GetContextKey").Return("user").Maybe()
	return cfg
}
