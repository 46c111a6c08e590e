package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingToken     = "MISSING_TOKEN"
	TextCodeTokenInvalid     = "TOKEN_INVALID"
	TextCodeAccountInactive  = "ACCOUNT_INACTIVE"
	TextCodeUserNotFound     = "USER_NOT_FOUND"
	TextCodeDuplicateEmail   = "DUPLICATE_EMAIL"
	TextCodeForbidden        = "FORBIDDEN"
	TextCodeNotFound         = "NOT_FOUND"
	TextCodeValidationFailed = "VALIDATION_ERROR"
	TextCodePasswordTooLong  = "PASSWORD_TOO_LONG"
)

var (
	// ErrMissingToken is returned when the request carries no usable bearer token
	ErrMissingToken = errors.New("Not authorized, no token", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeMissingToken)

	// ErrTokenInvalid covers bad signatures, wrong algorithms and malformed payloads
	ErrTokenInvalid = errors.New("Not authorized, invalid token", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeTokenInvalid)

	// ErrTokenExpired is returned when the token expiry is in the past
	ErrTokenExpired = errors.New("Token expired", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(errors.TextCodeTokenExpired)

	// ErrAccountInactive is returned when the identity has been deactivated
	ErrAccountInactive = errors.New("Account is inactive", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeAccountInactive)

	// ErrUserNotFound is returned by the guard when the token subject no longer exists
	ErrUserNotFound = errors.New("User not found", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeUserNotFound)

	// ErrInvalidCredentials is shared by "no such user" and "wrong password"
	ErrInvalidCredentials = errors.New("Invalid credentials", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(errors.TextCodeInvalidCredentials)

	// ErrDuplicateEmail is returned on registration with a taken email
	ErrDuplicateEmail = errors.New("User already exists with this email", errors.CategoryConflict).
		WithCode(errors.CodeConflict).
		WithTextCode(TextCodeDuplicateEmail)

	// ErrForbidden is returned when the identity lacks the permission for an action
	ErrForbidden = errors.New("Not authorized to perform this action", errors.CategoryAuthz).
		WithCode(errors.CodeForbidden).
		WithTextCode(TextCodeForbidden)

	// ErrIdentityNotFound is returned by profile lookups for missing or inactive users
	ErrIdentityNotFound = errors.New("User not found", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode(TextCodeNotFound)

	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = errors.New("password can not be an empty string", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(errors.TextCodeEmptyPassword)

	// ErrPasswordTooLong is returned when the password exceeds MaxPasswordBytes
	ErrPasswordTooLong = errors.New("password can not be longer than 72 bytes", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodePasswordTooLong)

	// ErrMismatchedHashAndPassword is the hasher level mismatch error, it is
	// never surfaced to clients, login maps it to ErrInvalidCredentials
	ErrMismatchedHashAndPassword = errors.New("password does not match hash", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(errors.TextCodeInvalidCredentials)
)

// HasTextCode reports whether err is a go-errors Error with the given text code
func HasTextCode(err error, code string) bool {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.TextCode == code
	}
	return false
}

// Forbidden returns a copy of ErrForbidden annotated with the denied action
func Forbidden(action string, meta ...map[string]any) *errors.Error {
	out := ErrForbidden.Clone().WithMetadata(map[string]any{"action": action})
	if len(meta) > 0 {
		out = out.WithMetadata(meta...)
	}
	return out
}
