package repository

import (
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	repo "github.com/goliatone/go-repository-bun"
)

const (
	TextCodeRecordNotFound = "RECORD_NOT_FOUND"
	TextCodeDuplicateKey   = "DUPLICATE_KEY"
)

// ErrRecordNotFound is returned when a lookup matches no row
var ErrRecordNotFound = errors.New("record not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeRecordNotFound)

// ErrDuplicateKey is returned when an insert or update violates a unique index
var ErrDuplicateKey = errors.New("duplicate key", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeDuplicateKey)

// IsDuplicateKeyError reports whether a driver error is a unique key
// violation. sqlite and postgres spell it differently.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// mapError turns driver errors into the categories the domain checks for
func mapError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows), repo.IsRecordNotFound(err):
		return ErrRecordNotFound
	case IsDuplicateKeyError(err):
		return ErrDuplicateKey.Clone().WithMetadata(map[string]any{"operation": op})
	default:
		return errors.Wrap(err, errors.CategoryInternal, op+" failed").WithStackTrace()
	}
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read affected rows")
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
