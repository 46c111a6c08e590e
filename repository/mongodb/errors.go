package mongodb

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

func mapError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrRecordNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicateKey.Clone().WithMetadata(map[string]any{"operation": op})
	default:
		return errors.Wrap(err, errors.CategoryInternal, op+" failed").WithStackTrace()
	}
}

func requireMatched(matched int64) error {
	if matched == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}
