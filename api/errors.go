package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/auth"
)

const (
	TextCodeRouteNotFound = "ROUTE_NOT_FOUND"
	TextCodeRateLimit     = "RATE_LIMIT"
	TextCodeMalformedBody = "MALFORMED_BODY"
	TextCodeInternal      = "INTERNAL_ERROR"

	internalMessage = "Internal server error"
)

var (
	ErrRouteNotFound = errors.New("Route not found", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode(TextCodeRouteNotFound)

	ErrRateLimited = errors.New("Too many requests, please try again later", errors.CategoryRateLimit).
		WithCode(errors.CodeTooManyRequests).
		WithTextCode(TextCodeRateLimit)

	ErrMalformedBody = errors.New("Invalid request body", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeMalformedBody)
)

// ErrorHandlerConfig configures the boundary error mapper
type ErrorHandlerConfig struct {
	// Development includes the stack trace and internal details
	Development bool
	Logger      auth.Logger
}

// ErrorHandler maps any error returned by a handler or middleware to a
// status code and the error envelope. It is the only place errors are
// rendered.
func ErrorHandler(cfg ErrorHandlerConfig) fiber.ErrorHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = auth.NewLogger("api")
	}

	mappers := []errors.ErrorMapper{mapFiberError}

	return func(c *fiber.Ctx, err error) error {
		out := errors.MapToError(err, mappers).Clone()

		if out.Code == 0 {
			out.Code = statusForCategory(out.Category)
		}
		if out.TextCode == "" {
			out.TextCode = errors.HTTPStatusToTextCode(out.Code)
		}
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			out.RequestID = id
		}

		args := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", out.Code,
			"text_code", out.TextCode,
			"request_id", out.RequestID,
			"error", err.Error(),
		}
		if out.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed", args...)
		} else {
			logger.Debug("request rejected", args...)
		}

		// only the trace recorded where the error was raised is useful,
		// frames captured here would point at this handler
		stack := out.StackTrace
		if !cfg.Development {
			redact(out)
		}

		res := out.ToErrorResponse(cfg.Development, stack)
		return c.Status(out.Code).JSON(ErrorEnvelope{Success: false, Error: res.Error})
	}
}

// redact strips internals that must not leave the process in production
func redact(e *errors.Error) {
	e.Source = nil
	e.Location = nil
	e.Metadata = nil
	e.StackTrace = nil
	if e.Code >= fiber.StatusInternalServerError {
		e.Message = internalMessage
		e.TextCode = TextCodeInternal
	}
}

func mapFiberError(err error) *errors.Error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return nil
	}
	return errors.New(fe.Message, errors.HTTPStatusToCategory(fe.Code)).
		WithCode(fe.Code).
		WithTextCode(errors.HTTPStatusToTextCode(fe.Code))
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case errors.CategoryMethodNotAllowed:
		return fiber.StatusMethodNotAllowed
	default:
		return fiber.StatusInternalServerError
	}
}

func validationError(err error) error {
	return errors.FromOzzoValidation(err, "Validation failed").
		WithCode(errors.CodeBadRequest).
		WithTextCode(auth.TextCodeValidationFailed)
}

// bind parses the JSON body into payload and validates it
func bind(c router.Context, payload Validatable) error {
	if err := c.Bind(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, ErrMalformedBody.Message).
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeMalformedBody)
	}
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return nil
}
