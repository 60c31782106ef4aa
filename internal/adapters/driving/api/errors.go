package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// Error is the JSON body of a failed request.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Message
}

// ValidationError lists request fields that failed validation.
type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

// NewError creates an API error.
func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

// NewValidationError wraps field failures in a 422 response.
func NewValidationError(errs map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errs,
	}
}

// ErrBadRequest is returned for bodies that do not parse.
func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

// ErrNotFound reports a missing resource.
func ErrNotFound[T any](arg T, resource string) Error {
	return NewError(fiber.StatusNotFound, fmt.Sprintf("%s with %v not found", resource, arg))
}

// ErrorHandler renders every error returned by a handler as JSON.
// Domain errors map to a status by kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	apiErr = fromDomain(err)
	if apiErr.Code >= fiber.StatusInternalServerError {
		logger.Error("%s %s failed with %d: %v", c.Method(), c.Path(), apiErr.Code, err)
	} else {
		logger.Debug("%s %s failed with %d: %v", c.Method(), c.Path(), apiErr.Code, err)
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

// fromDomain maps an error to a status code. Caller mistakes are checked
// before collaborator failures so a wrapped invalid input stays a 400.
func fromDomain(err error) Error {
	e := Error{Message: err.Error()}
	if kind := domain.ErrorKind(err); kind != nil {
		e.Kind = kind.Error()
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		e.Code = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		e.Code = fiber.StatusNotFound
	case errors.Is(err, domain.ErrRetrievalTimeout):
		e.Code = fiber.StatusGatewayTimeout
	case errors.Is(err, domain.ErrGeneration), errors.Is(err, domain.ErrLLMUnavailable):
		e.Code = fiber.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEmbedding):
		e.Code = fiber.StatusBadGateway
	case errors.Is(err, domain.ErrIngestion):
		e.Code = fiber.StatusUnprocessableEntity
	default:
		e.Code = fiber.StatusInternalServerError
	}
	return e
}
