package serverutils

import (
	"errors"

	"ai-research-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps service layer errors onto HTTP status codes. Registered
// as the fiber app's global error handler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(validationErr.Error()))
	}

	var serviceValidationErr *service.ValidationError
	if errors.As(err, &serviceValidationErr) {
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(serviceValidationErr.Error()))
	}

	var notFoundErr *service.NotFoundError
	if errors.As(err, &notFoundErr) {
		return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(notFoundErr.Error()))
	}

	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(err.Error()))
}
