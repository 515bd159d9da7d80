package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pipeline-chat-be/pkg/graph"
)

// Response is the shared success envelope for API handlers.
type Response[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{Message: message, Data: data}
}

// ErrorHandlerMiddleware converts errors escaping the handlers into
// JSON responses. Graph invariant violations are logic faults and map
// to 500; everything else defaults to 500 with the error message.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		}

		var inv *graph.InvariantViolation
		if errors.As(err, &inv) {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message":   "internal pipeline state error",
				"invariant": inv.Invariant,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
