package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/observability"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// RegisterMiddlewares installs, outermost first: request IDs, access logging
// and metrics, error rendering with panic recovery, and the request deadline.
// The logger sits outside error rendering so it records the final status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New(requestid.Config{Header: fiber.HeaderXRequestID}))
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(renderErrors(logger, metrics))
	if timeout > 0 {
		app.Use(withDeadline(timeout))
	}
}

func withDeadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// renderErrors turns any error returned down the chain into the
// {"error":{code,message,details}} envelope.
func renderErrors(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in handler",
					zap.Any("panic", r),
					zap.String("request_id", requestID(c)),
					zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			domainErr := toDomainError(err)
			metrics.RecordError(observability.RouteOf(c), c.Method(), domainErr.Code)
			if domainErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error("request failed", zap.String("request_id", requestID(c)), zap.Error(domainErr))
			}

			body := fiber.Map{"code": domainErr.Code, "message": domainErr.Message}
			if len(domainErr.Details) > 0 {
				body["details"] = domainErr.Details
			}
			err = c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
		}()
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

// toDomainError also understands errors raised by fiber itself, such as
// unmatched routes or oversized bodies.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return apperrors.ToDomainError(err)
	}
	code := apperrors.CodeInternal
	switch fiberErr.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		code = apperrors.CodeNotFound
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		code = apperrors.CodeValidation
	case http.StatusUnauthorized:
		code = apperrors.CodeUnauthorized
	case http.StatusForbidden:
		code = apperrors.CodeForbidden
	}
	return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
}
