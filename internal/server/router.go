package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/style-hub/style-hub/internal/logging"
	"github.com/style-hub/style-hub/internal/version"
)

// AppOptions controls how the Fiber application is built.
type AppOptions struct {
	Logger *logrus.Logger
}

const contextKeyRequestID = "_stylehub_request_id"

// NewApp builds a Fiber application with recovery, request ID and access log
// middleware plus the /-/healthz probe. Callers register route groups on the
// returned app.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
		})
	})

	return app, nil
}

// requestContextMiddleware assigns a request ID and logs the request once the
// handler chain returns.
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status)
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		logger.WithFields(fields).Debug("request")
		return err
	}
}

// errorHandler renders errors as {"error": ...} like every other response.
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "api_error",
				"request_id": RequestID(c),
				"path":       c.Path(),
			}).Error("request failed")
		}
		return c.Status(code).JSON(fiber.Map{"error": errorCode(code)})
	}
}

func errorCode(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
