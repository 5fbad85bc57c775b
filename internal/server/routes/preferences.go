package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/style-hub/style-hub/internal/server"
	"github.com/style-hub/style-hub/internal/styles"
)

// PreferenceStore is the subset of preferences.Store the API needs.
type PreferenceStore interface {
	Configurations(ctx context.Context) []styles.Configuration
	SetConfigurations(ctx context.Context, list []styles.Configuration) error
	Selected(ctx context.Context) (styles.Configuration, bool)
	SetSelected(ctx context.Context, c *styles.Configuration) error
}

type configurationsPayload struct {
	Configurations []styles.Configuration `json:"configurations"`
}

type selectedPayload struct {
	Selected styles.Configuration `json:"selected"`
}

// RegisterPreferenceRoutes exposes the configuration list and the selection.
func RegisterPreferenceRoutes(app *fiber.App, store PreferenceStore, logger *logrus.Logger) {
	if app == nil || store == nil {
		return
	}

	app.Get("/configurations", func(c fiber.Ctx) error {
		return c.JSON(configurationsPayload{Configurations: store.Configurations(c.Context())})
	})

	app.Put("/configurations", func(c fiber.Ctx) error {
		var payload configurationsPayload
		if err := c.Bind().JSON(&payload); err != nil {
			return badRequest(c, "invalid_body", err)
		}
		if payload.Configurations == nil {
			payload.Configurations = []styles.Configuration{}
		}
		for _, item := range payload.Configurations {
			if err := item.Validate(); err != nil {
				return badRequest(c, "invalid_configuration", err)
			}
		}
		if err := store.SetConfigurations(c.Context(), payload.Configurations); err != nil {
			return storeFailed(c, logger, err)
		}
		return c.JSON(payload)
	})

	app.Get("/selected", func(c fiber.Ctx) error {
		selected, ok := store.Selected(c.Context())
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_selection"})
		}
		return c.JSON(selectedPayload{Selected: selected})
	})

	app.Put("/selected", func(c fiber.Ctx) error {
		var payload selectedPayload
		if err := c.Bind().JSON(&payload); err != nil {
			return badRequest(c, "invalid_body", err)
		}
		if err := payload.Selected.Validate(); err != nil {
			return badRequest(c, "invalid_configuration", err)
		}
		if !styles.Contains(store.Configurations(c.Context()), payload.Selected) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not_in_configurations"})
		}
		if err := store.SetSelected(c.Context(), &payload.Selected); err != nil {
			return storeFailed(c, logger, err)
		}
		return c.JSON(payload)
	})

	app.Delete("/selected", func(c fiber.Ctx) error {
		if err := store.SetSelected(c.Context(), nil); err != nil {
			return storeFailed(c, logger, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func badRequest(c fiber.Ctx, code string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  code,
		"detail": err.Error(),
	})
}

func storeFailed(c fiber.Ctx, logger *logrus.Logger, err error) error {
	if logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"action":     "preferences_write",
			"request_id": server.RequestID(c),
		}).Warn("preferences_write_failed")
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "store_failed"})
}
