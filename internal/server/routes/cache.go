package routes

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/server"
)

// CacheInspector reports cache statistics.
type CacheInspector interface {
	Info() (cache.Info, error)
}

// Refresher schedules a background refresh of every stored identity.
type Refresher interface {
	RefreshAll(ctx context.Context) int
}

var errIdentityRequired = errors.New("identity is required")

type leaseRequest struct {
	Identity string `json:"identity"`
}

type leasePayload struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
	Path     string `json:"path"`
}

type cachePayload struct {
	cache.Info
	ActiveLeases int `json:"active_leases"`
}

// RegisterCacheRoutes exposes refresh, lease and cache inspection endpoints.
func RegisterCacheRoutes(app *fiber.App, inspector CacheInspector, refresher Refresher, leases *server.LeaseTable, logger *logrus.Logger) {
	if app == nil {
		return
	}

	if refresher != nil {
		app.Post("/refresh", func(c fiber.Ctx) error {
			scheduled := refresher.RefreshAll(c.Context())
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scheduled": scheduled})
		})
	}

	if leases != nil {
		app.Post("/leases", func(c fiber.Ctx) error {
			var req leaseRequest
			if err := c.Bind().JSON(&req); err != nil {
				return badRequest(c, "invalid_body", err)
			}
			identity := strings.TrimSpace(req.Identity)
			if identity == "" {
				return badRequest(c, "invalid_identity", errIdentityRequired)
			}

			id, lease, err := leases.Acquire(c.Context(), identity)
			switch {
			case err == nil:
			case errors.Is(err, cache.ErrCacheMiss):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache_miss"})
			default:
				if logger != nil {
					logger.WithError(err).WithFields(logrus.Fields{
						"action":     "lease_acquire",
						"identity":   identity,
						"request_id": server.RequestID(c),
					}).Warn("lease_acquire_failed")
				}
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "materialize_failed"})
			}

			return c.Status(fiber.StatusCreated).JSON(leasePayload{
				ID:       id,
				Identity: lease.Identity,
				Path:     lease.Path,
			})
		})

		app.Delete("/leases/:id", func(c fiber.Ctx) error {
			err := leases.Release(c.Params("id"))
			if errors.Is(err, server.ErrLeaseNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "lease_not_found"})
			}
			if err != nil {
				return err
			}
			return c.SendStatus(fiber.StatusNoContent)
		})
	}

	if inspector != nil {
		app.Get("/cache", func(c fiber.Ctx) error {
			info, err := inspector.Info()
			if err != nil {
				return err
			}
			payload := cachePayload{Info: info}
			if leases != nil {
				payload.ActiveLeases = leases.Len()
			}
			return c.JSON(payload)
		})
	}
}
