package tracking

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

type startRequest struct {
	EventID           int64 `json:"event_id"`
	ForegroundGranted bool  `json:"foreground_granted"`
	BackgroundGranted bool  `json:"background_granted"`
}

type locationsRequest struct {
	Error     string   `json:"error"`
	Locations []Sample `json:"locations"`
}

// deviceOwner rejects requests from anyone but the user the device is armed for.
func deviceOwner(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(int64)
		if !ok || userID <= 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "user_id missing from token")
		}
		if err := svc.Authorize(c.UserContext(), c.Params("deviceID"), userID); err != nil {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return c.Next()
	}
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	owner := deviceOwner(svc)

	r.Post("/devices/:deviceID/start", authMiddleware, owner, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int64)
		var req startRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.EventID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "event_id required")
		}
		perms := GrantedPermissions{Foreground: req.ForegroundGranted, Background: req.BackgroundGranted}
		cfg, err := svc.Start(c.UserContext(), c.Params("deviceID"), userID, req.EventID, perms)
		if err != nil {
			return startError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(cfg)
	})

	r.Post("/devices/:deviceID/stop", authMiddleware, owner, func(c *fiber.Ctx) error {
		if err := svc.Stop(c.UserContext(), c.Params("deviceID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/devices/:deviceID/locations", authMiddleware, owner, func(c *fiber.Ctx) error {
		var req locationsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		batch := Batch{Samples: req.Locations}
		if req.Error != "" {
			batch.Err = errors.New(req.Error)
		}
		outcome, err := svc.Driver(c.Params("deviceID")).HandleBatch(c.UserContext(), batch)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"outcome":     outcome,
			"retry":       err != nil,
			"received_at": time.Now().UTC(),
		})
	})

	r.Get("/devices/:deviceID/state", authMiddleware, owner, func(c *fiber.Ctx) error {
		return c.JSON(svc.Snapshot(c.UserContext(), c.Params("deviceID")))
	})
}

func startError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrNoEvent):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrEventInactive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidConfig):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
