package engagement

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/tracking"
)

type observeRequest struct {
	EventID  int64           `json:"event_id"`
	Location tracking.Sample `json:"location"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/locations", authMiddleware, func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(int64)
		if !ok || userID <= 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "user_id missing from token")
		}
		var req observeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.EventID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "event_id required")
		}
		prompted, err := svc.Observe(c.UserContext(), userID, req.EventID, req.Location)
		if errors.Is(err, ErrUnknownEvent) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{"prompted": prompted})
	})

	r.Delete("/session", authMiddleware, func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(int64)
		if !ok || userID <= 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "user_id missing from token")
		}
		svc.EndSession(userID)
		return c.SendStatus(fiber.StatusNoContent)
	})
}
