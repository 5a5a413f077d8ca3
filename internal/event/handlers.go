package event

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Event
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.CreatedBy, _ = c.Locals("user_id").(int64)
		evt, err := svc.CreateEvent(c.UserContext(), req)
		if err != nil {
			return eventError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(evt)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid event id")
		}
		evt, err := svc.GetEvent(c.UserContext(), int64(id))
		if err != nil {
			return eventError(err)
		}
		return c.JSON(evt)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid event id")
		}
		var req Event
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		evt, err := svc.UpdateEvent(c.UserContext(), int64(id), req)
		if err != nil {
			return eventError(err)
		}
		return c.JSON(evt)
	})

	r.Get("/:id/attendance", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid event id")
		}
		records, err := svc.Roster(c.UserContext(), int64(id))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(records)
	})
}

func eventError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidEvent):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, attendance.ErrEventNotFound):
		return fiber.NewError(fiber.StatusNotFound, "event not found")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
