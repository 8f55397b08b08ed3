package escalation

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, contacts *ContactService, manager *Manager, authMiddleware fiber.Handler) {
	r.Post("/contacts", authMiddleware, func(c *fiber.Ctx) error {
		var req Contact
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.RiderID == "" || req.Name == "" || req.PhoneNumber == "" {
			return fiber.NewError(fiber.StatusBadRequest, "rider_id, name and phone_number required")
		}
		contact, err := contacts.Add(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(contact)
	})

	r.Put("/contacts/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req Contact
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		contact, err := contacts.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			if errors.Is(err, ErrContactNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(contact)
	})

	r.Delete("/contacts/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := contacts.Remove(c.Context(), c.Params("id")); err != nil {
			if errors.Is(err, ErrContactNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/contacts", func(c *fiber.Ctx) error {
		riderID := c.Query("rider_id")
		if riderID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "rider_id required")
		}
		list, err := contacts.List(c.Context(), riderID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(list)
	})

	// Contacts acknowledge through the link in their notification.
	r.Post("/runs/:runID/ack/:contactID", func(c *fiber.Ctx) error {
		if !manager.Acknowledge(c.Params("runID"), c.Params("contactID")) {
			return fiber.NewError(fiber.StatusNotFound, "run or contact not found")
		}
		return c.JSON(fiber.Map{"status": "acknowledged"})
	})
}
