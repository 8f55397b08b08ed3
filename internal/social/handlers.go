package social

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-motorev/internal/ride"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/posts", authMiddleware, func(c *fiber.Ctx) error {
		riderID, _ := c.Locals("rider_id").(string)
		var req ShareRequest
		if err := c.BodyParser(&req); err != nil || req.RideID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "ride_id required")
		}
		post, err := svc.Share(c.Context(), riderID, req)
		switch {
		case errors.Is(err, ride.ErrRideNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotRideOwner):
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(post)
	})

	r.Post("/follow", authMiddleware, func(c *fiber.Ctx) error {
		riderID, _ := c.Locals("rider_id").(string)
		var req Follow
		if err := c.BodyParser(&req); err != nil || req.FollowingID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "following_id required")
		}
		if err := svc.Follow(c.Context(), riderID, req.FollowingID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/follow/:followingID", authMiddleware, func(c *fiber.Ctx) error {
		riderID, _ := c.Locals("rider_id").(string)
		if err := svc.Unfollow(c.Context(), riderID, c.Params("followingID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/feed", authMiddleware, func(c *fiber.Ctx) error {
		riderID, _ := c.Locals("rider_id").(string)
		feed, err := svc.Feed(c.Context(), riderID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if feed == nil {
			feed = []RidePost{}
		}
		return c.JSON(feed)
	})
}
