package ride

import (
	"errors"

	"backend-motorev/internal/crash"
	"backend-motorev/internal/safety"
	"backend-motorev/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			RiderID string `json:"rider_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.RiderID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "rider_id required")
		}
		snap, err := svc.Start(req.RiderID)
		if err != nil {
			return statusError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Post("/:id/pause", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Pause(c.Params("id")); err != nil {
			return statusError(err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/:id/resume", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Resume(c.Params("id")); err != nil {
			return statusError(err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		completed, err := svc.Stop(c.Context(), c.Params("id"))
		if err != nil && !errors.Is(err, ErrSessionEnded) && !errors.Is(err, ErrNoActiveSession) && !errors.Is(err, ErrInvalidTransition) {
			// Persistence failed but the ride finalized: return the record
			// with a warning status rather than losing it.
			return c.Status(fiber.StatusAccepted).JSON(completed)
		}
		if err != nil {
			return statusError(err)
		}
		return c.JSON(completed)
	})

	r.Post("/:id/position", func(c *fiber.Ctx) error {
		var sample telemetry.PositionSample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		delta, err := svc.IngestPosition(c.Params("id"), sample)
		if err != nil {
			return statusError(err)
		}
		return c.JSON(delta)
	})

	r.Post("/:id/motion", func(c *fiber.Ctx) error {
		var sample crash.MotionSample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.IngestMotion(c.Params("id"), sample); err != nil {
			return statusError(err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/:id/sos", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.TriggerSOS(c.Params("id")); err != nil {
			return statusError(err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/:id/escalation/cancel", authMiddleware, func(c *fiber.Ctx) error {
		cancelled := svc.CancelEscalation(c.Params("id"))
		return c.JSON(fiber.Map{"cancelled": cancelled})
	})

	r.Post("/:id/resolve", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Resolve(c.Params("id")); err != nil {
			return statusError(err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Get("/:id/live", func(c *fiber.Ctx) error {
		snap, err := svc.Live(c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(snap)
	})

	r.Get("/:id/safety", func(c *fiber.Ctx) error {
		status, err := svc.SafetyStatus(c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(fiber.Map{"status": status})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		completed, err := svc.Completed(c.Context(), c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(completed)
	})

	r.Get("/:id/export.gpx", func(c *fiber.Ctx) error {
		completed, err := svc.Completed(c.Context(), c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		doc, err := ExportGPX(completed)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		return c.Send(doc)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		riderID := c.Query("rider_id")
		if riderID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "rider_id required")
		}
		rides, err := svc.History(c.Context(), riderID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(rides)
	})
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrSessionEnded), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, safety.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrRideNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
