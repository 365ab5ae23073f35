package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/adapter/http/fiber/middleware"
	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/ports"
)

type DashboardHandler struct {
	service ports.DashboardService
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

// NewDashboardHandler creates the handler. Empty range bounds resolve to
// today in loc.
func NewDashboardHandler(service ports.DashboardService, loc *time.Location, log *zap.Logger) *DashboardHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{
		service: service,
		loc:     loc,
		now:     time.Now,
		log:     log,
	}
}

// Get returns the current snapshot
func (h *DashboardHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.service.Snapshot())
}

// Refresh runs a full refresh for ?from=YYYY-MM-DD&to=YYYY-MM-DD and returns
// the resulting snapshot. A failed refresh still returns the snapshot, with
// lastError set and a status describing the failure.
func (h *DashboardHandler) Refresh(c *fiber.Ctx) error {
	rng, err := domain.ParseDateRange(c.Query("from"), c.Query("to"), h.now().In(h.loc))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	err = h.service.Refresh(c.UserContext(), rng)
	snap := h.service.Snapshot()
	if err != nil {
		h.log.Info("Manual refresh failed", zap.String("range", rng.String()), zap.Error(err))
		return c.Status(middleware.StatusFor(err)).JSON(snap)
	}
	return c.JSON(snap)
}
