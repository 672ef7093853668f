package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-portal/internal/api/dto"
	"github.com/spec-kit/service-portal/internal/auth"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/service"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// OutletsHandler manages the caller's outlets.
type OutletsHandler struct {
	outlets *service.OutletService
}

// NewOutletsHandler constructs handler.
func NewOutletsHandler(outlets *service.OutletService) *OutletsHandler {
	return &OutletsHandler{outlets: outlets}
}

// List GET /api/v1/outlets.
func (h *OutletsHandler) List(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	outlets, err := h.outlets.List(c.UserContext(), user)
	if err != nil {
		return err
	}
	items := make([]dto.Outlet, 0, len(outlets))
	for i := range outlets {
		items = append(items, dto.FromOutlet(&outlets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /api/v1/outlets.
func (h *OutletsHandler) Create(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	var req dto.CreateOutletRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	outlet, err := h.outlets.Create(c.UserContext(), user, req.Name, req.Address,
		domain.Location{Lat: req.Location.Lat, Lng: req.Location.Lng})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromOutlet(outlet)})
}
