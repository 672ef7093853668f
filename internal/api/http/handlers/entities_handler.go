package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-portal/internal/api/dto"
	"github.com/spec-kit/service-portal/internal/auth"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/service"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// Paging bounds the page size accepted by list endpoints.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

// EntitiesHandler serves one entity kind. The ticket and service request
// routes each get their own instance.
type EntitiesHandler struct {
	kind    domain.Kind
	portal  *service.PortalService
	paging  Paging
	maxFile int64
}

// NewEntitiesHandler constructs handler.
func NewEntitiesHandler(kind domain.Kind, portal *service.PortalService, paging Paging, maxFileBytes int64) *EntitiesHandler {
	if paging.DefaultLimit <= 0 {
		paging.DefaultLimit = 10
	}
	if paging.MaxLimit < paging.DefaultLimit {
		paging.MaxLimit = paging.DefaultLimit
	}
	return &EntitiesHandler{kind: kind, portal: portal, paging: paging, maxFile: maxFileBytes}
}

// List GET /. Responds with {items, hasMore}. ?status=a,b narrows the result.
func (h *EntitiesHandler) List(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	page, limit, err := h.parsePaging(c)
	if err != nil {
		return err
	}
	var statuses []domain.Status
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, domain.Status(raw))
		}
	}
	result, err := h.portal.List(c.UserContext(), user, h.kind, page, limit, statuses...)
	if err != nil {
		return err
	}
	items := make([]dto.Entity, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, dto.FromEntity(&result.Items[i]))
	}
	return c.JSON(dto.ListResponse{Items: items, HasMore: result.HasMore})
}

// Get GET /:id.
func (h *EntitiesHandler) Get(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	entity, err := h.portal.Get(c.UserContext(), user, h.kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromEntity(entity)})
}

// Create POST / as multipart form.
func (h *EntitiesHandler) Create(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	images, err := h.readUploads(c, domain.MaxCreateImages)
	if err != nil {
		return err
	}
	entity, err := h.portal.Create(c.UserContext(), user, h.kind, service.CreateInput{
		Category:    domain.Category(strings.TrimSpace(c.FormValue(dto.FieldCategory))),
		Title:       c.FormValue(dto.FieldTitle),
		Description: c.FormValue(dto.FieldDescription),
		OutletID:    strings.TrimSpace(c.FormValue(dto.FieldOutletID)),
		Images:      images,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromEntity(entity)})
}

// UpdateStatus PATCH /:id/status.
func (h *EntitiesHandler) UpdateStatus(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entity, err := h.portal.UpdateStatus(c.UserContext(), user, h.kind, c.Params("id"),
		domain.Status(strings.TrimSpace(req.Status)), req.VisitDateTime)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromEntity(entity)})
}

// AddReply POST /:id/replies as multipart form.
func (h *EntitiesHandler) AddReply(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	reply, err := h.parseReply(c)
	if err != nil {
		return err
	}
	entity, err := h.portal.AppendReply(c.UserContext(), user, h.kind, c.Params("id"), reply)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromEntity(entity)})
}

// Delete DELETE /:id. Responds 204, or 404 when the entity is already gone.
func (h *EntitiesHandler) Delete(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	if err := h.portal.Delete(c.UserContext(), user, h.kind, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *EntitiesHandler) parsePaging(c *fiber.Ctx) (int, int, error) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, apperrors.NewValidationError("invalid page", map[string]any{"page": raw})
		}
		page = n
	}
	limit := h.paging.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, apperrors.NewValidationError("invalid limit", map[string]any{"limit": raw})
		}
		limit = n
	}
	if limit > h.paging.MaxLimit {
		limit = h.paging.MaxLimit
	}
	return page, limit, nil
}

func (h *EntitiesHandler) parseReply(c *fiber.Ctx) (domain.ReplySubmission, error) {
	reply := domain.ReplySubmission{
		Note:   c.FormValue(dto.FieldNote),
		Status: domain.Status(strings.TrimSpace(c.FormValue(dto.FieldStatus))),
	}

	if raw := strings.TrimSpace(c.FormValue(dto.FieldVisitAt)); raw != "" {
		visitAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return reply, apperrors.NewSchedulingError("invalid", "invalid visit date time")
		}
		reply.VisitAt = visitAt
	}

	if raw := strings.TrimSpace(c.FormValue(dto.FieldPriceList)); raw != "" {
		var items []dto.PriceItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return reply, apperrors.NewValidationError("invalid price list", nil)
		}
		reply.PriceList = dto.ToPriceList(items)
	}

	if raw := strings.TrimSpace(c.FormValue(dto.FieldTotalPrice)); raw != "" {
		total, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return reply, apperrors.NewValidationError("invalid total price", map[string]any{"totalPrice": raw})
		}
		reply.TotalPrice = &total
	}

	images, err := h.readUploads(c, domain.MaxEntryImages)
	if err != nil {
		return reply, err
	}
	reply.Images = images
	return reply, nil
}

// readUploads collects the image parts of a multipart request. Non-multipart
// requests carry no images.
func (h *EntitiesHandler) readUploads(c *fiber.Ctx, max int) ([]domain.Upload, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid multipart body", nil)
	}
	files := form.File[dto.FieldImages]
	if len(files) > max {
		return nil, apperrors.NewValidationError("too many images", map[string]any{"max": max, "count": len(files)})
	}
	uploads := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		if h.maxFile > 0 && fh.Size > h.maxFile {
			return nil, apperrors.NewValidationError("file too large", map[string]any{"file": fh.Filename, "max_bytes": h.maxFile})
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable file", map[string]any{"file": fh.Filename})
		}
		uploads = append(uploads, domain.Upload{FileName: fh.Filename, Data: data})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
