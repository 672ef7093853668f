// Package client talks to the portal REST API on behalf of the feed and the
// lifecycle controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/api/dto"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/feed"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// CreateInput describes a new ticket or service request.
type CreateInput struct {
	Category    domain.Category
	Title       string
	Description string
	OutletID    string
	Images      []domain.Upload
}

// Client is the portal API client.
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// New builds a client from cfg.
func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout()).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(retryReads).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, baseURL: baseURL, logger: logger, token: cfg.Token}
}

// retryReads limits automatic retries to GET requests; replies and deletes are
// never replayed behind the caller's back.
func retryReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

// SetToken sets the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Login authenticates and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (dto.AuthResponse, error) {
	var result dataEnvelope[dto.AuthResponse]
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto.LoginRequest{Email: email, Password: password}).
		SetResult(&result).
		Post("/auth/login")
	if err := c.check(resp, err, "login"); err != nil {
		return dto.AuthResponse{}, err
	}
	c.SetToken(result.Data.AccessToken)
	return result.Data, nil
}

// ListOutlets returns the caller's outlets.
func (c *Client) ListOutlets(ctx context.Context) ([]dto.Outlet, error) {
	var result dataEnvelope[[]dto.Outlet]
	resp, err := c.request(ctx).SetResult(&result).Get("/api/v1/outlets")
	if err := c.check(resp, err, "list outlets"); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// CreateOutlet registers an outlet for the caller.
func (c *Client) CreateOutlet(ctx context.Context, req dto.CreateOutletRequest) (dto.Outlet, error) {
	var result dataEnvelope[dto.Outlet]
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		Post("/api/v1/outlets")
	if err := c.check(resp, err, "create outlet"); err != nil {
		return dto.Outlet{}, err
	}
	return result.Data, nil
}

// ListPage fetches one page of entities.
func (c *Client) ListPage(ctx context.Context, kind domain.Kind, page, limit int) (feed.Page, error) {
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		}).
		Get(collectionPath(kind))
	if err := c.check(resp, err, "list"); err != nil {
		return feed.Page{}, err
	}
	return DecodeList(resp.Body(), kind, limit)
}

// Get fetches a single entity.
func (c *Client) Get(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	var result dataEnvelope[dto.Entity]
	resp, err := c.request(ctx).SetResult(&result).Get(itemPath(kind, id))
	if err := c.check(resp, err, "get"); err != nil {
		return domain.Entity{}, err
	}
	return result.Data.ToEntity(kind), nil
}

// Create submits a new entity with its images.
func (c *Client) Create(ctx context.Context, kind domain.Kind, input CreateInput) (domain.Entity, error) {
	req := c.request(ctx).SetMultipartFormData(map[string]string{
		dto.FieldCategory:    string(input.Category),
		dto.FieldTitle:       input.Title,
		dto.FieldDescription: input.Description,
		dto.FieldOutletID:    input.OutletID,
	})
	attachUploads(req, input.Images)

	var result dataEnvelope[dto.Entity]
	resp, err := req.SetResult(&result).Post(collectionPath(kind))
	if err := c.check(resp, err, "create"); err != nil {
		return domain.Entity{}, err
	}
	return result.Data.ToEntity(kind), nil
}

// UpdateStatus changes an entity's status and optionally its visit time.
func (c *Client) UpdateStatus(ctx context.Context, kind domain.Kind, id string, s domain.Status, visitAt *time.Time) (domain.Entity, error) {
	var result dataEnvelope[dto.Entity]
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto.UpdateStatusRequest{Status: string(s), VisitDateTime: visitAt}).
		SetResult(&result).
		Patch(itemPath(kind, id) + "/status")
	if err := c.check(resp, err, "update status"); err != nil {
		return domain.Entity{}, err
	}
	return result.Data.ToEntity(kind), nil
}

// AppendReply posts a reply with its schedule, images, and quotation.
func (c *Client) AppendReply(ctx context.Context, kind domain.Kind, id string, reply domain.ReplySubmission) (domain.Entity, error) {
	fields := map[string]string{
		dto.FieldNote:    reply.Note,
		dto.FieldVisitAt: reply.VisitAt.Format(time.RFC3339),
	}
	if reply.Status != "" {
		fields[dto.FieldStatus] = string(reply.Status)
	}
	if len(reply.PriceList) > 0 {
		raw, err := json.Marshal(dto.FromPriceList(reply.PriceList))
		if err != nil {
			return domain.Entity{}, apperrors.NewValidationError("invalid price list", nil)
		}
		fields[dto.FieldPriceList] = string(raw)
	}
	if reply.TotalPrice != nil {
		fields[dto.FieldTotalPrice] = strconv.FormatFloat(*reply.TotalPrice, 'f', -1, 64)
	}
	req := c.request(ctx).SetMultipartFormData(fields)
	attachUploads(req, reply.Images)

	var result dataEnvelope[dto.Entity]
	resp, err := req.SetResult(&result).Post(itemPath(kind, id) + "/replies")
	if err := c.check(resp, err, "reply"); err != nil {
		return domain.Entity{}, err
	}
	return result.Data.ToEntity(kind), nil
}

// Delete removes an entity. A missing entity yields a not-found error.
func (c *Client) Delete(ctx context.Context, kind domain.Kind, id string) error {
	resp, err := c.request(ctx).Delete(itemPath(kind, id))
	return c.check(resp, err, "delete")
}

// AttachmentURL resolves a relative attachment path against the API base URL.
func (c *Client) AttachmentURL(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// check converts transport failures and error responses into domain errors.
func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		c.logger.Warn("portal api call failed", zap.String("op", op), zap.Error(err))
		return apperrors.NewNetworkError(op+" failed", 0, err)
	}
	if !resp.IsError() {
		return nil
	}

	var envelope errorEnvelope
	_ = json.Unmarshal(resp.Body(), &envelope)
	message := envelope.Error.Message
	if message == "" {
		message = fmt.Sprintf("%s failed with status %d", op, resp.StatusCode())
	}
	c.logger.Debug("portal api error response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode()),
		zap.String("code", envelope.Error.Code))

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return apperrors.NewDomainError(apperrors.CodeNotFound, message, http.StatusNotFound, envelope.Error.Details)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code := envelope.Error.Code
		if code != apperrors.CodeScheduling {
			code = apperrors.CodeValidation
		}
		return apperrors.NewDomainError(code, message, http.StatusBadRequest, envelope.Error.Details)
	case http.StatusUnauthorized:
		return apperrors.NewUnauthorized(message)
	case http.StatusForbidden:
		return apperrors.NewForbidden(message)
	case http.StatusConflict:
		return apperrors.NewConflict(message, envelope.Error.Details)
	default:
		return apperrors.NewNetworkError(message, resp.StatusCode(), nil)
	}
}

func attachUploads(req *resty.Request, uploads []domain.Upload) {
	for _, upload := range uploads {
		req.SetFileReader(dto.FieldImages, upload.FileName, bytes.NewReader(upload.Data))
	}
}

func collectionPath(kind domain.Kind) string {
	if kind == domain.KindServiceRequest {
		return "/api/v1/service-requests"
	}
	return "/api/v1/tickets"
}

func itemPath(kind domain.Kind, id string) string {
	return collectionPath(kind) + "/" + url.PathEscape(id)
}
