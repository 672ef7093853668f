package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/api/dto"
	"github.com/spec-kit/service-portal/internal/api/http/handlers"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/events"
	"github.com/spec-kit/service-portal/internal/observability"
	"github.com/spec-kit/service-portal/internal/repository/memory"
	"github.com/spec-kit/service-portal/internal/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testServer struct {
	t          *testing.T
	server     *Server
	userToken  string
	adminToken string
	outletID   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Name: "portal-test", Version: "test", DefaultPageSize: 10, MaxPageSize: 50},
		Auth:    config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 10, BcryptCost: 4},
		Storage: config.StorageConfig{UploadDir: t.TempDir(), PublicPrefix: "uploads", MaxFileBytes: 1 << 20},
	}
	store, err := storage.NewLocalStore(cfg.Storage, zap.NewNop())
	require.NoError(t, err)
	mem := memory.NewStore()

	srv := NewServer(ServerDependencies{
		Config:       cfg,
		Logger:       zap.NewNop(),
		Metrics:      observability.NewMetrics("portal"),
		Users:        mem.Users(),
		Outlets:      mem.Outlets(),
		Entities:     mem.Entities(),
		Attachments:  store,
		Dispatcher:   events.NewInMemoryDispatcher(zap.NewNop()),
		HealthChecks: map[string]handlers.Pinger{"store": okPinger{}},
	})
	_, err = srv.Auth.EnsureAdmin(context.Background(), "Support", "admin@example.com", "admin-pass")
	require.NoError(t, err)

	ts := &testServer{t: t, server: srv}
	var reg struct {
		Data dto.AuthResponse `json:"data"`
	}
	status := ts.doJSON(http.MethodPost, "/auth/register", "", dto.RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	}, &reg)
	require.Equal(t, http.StatusCreated, status)
	ts.userToken = reg.Data.AccessToken

	var login struct {
		Data dto.AuthResponse `json:"data"`
	}
	status = ts.doJSON(http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: "admin@example.com", Password: "admin-pass"}, &login)
	require.Equal(t, http.StatusOK, status)
	ts.adminToken = login.Data.AccessToken

	var outlet struct {
		Data dto.Outlet `json:"data"`
	}
	status = ts.doJSON(http.MethodPost, "/api/v1/outlets", ts.userToken, dto.CreateOutletRequest{
		Name: "Main Street", Address: "1 Main St", Location: dto.Location{Lat: 1.3, Lng: 103.8},
	}, &outlet)
	require.Equal(t, http.StatusCreated, status)
	ts.outletID = outlet.Data.ID
	return ts
}

func (ts *testServer) do(req *http.Request, out any) int {
	ts.t.Helper()
	resp, err := ts.server.App.Test(req, -1)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	if out != nil && len(body) > 0 {
		require.NoError(ts.t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func (ts *testServer) doJSON(method, path, token string, payload any, out any) int {
	ts.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(ts.t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return ts.do(req, out)
}

func (ts *testServer) doMultipart(path, token string, fields map[string]string, images int, out any) int {
	ts.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(ts.t, w.WriteField(k, v))
	}
	for i := 0; i < images; i++ {
		part, err := w.CreateFormFile(dto.FieldImages, "photo.png")
		require.NoError(ts.t, err)
		_, err = part.Write(pngBytes)
		require.NoError(ts.t, err)
	}
	require.NoError(ts.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return ts.do(req, out)
}

func (ts *testServer) createTicket(title string, images int) dto.Entity {
	ts.t.Helper()
	var created struct {
		Data dto.Entity `json:"data"`
	}
	status := ts.doMultipart("/api/v1/tickets", ts.userToken, map[string]string{
		dto.FieldCategory:    "CCTV",
		dto.FieldTitle:       title,
		dto.FieldDescription: "Camera offline",
		dto.FieldOutletID:    ts.outletID,
	}, images, &created)
	require.Equal(ts.t, http.StatusCreated, status)
	return created.Data
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	var live map[string]any
	assert.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "portal-test", live["service"])

	var ready map[string]any
	assert.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "ready", ready["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := ts.server.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "portal_http_requests_total")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCreateListGetTicket(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createTicket("first", 2)
	assert.Equal(t, "TCK-", first.TicketID[:4])
	assert.Empty(t, first.RequestID)
	assert.Equal(t, "New", first.Status)
	assert.Equal(t, "Main Street", first.OutletName)
	require.Len(t, first.Images, 2)
	assert.True(t, strings.HasPrefix(first.Images[0], "uploads/"))

	ts.createTicket("second", 0)
	ts.createTicket("third", 0)

	var page dto.ListResponse
	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/api/v1/tickets?page=1&limit=2", ts.userToken, nil, &page))
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "third", page.Items[0].Title)

	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/api/v1/tickets?page=2&limit=2", ts.userToken, nil, &page))
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)

	var srPage dto.ListResponse
	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/api/v1/service-requests", ts.userToken, nil, &srPage))
	assert.Empty(t, srPage.Items)
	assert.NotNil(t, srPage.Items)

	var got struct {
		Data dto.Entity `json:"data"`
	}
	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/api/v1/tickets/"+first.ID, ts.userToken, nil, &got))
	assert.Equal(t, first.TicketID, got.Data.TicketID)

	var missing errorBody
	assert.Equal(t, http.StatusNotFound, ts.doJSON(http.MethodGet, "/api/v1/service-requests/"+first.ID, ts.userToken, nil, &missing))
	assert.Equal(t, "NOT_FOUND", missing.Error.Code)

	var bad errorBody
	assert.Equal(t, http.StatusBadRequest, ts.doJSON(http.MethodGet, "/api/v1/tickets?limit=abc", ts.userToken, nil, &bad))
	assert.Equal(t, "VALIDATION_FAILED", bad.Error.Code)

	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/api/v1/tickets?status=new,in_progress", ts.userToken, nil, &page))
	assert.Len(t, page.Items, 3)
	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodGet, "/api/v1/tickets?status=Closed", ts.userToken, nil, &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, http.StatusBadRequest, ts.doJSON(http.MethodGet, "/api/v1/tickets?status=Completed", ts.userToken, nil, &bad))
}

func TestCreateRejectsInvalidSubmission(t *testing.T) {
	ts := newTestServer(t)

	var body errorBody
	status := ts.doMultipart("/api/v1/tickets", ts.userToken, map[string]string{
		dto.FieldCategory: "Gardening",
		dto.FieldOutletID: ts.outletID,
	}, 0, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Contains(t, body.Error.Details, "category")
	assert.Contains(t, body.Error.Details, "title")

	status = ts.doMultipart("/api/v1/tickets", ts.userToken, map[string]string{
		dto.FieldCategory:    "CCTV",
		dto.FieldTitle:       "t",
		dto.FieldDescription: "d",
		dto.FieldOutletID:    ts.outletID,
	}, 6, &body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	var body errorBody
	assert.Equal(t, http.StatusUnauthorized, ts.doJSON(http.MethodGet, "/api/v1/tickets", "", nil, &body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	assert.Equal(t, http.StatusNotFound, ts.doJSON(http.MethodGet, "/nowhere", "", nil, &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestStatusUpdateIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	ticket := ts.createTicket("t", 0)
	path := "/api/v1/tickets/" + ticket.ID + "/status"

	var body errorBody
	assert.Equal(t, http.StatusForbidden, ts.doJSON(http.MethodPatch, path, ts.userToken, dto.UpdateStatusRequest{Status: "Closed"}, &body))

	var updated struct {
		Data dto.Entity `json:"data"`
	}
	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodPatch, path, ts.adminToken, dto.UpdateStatusRequest{Status: "Closed"}, &updated))
	assert.Equal(t, "Closed", updated.Data.Status)

	require.Equal(t, http.StatusOK, ts.doJSON(http.MethodPatch, path, ts.adminToken, dto.UpdateStatusRequest{Status: "Open"}, &updated))
	assert.Equal(t, "New", updated.Data.Status)

	assert.Equal(t, http.StatusBadRequest, ts.doJSON(http.MethodPatch, path, ts.adminToken, dto.UpdateStatusRequest{Status: "Completed"}, &body))
}

func TestReplyAppendsTimelineAndSchedules(t *testing.T) {
	ts := newTestServer(t)
	ticket := ts.createTicket("t", 0)
	path := "/api/v1/tickets/" + ticket.ID + "/replies"

	var replied struct {
		Data dto.Entity `json:"data"`
	}
	status := ts.doMultipart(path, ts.adminToken, map[string]string{
		dto.FieldNote:       "Technician booked",
		dto.FieldVisitAt:    "2030-03-01T12:00:00Z",
		dto.FieldStatus:     "In Progress",
		dto.FieldPriceList:  `[{"sNo":1,"description":"Camera","price":120.5}]`,
		dto.FieldTotalPrice: "120.5",
	}, 1, &replied)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "In Progress", replied.Data.Status)
	require.NotNil(t, replied.Data.AssignedVisitAt)
	assert.Equal(t, "2030-03-01T12:00:00Z", replied.Data.AssignedVisitAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	require.Len(t, replied.Data.Timeline, 1)
	entry := replied.Data.Timeline[0]
	assert.Equal(t, "Support", entry.AddedBy)
	require.Len(t, entry.PriceList, 1)
	assert.Equal(t, 120.5, entry.PriceList[0].Price)
	require.NotNil(t, entry.TotalPrice)
	assert.Len(t, entry.Images, 1)

	status = ts.doMultipart(path, ts.userToken, map[string]string{
		dto.FieldNote:    "Thanks",
		dto.FieldVisitAt: "2030-03-01T12:00:00Z",
	}, 0, &replied)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, replied.Data.Timeline, 2)
	assert.Equal(t, "Technician booked", replied.Data.Timeline[0].Note)
	assert.Equal(t, "Thanks", replied.Data.Timeline[1].Note)

	var body errorBody
	status = ts.doMultipart(path, ts.adminToken, map[string]string{dto.FieldNote: "no visit"}, 0, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SCHEDULING_FAILED", body.Error.Code)

	status = ts.doMultipart(path, ts.adminToken, map[string]string{
		dto.FieldNote:    "too many",
		dto.FieldVisitAt: "2030-03-01T12:00:00Z",
	}, 4, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
}

func TestDeleteThenDeleteAgain(t *testing.T) {
	ts := newTestServer(t)
	ticket := ts.createTicket("t", 0)
	path := "/api/v1/tickets/" + ticket.ID

	assert.Equal(t, http.StatusNoContent, ts.doJSON(http.MethodDelete, path, ts.userToken, nil, nil))

	var body errorBody
	assert.Equal(t, http.StatusNotFound, ts.doJSON(http.MethodDelete, path, ts.userToken, nil, &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
