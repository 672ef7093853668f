package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-portal/internal/api/dto"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.ClientConfig{BaseURL: srv.URL + "/", Token: "tok", TimeoutSeconds: 5, RetryCount: retries}, nil)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": message}})
}

func TestListPageSendsPagingAndToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/service-requests", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"requests":[{"id":"r1","requestId":"SRQ-000001","status":"New"}],"hasMore":true}`)
	}, 0)

	page, err := c.ListPage(context.Background(), domain.KindServiceRequest, 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "SRQ-000001", page.Items[0].DisplayID)
	assert.True(t, page.HasMore)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, apperrors.CodeNotFound, apperrors.IsNotFound},
		{"validation", http.StatusBadRequest, apperrors.CodeValidation, apperrors.IsValidation},
		{"scheduling", http.StatusBadRequest, apperrors.CodeScheduling, apperrors.IsScheduling},
		{"server error", http.StatusInternalServerError, apperrors.CodeInternal, apperrors.IsNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tc.status, tc.code, "boom")
			}, 0)
			err := c.Delete(context.Background(), domain.KindTicket, "abc")
			require.Error(t, err)
			assert.True(t, tc.check(err), err.Error())
		})
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(config.ClientConfig{BaseURL: srv.URL, TimeoutSeconds: 1}, nil)

	_, err := c.ListPage(context.Background(), domain.KindTicket, 1, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
}

func TestRetriesOnlyReads(t *testing.T) {
	var gets, posts atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if gets.Add(1) == 1 {
				writeError(w, http.StatusServiceUnavailable, "", "busy")
				return
			}
			_, _ = io.WriteString(w, `{"items":[],"hasMore":false}`)
		default:
			posts.Add(1)
			writeError(w, http.StatusServiceUnavailable, "", "busy")
		}
	}, 1)

	_, err := c.ListPage(context.Background(), domain.KindTicket, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gets.Load())

	_, err = c.AppendReply(context.Background(), domain.KindTicket, "t1", domain.ReplySubmission{
		Note:    "hello",
		VisitAt: time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
	assert.Equal(t, int32(1), posts.Load())
}

func TestAppendReplySendsMultipartFields(t *testing.T) {
	total := 99.5
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tickets/t1/replies", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "Visit booked", r.FormValue(dto.FieldNote))
		assert.Equal(t, "2030-01-02T09:00:00Z", r.FormValue(dto.FieldVisitAt))
		assert.Equal(t, "In Progress", r.FormValue(dto.FieldStatus))
		assert.Equal(t, "99.5", r.FormValue(dto.FieldTotalPrice))
		assert.JSONEq(t, `[{"sNo":1,"description":"Sensor","price":99.5}]`, r.FormValue(dto.FieldPriceList))
		assert.Len(t, r.MultipartForm.File[dto.FieldImages], 2)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"t1","ticketId":"TCK-000001","status":"In Progress",
			"timeline":[{"note":"Visit booked","addedBy":"Support","addedAt":"2030-01-01T00:00:00Z","images":["uploads/a.png"],"totalPrice":99.5}]}}`)
	}, 0)

	updated, err := c.AppendReply(context.Background(), domain.KindTicket, "t1", domain.ReplySubmission{
		Note:       "Visit booked",
		VisitAt:    time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC),
		Status:     domain.StatusInProgress,
		Images:     []domain.Upload{{FileName: "a.png", Data: []byte("a")}, {FileName: "b.png", Data: []byte("b")}},
		PriceList:  []domain.PriceItem{{SNo: 1, Description: "Sensor", Price: 99.5}},
		TotalPrice: &total,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	require.Len(t, updated.Timeline, 1)
	require.NotNil(t, updated.Timeline[0].TotalPrice)
	assert.Equal(t, 99.5, *updated.Timeline[0].TotalPrice)
}

func TestLoginStoresToken(t *testing.T) {
	var authHeader atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			_, _ = io.WriteString(w, `{"data":{"access_token":"fresh","expires_at":1,"user":{"id":"u","role":"ADMIN"}}}`)
			return
		}
		authHeader.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	}, 0)

	resp, err := c.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)

	_, err = c.ListPage(context.Background(), domain.KindTicket, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", authHeader.Load())
}

func TestAttachmentURL(t *testing.T) {
	c := New(config.ClientConfig{BaseURL: "https://portal.example.com/"}, nil)
	assert.Equal(t, "https://portal.example.com/uploads/a.png", c.AttachmentURL("uploads/a.png"))
	assert.Equal(t, "https://portal.example.com/uploads/a.png", c.AttachmentURL("/uploads/a.png"))
	assert.Equal(t, "https://cdn.example.com/x.png", c.AttachmentURL("https://cdn.example.com/x.png"))
	assert.Empty(t, c.AttachmentURL(""))
}
